package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/medchat/medchat/internal/config"
	"github.com/medchat/medchat/internal/domain/appointment"
	"github.com/medchat/medchat/internal/domain/chat"
	"github.com/medchat/medchat/internal/domain/transcript"
	"github.com/medchat/medchat/internal/platform/auth"
	"github.com/medchat/medchat/internal/platform/db"
	"github.com/medchat/medchat/internal/platform/middleware"
	"github.com/medchat/medchat/internal/platform/sibling"
	"github.com/medchat/medchat/internal/platform/websocket"
)

const version = "0.1.0"

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the chat gateway and doctor appointment proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway()
		},
	}
}

func runGateway() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	e := newEcho()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("64K"))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSigningKey),
			Issuer:     cfg.AuthIssuer,
		})
	}

	// The chat relay is open to anonymous patients; doctor and history
	// endpoints require a token and are limited per user.
	requestTimeout := middleware.RequestTimeout(cfg.RelayTimeout + 5*time.Second)
	public := e.Group("/api", middleware.RateLimit(rateLimitCfg), requestTimeout)
	secured := e.Group("/api", authMW, middleware.RateLimit(rateLimitCfg, userKey), requestTimeout)

	// Optional transcript store
	var recorder chat.Recorder
	if cfg.HasDatabase() {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		transcriptSvc := transcript.NewService(transcript.NewRepoPG(pool), logger)
		transcript.NewHandler(transcriptSvc).RegisterRoutes(secured)
		recorder = transcriptSvc

		e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	} else {
		logger.Info().Msg("DATABASE_URL not set, chat transcripts are not recorded")
	}

	// Chat relay, REST and WebSocket
	relay := chat.NewRasaClient(cfg.RasaURL, cfg.RelayTimeout)
	chatSvc := chat.NewService(relay, recorder, logger)
	wsServer := websocket.NewServer(websocket.NewHub(), cfg.CORSOrigins, logger)
	chat.NewHandler(chatSvc, wsServer).RegisterRoutes(public, e)

	// Doctor appointment proxy
	gatewayClient := sibling.New(cfg.APIGatewayURL, cfg.SiblingTimeout)
	patientClient := sibling.New(cfg.PatientServiceURL, cfg.SiblingTimeout)
	apptSvc := appointment.NewService(gatewayClient, patientClient)
	appointment.NewHandler(apptSvc, logger).RegisterRoutes(secured)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	logger.Info().
		Str("rasa_url", cfg.RasaURL).
		Str("patient_service", patientClient.BaseURL()).
		Bool("transcripts", recorder != nil).
		Msg("gateway configured")

	return serve(e, ":"+cfg.Port, logger)
}

func userKey(c echo.Context) string {
	if id := auth.IdentityFromContext(c.Request().Context()); id != nil {
		return "user:" + strconv.Itoa(id.ID)
	}
	return ""
}
