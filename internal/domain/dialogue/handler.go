package dialogue

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Handler struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewHandler(registry *Registry, logger zerolog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook", h.Webhook)
	e.GET("/actions", h.ListActions)
	e.GET("/health", h.Health)
}

type unknownActionBody struct {
	Error      string `json:"error"`
	ActionName string `json:"action_name"`
}

func (h *Handler) Webhook(c echo.Context) error {
	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NextAction == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "next_action is required")
	}

	resp, err := h.registry.Run(c.Request().Context(), req)
	if errors.Is(err, ErrUnknownAction) {
		h.logger.Warn().Str("action", req.NextAction).Msg("unknown action requested")
		return c.JSON(http.StatusNotFound, unknownActionBody{
			Error:      "No registered action found for name '" + req.NextAction + "'.",
			ActionName: req.NextAction,
		})
	}
	if err != nil {
		h.logger.Error().Err(err).Str("action", req.NextAction).Msg("action failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListActions(c echo.Context) error {
	names := h.registry.Names()
	out := make([]map[string]string, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]string{"name": n})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
