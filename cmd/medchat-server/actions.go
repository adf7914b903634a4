package main

import (
	"github.com/spf13/cobra"

	"github.com/medchat/medchat/internal/config"
	"github.com/medchat/medchat/internal/domain/appointment"
	"github.com/medchat/medchat/internal/domain/dialogue"
	"github.com/medchat/medchat/internal/platform/middleware"
	"github.com/medchat/medchat/internal/platform/refdata"
	"github.com/medchat/medchat/internal/platform/sibling"
)

func actionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "Start the dialogue action server",
		Long: `Start the dialogue action server.

The server needs MODEL_PATH (default DATA_DIR/model.json), which is not
checked in. Produce it, together with symptoms.json, by running
"medchat-server train --data-dir <DATA_DIR>" once before the first start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActions()
		},
	}
}

func runActions() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Reference data must load before the server accepts requests.
	data, err := refdata.Load(refdata.Paths{
		Model:       cfg.ModelPath,
		Symptoms:    cfg.SymptomsPath,
		Medications: cfg.MedicationsPath,
		Lexicon:     cfg.LexiconPath,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load reference data")
	}

	booker := appointment.NewService(
		sibling.New(cfg.APIGatewayURL, cfg.SiblingTimeout),
		sibling.New(cfg.PatientServiceURL, cfg.SiblingTimeout),
	)

	actionLogger := logger.With().Str("component", "actions").Logger()
	registry, err := dialogue.NewRegistry(
		dialogue.NewDiagnoseAction(data.Vectorizer, data.Forest, actionLogger),
		dialogue.NewSuggestMedicationAction(data.Formulary, actionLogger),
		dialogue.NewBookAppointmentAction(booker, actionLogger),
		dialogue.AskSymptomsAgainAction{},
		dialogue.ConfirmSymptomsAction{},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register actions")
	}

	e := newEcho()
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	dialogue.NewHandler(registry, logger).RegisterRoutes(e)

	logger.Info().Strs("actions", registry.Names()).Msg("actions registered")
	return serve(e, ":"+cfg.ActionsPort, logger)
}
