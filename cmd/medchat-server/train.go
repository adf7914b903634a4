package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/medchat/medchat/internal/domain/diagnosis"
	"github.com/medchat/medchat/internal/platform/refdata"
)

func trainCmd() *cobra.Command {
	defaults := diagnosis.DefaultTrainConfig()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Generate synthetic data, train the disease classifier and write model.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			dataDir, _ := flags.GetString("data-dir")
			samples, _ := flags.GetInt("samples")
			testFraction, _ := flags.GetFloat64("test-fraction")
			csvPath, _ := flags.GetString("csv")

			cfg := defaults
			cfg.Trees, _ = flags.GetInt("trees")
			cfg.MaxDepth, _ = flags.GetInt("max-depth")
			cfg.Seed, _ = flags.GetInt64("seed")

			return runTrain(dataDir, samples, testFraction, csvPath, cfg)
		},
	}
	cmd.Flags().String("data-dir", "./data", "Directory to write model.json and symptoms.json")
	cmd.Flags().Int("samples", 200, "Synthetic samples per disease")
	cmd.Flags().Float64("test-fraction", 0.2, "Share of samples held out for evaluation")
	cmd.Flags().String("csv", "", "Optional path to also write the generated dataset as CSV")
	cmd.Flags().Int("trees", defaults.Trees, "Number of trees")
	cmd.Flags().Int("max-depth", defaults.MaxDepth, "Maximum tree depth (0 for unlimited)")
	cmd.Flags().Int64("seed", defaults.Seed, "Random seed for generation and training")
	return cmd
}

func runTrain(dataDir string, samples int, testFraction float64, csvPath string, cfg diagnosis.TrainConfig) error {
	logger := newLogger()

	if samples <= 0 {
		return fmt.Errorf("--samples must be positive")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return fmt.Errorf("--test-fraction must be between 0 and 1")
	}

	ds := diagnosis.Generate(diagnosis.SymptomKeys, diagnosis.DefaultProfiles, samples, cfg.Seed)
	logger.Info().Int("samples", ds.Len()).Int("features", len(ds.Features)).Msg("dataset generated")

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", csvPath, err)
		}
		if err := ds.WriteCSV(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info().Str("path", csvPath).Msg("dataset written")
	}

	trainSet, testSet := ds.Split(testFraction, cfg.Seed)
	forest, err := diagnosis.Train(trainSet, cfg)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	report, err := diagnosis.Evaluate(forest, testSet)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	logger.Info().Int("test_samples", report.Samples).Float64("accuracy", report.Accuracy).Msg("evaluation")
	for _, c := range report.Classes {
		logger.Info().
			Str("label", c.Label).
			Int("support", c.Support).
			Float64("sensitivity", c.Sensitivity).
			Float64("specificity", c.Specificity).
			Msg("class metrics")
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}
	modelPath := filepath.Join(dataDir, "model.json")
	if err := forest.Save(modelPath); err != nil {
		return err
	}
	symptomsPath := filepath.Join(dataDir, "symptoms.json")
	if err := refdata.WriteSymptomKeys(symptomsPath, ds.Features); err != nil {
		return err
	}

	logger.Info().Str("model", modelPath).Str("symptoms", symptomsPath).Int("trees", len(forest.Trees)).Msg("model saved")
	return nil
}
