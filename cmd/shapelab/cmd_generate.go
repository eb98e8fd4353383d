package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shapelab/internal/logging"
	"shapelab/internal/trainer"
)

var generateCmd = &cobra.Command{
	Use:   "generate-models [dataset...]",
	Short: "Train every dataset and store the snapshots in the models collection",
	Long: `Trains each dataset with generate.seed and generate.points from the config
and writes one snapshot per dataset to the models collection. Datasets run
concurrently, up to limits.generate_concurrency at a time.

With no arguments, generate.datasets is used, or every configured dataset.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ids := args
	if len(ids) == 0 {
		ids = cfg.Generate.Datasets
	}
	if len(ids) == 0 {
		ids = a.trainer.Datasets()
	}
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Limits.GenerateConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			points := cfg.Generate.Points
			resp, err := a.trainer.Train(ctx, trainer.TrainRequest{
				Dataset: id,
				Seed:    cfg.Generate.Seed,
				Points:  &points,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			data, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			if err := a.models.Write(ctx, id, data); err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logging.Audit(logging.AuditModelsWritten,
		zap.Strings("datasets", ids),
		zap.Int64("seed", cfg.Generate.Seed),
		zap.Int("points", cfg.Generate.Points))
	return nil
}
