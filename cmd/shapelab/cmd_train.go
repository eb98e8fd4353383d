package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shapelab/internal/trainer"
)

var (
	trainDataset   string
	trainSeed      int64
	trainPoints    int
	trainModel     string
	trainEstimator int
	trainBoostRate float64
	trainInitReg   float64
	trainELMAlpha  float64
	trainEarlyStop int
	outputJSON     bool
	saveAs         string

	refitEditsPath string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a model on a dataset and print the result",
	Long: `Fits the configured model on one dataset and prints a summary of the
train/test metrics and the partial for every feature.

Example:
  shapelab train --dataset synthetic_regression --seed 3 --points 20`,
	RunE: runTrain,
}

var refitCmd = &cobra.Command{
	Use:   "refit",
	Short: "Apply edited partials and continue fitting",
	Long: `Reads a refit request (partials, locked, rounds, ...) from a JSON file,
applies the edits and runs the extra rounds. Flags override the request's
dataset and hyperparameters.

Example:
  shapelab refit --edits edits.json --dataset synthetic_regression`,
	RunE: runRefit,
}

func init() {
	for _, c := range []*cobra.Command{trainCmd, refitCmd} {
		f := c.Flags()
		f.StringVarP(&trainDataset, "dataset", "d", "", "Dataset id")
		f.Int64Var(&trainSeed, "seed", 0, "Random seed for the split")
		f.IntVar(&trainPoints, "points", 0, "Knots per numeric partial (2-250)")
		f.StringVar(&trainModel, "model", "", "Model variant: basic, interactive")
		f.IntVar(&trainEstimator, "n-estimators", 0, "Boosting rounds (10-500)")
		f.Float64Var(&trainBoostRate, "boost-rate", 0, "Boost rate (0.01-1)")
		f.Float64Var(&trainInitReg, "init-reg", 0, "First-round regularization (0.01-10)")
		f.Float64Var(&trainELMAlpha, "elm-alpha", 0, "Regularization after the first round (0.01-10)")
		f.IntVar(&trainEarlyStop, "early-stopping", 0, "Early-stopping patience (5-200)")
		f.BoolVar(&outputJSON, "json", false, "Print the full response as JSON")
		f.StringVar(&saveAs, "save", "", "Also store the response under this name in saved-models")
	}
	trainCmd.MarkFlagRequired("dataset")
	refitCmd.Flags().StringVar(&refitEditsPath, "edits", "", "JSON file with the refit request (required)")
	refitCmd.MarkFlagRequired("edits")
}

// applyTrainFlags copies explicitly set flags into req.
func applyTrainFlags(cmd *cobra.Command, req *trainer.TrainRequest) {
	f := cmd.Flags()
	if f.Changed("dataset") {
		req.Dataset = trainDataset
	}
	if f.Changed("seed") {
		req.Seed = trainSeed
	}
	if f.Changed("points") {
		req.Points = &trainPoints
	}
	if f.Changed("model") {
		req.Model = trainModel
	}
	if f.Changed("n-estimators") {
		req.NEstimators = &trainEstimator
	}
	if f.Changed("boost-rate") {
		req.BoostRate = &trainBoostRate
	}
	if f.Changed("init-reg") {
		req.InitReg = &trainInitReg
	}
	if f.Changed("elm-alpha") {
		req.ELMAlpha = &trainELMAlpha
	}
	if f.Changed("early-stopping") {
		req.EarlyStopping = &trainEarlyStop
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var req trainer.TrainRequest
	applyTrainFlags(cmd, &req)

	resp, err := a.trainer.Train(cmd.Context(), req)
	if err != nil {
		return err
	}
	return emit(cmd, a, resp)
}

func runRefit(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(refitEditsPath)
	if err != nil {
		return fmt.Errorf("failed to read edits: %w", err)
	}
	var req trainer.RefitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse edits %s: %w", refitEditsPath, err)
	}
	applyTrainFlags(cmd, &req.TrainRequest)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.trainer.Refit(cmd.Context(), req)
	if err != nil {
		return err
	}
	return emit(cmd, a, resp)
}

// emit prints resp and optionally saves it.
func emit(cmd *cobra.Command, a *app, resp *trainer.Response) error {
	if saveAs != "" {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		if err := a.saved.Write(cmd.Context(), saveAs, data); err != nil {
			return err
		}
		logger.Info("saved response", zap.String("name", saveAs))
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintln(out, renderSummary(resp))
	return nil
}
