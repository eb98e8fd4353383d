package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shapelab/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Starts the HTTP API on server.addr (SHAPELAB_ADDR):

  POST /train                 fit a model and return editable partials
  POST /refit                 apply edits, continue fitting with locked features
  GET  /models[/{name}]       generated model snapshots
  GET  /saved-models[/{name}] user-saved snapshots
  POST /saved-models          save a snapshot
  GET  /healthz               liveness`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, a.trainer, a.models, a.saved)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("stopping", zap.Error(context.Cause(ctx)))
		return nil
	})
	return g.Wait()
}
