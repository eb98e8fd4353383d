// Package server exposes the train, refit and model-snapshot operations over
// HTTP with JSON bodies.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"shapelab/internal/config"
	"shapelab/internal/logging"
	"shapelab/internal/store"
	"shapelab/internal/trainer"
)

// Server routes requests to the trainer and the two snapshot stores.
type Server struct {
	cfg     *config.Config
	trainer *trainer.Service
	models  store.Store
	saved   store.Store
	logger  *zap.Logger
}

// New creates a server. models holds generated snapshots, saved holds user edits.
func New(cfg *config.Config, svc *trainer.Service, models, saved store.Store) *Server {
	return &Server{
		cfg:     cfg,
		trainer: svc,
		models:  models,
		saved:   saved,
		logger:  logging.Get(logging.CategoryHTTP),
	}
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /train", s.handleTrain)
	mux.HandleFunc("POST /refit", s.handleRefit)
	mux.HandleFunc("GET /models", s.handleList(s.models))
	mux.HandleFunc("GET /models/{name}", s.handleGet(s.models))
	mux.HandleFunc("GET /saved-models", s.handleList(s.saved))
	mux.HandleFunc("GET /saved-models/{name}", s.handleGet(s.saved))
	mux.HandleFunc("POST /saved-models", s.handleSave)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	h = s.limitBody(h)
	h = s.cors(h)
	h = s.requestLog(h)
	if s.cfg.Server.H2C {
		h = h2c.NewHandler(h, &http2.Server{})
	}
	return h
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening",
			zap.String("addr", ln.Addr().String()),
			zap.Bool("h2c", s.cfg.Server.H2C))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownGrace())
	defer cancel()
	s.logger.Info("shutting down", zap.Duration("grace", s.cfg.GetShutdownGrace()))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

