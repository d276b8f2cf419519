package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"playlistqa/internal/config"
	"playlistqa/internal/datastore"
	"playlistqa/internal/http/middleware"
	"playlistqa/internal/httpapi"
	"playlistqa/internal/logging"
	"playlistqa/internal/playlists"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("playlistqa exited")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return serveDiagnostic(ctx, err)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.SetGlobal(logger)
	logger.Info().Object("config", cfg).Msg("configuration loaded")

	handler, closeClient := newAppHandler(ctx, cfg, logger)
	defer func() {
		if err := closeClient(); err != nil {
			logger.Warn().Err(err).Msg("close data store client")
		}
	}()

	logger.Info().Str("addr", cfg.Addr()).Msg("API listening")
	return listen(ctx, newServer(cfg.Addr(), handler), logger)
}

// newAppHandler connects the data store and builds the API handler. When the
// client cannot be created the returned handler answers every request with a
// diagnostic instead.
func newAppHandler(ctx context.Context, cfg config.Config, logger zerolog.Logger) (http.Handler, func() error) {
	client, closeClient, err := datastore.New(ctx, datastore.Options{
		URL:        cfg.DataStore.URL,
		ServiceKey: cfg.DataStore.ServiceKey,
		Timeout:    cfg.DataStore.Timeout,
	})
	if err != nil {
		err = fmt.Errorf("create data store client: %w", err)
		logger.Error().Err(err).Msg("data store unavailable; serving diagnostic responses only")
		return middleware.CORS(cfg.CORS.AllowedOrigins)(httpapi.Unavailable(nil, err)), func() error { return nil }
	}

	store := playlists.New(client, cfg.DataStore.Timeout)
	return newHTTPHandler(cfg, store, logger), closeClient
}

// serveDiagnostic keeps the process reachable when configuration failed, so
// every request reports the problem instead of the service silently missing.
func serveDiagnostic(ctx context.Context, cause error) error {
	logger := logging.New(logging.Config{Level: "info"})
	logging.SetGlobal(logger)

	var missing *config.MissingError
	var names []string
	if errors.As(cause, &missing) {
		names = missing.Vars
	}
	logger.Error().Err(cause).Strs("missing", names).Msg("configuration invalid; serving diagnostic responses only")

	addr := fmt.Sprintf(":%d", config.PortFromEnv())
	return listen(ctx, newServer(addr, httpapi.Unavailable(names, cause)), logger)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func listen(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
