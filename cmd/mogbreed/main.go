// Command mogbreed serves the breeding engine over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/MJE43/mogwai-breed-go/internal/api"
	"github.com/MJE43/mogwai-breed-go/internal/config"
	"github.com/MJE43/mogwai-breed-go/internal/logging"
	"github.com/MJE43/mogwai-breed-go/internal/store"
	"github.com/MJE43/mogwai-breed-go/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mogbreed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	var db store.DB
	if cfg.StoreEnabled {
		sqlite, err := store.NewSQLiteDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer sqlite.Close()
		if err := sqlite.Migrate(); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
		db = sqlite
		logger.Info().Str("path", cfg.DBPath).Msg("store ready")
	} else {
		logger.Warn().Msg("store disabled, scans will not be persisted")
	}

	server := api.NewServer(db, logger, telemetry.New(), api.Options{
		Scheme:        cfg.Scheme(),
		ScanTimeout:   cfg.ScanTimeout,
		MaxNonceRange: cfg.MaxNonceRange,
		Workers:       cfg.ScanWorkers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, server, logger)
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, cfg config.Config, server *api.Server, logger zerolog.Logger) error {
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.ScanTimeout + 15*time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	logger.Info().Str("addr", ln.Addr().String()).Str("engine_version", api.EngineVersion).Msg("listening")

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.Serve(ln)
	}()

	reason := "signal"
	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		reason = "closed"
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	server.SecurityLogger().LogSystemShutdown(reason, server.Uptime())
	return nil
}
