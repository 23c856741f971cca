package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/example/provider-matching/internal/config"
	httpapi "github.com/example/provider-matching/internal/http"
	"github.com/example/provider-matching/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.RunMigrations && cfg.PGDSN != "" {
		runMigrations(logger, cfg.PGDSN)
	}

	srv := httpapi.NewServer(cfg, logging.Component(logger, "http"))

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", cfg.HTTPAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if srv.Kafka != nil {
		_ = srv.Kafka.Close()
	}
	logger.Info("server stopped")
}

// runMigrations applies the schema file once at boot when MIGRATE=true. The
// SQL is written to be re-runnable, so a crashed deploy can simply retry.
func runMigrations(logger *slog.Logger, dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration open failed", "error", err)
		return
	}
	defer db.Close()
	path := filepath.Join("migrations", "001_schema.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Error("migration read failed", "path", path, "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec failed", "error", err)
		return
	}
	logger.Info("migration applied", "path", path)
}
