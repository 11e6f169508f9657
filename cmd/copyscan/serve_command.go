package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kdimtricp/copyscan/internal/api"
	"github.com/kdimtricp/copyscan/internal/assessment"
	"github.com/kdimtricp/copyscan/internal/config"
	"github.com/kdimtricp/copyscan/internal/database"
	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/session"
	"github.com/kdimtricp/copyscan/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(sigCtx, cfg, logger)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := database.NewDB(database.Config{SQLitePath: cfg.Database.SQLitePath})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var blobs storage.Storage
	if cfg.Storage.Dir != "" {
		local, err := storage.NewLocalStorage(cfg.Storage.Dir)
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		blobs = local
	} else {
		blobs = storage.NewMemoryStorage()
	}

	references := func(sessionID string) patterns.ReferenceRepository {
		return database.NewReferenceRepository(db, sessionID)
	}
	sessions := session.NewService(
		assessment.NewSeededEngine(cfg.Analysis.Seed),
		blobs,
		references,
		session.Config{
			StageTimeScale: cfg.Analysis.StageTimeScale,
			MaxKeywords:    cfg.Patterns.MaxKeywords,
		},
		logger,
	)

	app := &api.App{
		Sessions:      sessions,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		Logger:        logger,
	}
	if cfg.Server.UploadRate > 0 {
		app.UploadLimiter = rate.NewLimiter(rate.Limit(cfg.Server.UploadRate), cfg.Server.UploadBurst)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			"port", cfg.Server.Port,
			"database", db.Path(),
			"storage", storageLabel(cfg.Storage.Dir),
			"max_upload_size", cfg.Server.MaxUploadSize)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Closing sessions ends open event streams so Shutdown can drain.
		sessions.Close(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}

func storageLabel(dir string) string {
	if dir == "" {
		return "memory"
	}
	return dir
}
