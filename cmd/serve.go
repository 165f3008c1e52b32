package cmd

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

	"github.com/camden-git/photogallery/auth"
	"github.com/camden-git/photogallery/events"
	"github.com/camden-git/photogallery/handlers"
	"github.com/camden-git/photogallery/realtime"
	"github.com/camden-git/photogallery/repository"
	"github.com/camden-git/photogallery/services"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the gallery HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}

		warnDevPassword(logger, cfg.UsingDevPassword)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("failed to close stores", "error", err)
			}
		}()

		gate, err := auth.NewGate(cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize admin gate: %w", err)
		}

		hub := realtime.NewHub(logger, cfg.CORS.AllowedOrigins)
		defer hub.Close()

		photos := services.NewPhotoService(
			repository.NewPhotoRepository(st.metadata),
			st.blobs,
			logger,
			services.WithPublisher(events.Fanout(st.publisher, hub)),
		)

		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handlers.NewRouter(cfg, logger, gate, photos, hub),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
			serveErr <- server.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
		return nil
	},
}

func warnDevPassword(logger *slog.Logger, usingDevPassword bool) {
	if usingDevPassword {
		logger.Warn("using the development admin password; set ADMIN_PASSWORD before exposing this server")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address, overrides HTTP_ADDR")
}
