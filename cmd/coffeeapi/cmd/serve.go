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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/auth"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/bunx"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/migrations"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/repository"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/server"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/drink"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/validation"
)

const (
	// schemaCacheSize covers the create and update documents with room to spare.
	schemaCacheSize = 8

	// requestTimeout cancels handler contexts before the server write timeout.
	requestTimeout = 10 * time.Second
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the drinks API server",
	Long:  `Starts the HTTP server exposing the /drinks endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Auth.Validate(); err != nil {
			return err
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxOpenConns(cfg.MaxDBConnections))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		slog.Info("connected to database", "type", bunx.DetectDatabaseType(cfg.DatabaseURL))

		if migrateOnStart {
			group, err := migrations.Up(cmd.Context(), db)
			if err != nil {
				return err
			}
			if group.ID == 0 {
				slog.Info("no new migrations to apply")
			} else {
				slog.Info("applied migrations", "group", group.ID)
			}
		}

		verifier, keys, err := auth.NewVerifierFromConfig(cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize token verifier: %w", err)
		}

		// Warm the key set so a misconfigured issuer shows up at startup. The
		// server still starts; requests fail with key_set_unavailable until a
		// fetch succeeds.
		warmCtx, cancelWarm := context.WithTimeout(cmd.Context(), cfg.Auth.HTTPTimeout)
		if _, err := keys.Refresh(warmCtx); err != nil {
			slog.Warn("initial key set fetch failed", "error", err)
		}
		cancelWarm()

		validator, err := validation.NewSchemaValidator(schemaCacheSize)
		if err != nil {
			return fmt.Errorf("failed to initialize request validator: %w", err)
		}

		drinkService := drink.NewService(repository.NewBunDrinkRepository(db))

		corsOpts := server.CORSOptionsFor(cfg.AllowedOrigins)
		handler, err := server.NewH2CHandler(server.RouterOptions{
			DrinkService:  drinkService,
			Validator:     validator,
			Verifier:      verifier,
			CORSOptions:   &corsOpts,
			Middleware:    []func(http.Handler) http.Handler{middleware.Timeout(requestTimeout)},
			HealthHandler: server.PingHealthHandler(db),
		})
		if err != nil {
			return fmt.Errorf("failed to build router: %w", err)
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			slog.Info("starting server", "addr", cfg.ServerAddr, "issuer", cfg.Auth.Issuer)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			slog.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			slog.Info("server stopped gracefully")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}
