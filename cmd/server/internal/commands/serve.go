package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stocktide/stocktide/internal/identity"
	"github.com/stocktide/stocktide/internal/logger"
	"github.com/stocktide/stocktide/internal/server"
	"github.com/stocktide/stocktide/internal/sessions"
	"github.com/stocktide/stocktide/internal/telemetry"
)

type ServeCmd struct {
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"STOCKTIDE_LISTEN"`

	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"STOCKTIDE_CORS_ORIGINS"`

	SessionSecret string        `help:"secret key for HMAC signing of session tokens" env:"STOCKTIDE_SESSION_SECRET"`
	SessionTTL    time.Duration `help:"session TTL" default:"168h" env:"STOCKTIDE_SESSION_TTL"`

	Telemetry bool `help:"enable OpenTelemetry metrics export" default:"false" env:"STOCKTIDE_TELEMETRY"`

	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"STOCKTIDE_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *ServeCmd) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 bytes (--session-secret or STOCKTIDE_SESSION_SECRET)")
	}
	if c.StoreType == "postgres" {
		return c.PostgresStore.Validate()
	}
	return nil
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting identity server")

	if c.Telemetry {
		shutdown, err := telemetry.InitTelemetry(ctx, "stocktide-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	var st stores
	switch c.StoreType {
	case "postgres":
		pgStores, pool, err := postgresStores(ctx, c.PostgresStore)
		if err != nil {
			return err
		}
		defer pool.Close()
		st = pgStores
		log.Info().Msg("Using PostgreSQL stores")
	default:
		st = memoryStores()
		log.Info().Msg("Using in-memory stores")
	}

	service := identity.NewService(identity.Config{
		Profiles:   st.Profiles,
		Tenants:    st.Tenants,
		Dependents: st.Dependents,
		Progress:   st.Progress,
	})

	tokens, err := sessions.NewTokenSource([]byte(c.SessionSecret), c.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to create session token source: %w", err)
	}

	handler := server.New(service, tokens).Handler(c.CORSOrigins, log)
	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", c.Listen).Msg("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
	}

	return nil
}
