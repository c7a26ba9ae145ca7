package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktide/stocktide/internal/store"
	postgresstore "github.com/stocktide/stocktide/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

// PostgresStoreFlags configures the PostgreSQL backing store.
type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	MaxConns        int32 `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"STOCKTIDE_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// stores bundles the four store interfaces a command wires together.
type stores struct {
	Profiles   store.ProfileStore
	Tenants    store.TenantStore
	Dependents store.DependentStore
	Progress   store.MigrationStore
}

func memoryStores() stores {
	return stores{
		Profiles:   store.NewMemoryProfileStore(),
		Tenants:    store.NewMemoryTenantStore(),
		Dependents: store.NewMemoryDependentStore(),
		Progress:   store.NewMemoryMigrationStore(),
	}
}

func postgresStores(ctx context.Context, flags PostgresStoreFlags) (stores, *pgxpool.Pool, error) {
	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString:      flags.ConnString,
		MaxConns:        flags.MaxConns,
		MinConns:        flags.MinConns,
		MaxConnLifetime: flags.MaxConnLifetime,
		MaxConnIdleTime: flags.MaxConnIdleTime,
	})
	if err != nil {
		return stores{}, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if flags.AutoMigrate {
		if err := postgresstore.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return stores{}, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return stores{
		Profiles:   postgresstore.NewProfileStore(pool),
		Tenants:    postgresstore.NewTenantStore(pool),
		Dependents: postgresstore.NewDependentStore(pool),
		Progress:   postgresstore.NewMigrationStore(pool),
	}, pool, nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
