package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"weighttracker/internal/adapter/memory"
	"weighttracker/internal/adapter/postgres"
	"weighttracker/internal/adapter/sqlite"
	"weighttracker/internal/app"
	"weighttracker/internal/auth"
	"weighttracker/internal/config"
	"weighttracker/internal/domain"
	"weighttracker/internal/logging"
)

// cli carries state shared by the subcommands once the root pre-run has
// loaded the configuration.
type cli struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "weighttracker",
		Short:         "Personal weight tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			c.cfg = cfg
			return nil
		},
	}
	root.AddCommand(
		c.newServeCmd(),
		c.newMigrateCmd(),
		c.newUserAddCmd(),
		c.newTokenCmd(),
	)
	return root
}

// store is everything the services need from a backing store.
type store interface {
	domain.UserRepository
	domain.MeasurementRepository
	domain.GoalRepository
	Ping(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func newAuthService(cfg config.Config, users domain.UserRepository) (*app.AuthService, error) {
	tokens, err := auth.NewTokenManager(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return app.NewAuthService(users, auth.NewPasswordHasher(cost), tokens), nil
}

// withTimeout bounds operator commands that talk to the store.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}
