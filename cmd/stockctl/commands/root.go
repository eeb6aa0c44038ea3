package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/keystock/keystock-backend/pkg/config"
	"github.com/keystock/keystock-backend/pkg/db"
	"github.com/keystock/keystock-backend/pkg/logger"
	"github.com/keystock/keystock-backend/pkg/migrate"
)

var (
	jsonOutput  bool
	autoMigrate bool
)

var rootCmd = &cobra.Command{
	Use:   "stockctl",
	Short: "Operator tooling for the KeyStock backend",
	Long: `stockctl runs maintenance tasks against the KeyStock database using the
same KEYSTOCK_* configuration as the API.

Examples:
  stockctl seed-admin                 # create the default admin if no users exist
  stockctl alerts --json              # list low-stock accessories
  stockctl history --date 2026-03-10  # usage registered on a local day`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&autoMigrate, "migrate", false, "Apply pending migrations before running")
}

// env is the configuration and database handle shared by every command.
type env struct {
	cfg    *config.Config
	logg   *logger.Logger
	client *db.Client
}

func (e *env) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

func openEnv(ctx context.Context) (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "stockctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	e := &env{cfg: cfg, logg: logg, client: client}

	if autoMigrate {
		sqlDB, err := client.SQL()
		if err == nil {
			_, err = migrate.Up(ctx, sqlDB, client.Driver())
		}
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("migrate: %w", err), e.Close())
		}
	}
	return e, nil
}

// withEnv opens the environment, runs fn and folds any close error into the
// command result.
func withEnv(ctx context.Context, fn func(e *env) error) (err error) {
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, e.Close())
	}()
	return fn(e)
}
