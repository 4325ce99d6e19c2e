// Package cmd wires the catalogd command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-data/catalogd/pkg/config"
	"github.com/meridian-data/catalogd/pkg/crypto"
	"github.com/meridian-data/catalogd/pkg/database"
	"github.com/meridian-data/catalogd/pkg/logging"
	"github.com/meridian-data/catalogd/pkg/models"
	"github.com/meridian-data/catalogd/pkg/repositories"
	"github.com/meridian-data/catalogd/pkg/services"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "catalogd",
	Short: "PostgreSQL metadata inventory and drift tracking",
	Long: `catalogd extracts schema, table, and column metadata from PostgreSQL
databases into versioned snapshots, computes incremental diffs between
snapshots, and profiles data quality.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. Errors are printed once here, not by cobra.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Env, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, logger, nil
}

// openStore connects to the catalog store.
func openStore(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	return database.NewConnection(ctx, &database.Config{
		URL:            cfg.Store.ConnectionString(),
		MaxConnections: cfg.Store.MaxConnections,
	})
}

// openSource resolves the stored credential for a connection and opens a
// pool against the source database.
func openSource(ctx context.Context, db *database.DB, cfg *config.Config, logger *zap.Logger, connectionName string) (*pgxpool.Pool, *models.Credential, error) {
	creds, err := credentialService(db, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cred, err := creds.Resolve(ctx, connectionName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve credential for %s: %w", connectionName, err)
	}

	pool, err := pgxpool.New(ctx, cred.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to source %s: %w", connectionName, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping source %s: %w", connectionName, err)
	}

	return pool, cred, nil
}

func credentialService(db *database.DB, cfg *config.Config, logger *zap.Logger) (services.CredentialService, error) {
	cipher, err := crypto.NewPasswordCipher(cfg.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("credentials key: %w (set CATALOGD_CREDENTIALS_KEY)", err)
	}
	repo := repositories.NewCredentialRepository(db)
	return services.NewCredentialService(repo, cipher, logger), nil
}
