package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/obrapay/abono/internal/infra/postgres"
	"github.com/obrapay/abono/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("seed", false, "Insert two demo projects (one cash, one credit)")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations to the configured store",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	seed, _ := cmd.Flags().GetBool("seed")
	ctx := cmd.Context()

	switch cfg.Store.Backend {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
			return err
		}
		db, err := sqlite.Open(cfg.Store.Path) // Open migrates
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(os.Stdout, "sqlite ledger migrated: %s\n", cfg.Store.Path)
		if seed {
			return seedProjects(ctx, db.InsertProject)
		}
		return nil

	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("postgres backend requires store.dsn or ABONO_DSN")
		}
		store, err := postgres.Open(cfg.Store.DSN, cfg.Store.LockTimeoutDuration())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "postgres ledger migrated")
		if seed {
			return seedProjects(ctx, store.InsertProject)
		}
		return nil

	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func seedProjects(ctx context.Context, insert func(context.Context, decimal.Decimal, bool) (int64, error)) error {
	cashID, err := insert(ctx, decimal.RequireFromString("1000.00"), false)
	if err != nil {
		return err
	}
	creditID, err := insert(ctx, decimal.RequireFromString("2500.00"), true)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "seeded demo projects: cash=%d credit=%d\n", cashID, creditID)
	return nil
}
