package cli

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/obrapay/abono/internal/api"
	"github.com/obrapay/abono/internal/daemon"
	"github.com/obrapay/abono/internal/domain"
	"github.com/obrapay/abono/internal/infra/events"
	"github.com/obrapay/abono/internal/infra/postgres"
	"github.com/obrapay/abono/internal/infra/sqlite"
	"github.com/obrapay/abono/internal/ledger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger HTTP API",
	Long:  `Start the abonod HTTP server exposing the payment ledger operations.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []ledger.Option{}
	if cfg.Events.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
		log.Printf("publishing ledger events to %v topic %q", cfg.Events.Brokers, cfg.Events.Topic)
	}

	srv := api.NewServer(ledger.New(store, opts...))
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	log.Printf("abonod listening on %s (store: %s)", cfg.API.Addr(), cfg.Store.Backend)
	return http.ListenAndServe(cfg.API.Addr(), srv.Handler())
}

// openStore builds the configured ledger backend.
func openStore(cfg daemon.StoreConfig) (domain.LedgerStore, func() error, error) {
	switch cfg.Backend {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, nil, err
		}
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("postgres backend requires store.dsn or ABONO_DSN")
		}
		store, err := postgres.Open(cfg.DSN, cfg.LockTimeoutDuration())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
