// Package cli implements the abonod command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/obrapay/abono/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "abonod",
	Short: "Installment-payment ledger daemon",
	Long: `abonod records partial payments (abonos) against a project's
contracted cost and guarantees the accepted total never exceeds it.
Cash clients settle in one exact payment; credit clients pay in
installments bounded by the pending balance.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default ~/.abono/config.toml)")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (daemon.Config, error) {
	path := configPath
	if path == "" {
		path = daemon.DefaultConfigPath()
	}
	return daemon.LoadConfig(path)
}
