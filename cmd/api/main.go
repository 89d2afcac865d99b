package main

import (
	"fmt"
	"os"

	"polar-billing-bridge/internal/config"
	"polar-billing-bridge/internal/logging"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfg = &config.Config{}

var rootCmd = &cobra.Command{
	Use:           "polar-bridge",
	Short:         "Mirror Polar billing state into the application database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// load .env into os.Environ
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "No .env file found (ok in prod)")
		}

		if err := env.Parse(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}

		logging.Init(logging.Config{
			Format:    cfg.Log.Format,
			Level:     cfg.Log.Level,
			Component: "polar-bridge",
		})
		log.Debug().Str("environment", cfg.Environment.Name).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, syncProductsCmd, seedCmd, issueTokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
