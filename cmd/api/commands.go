package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polar-billing-bridge/internal/middleware"
	"polar-billing-bridge/internal/server"
	"polar-billing-bridge/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver and billing API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		webhookService, err := a.webhookService(cfg)
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required to serve the billing API")
		}

		srv := server.NewServer(
			server.Options{WebhookPath: cfg.Polar.WebhookPath, JWTSecret: cfg.Auth.JWTSecret},
			webhookService,
			a.subscriptionService,
			a.checkoutService,
			a.catalogService,
		)

		serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
		log.Info().Str("addr", serverAddr).Str("webhook_path", cfg.Polar.WebhookPath).Msg("starting HTTP server")

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-sigChan:
		}
		log.Info().Msg("signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	},
}

var syncProductsCmd = &cobra.Command{
	Use:   "sync-products",
	Short: "Mirror every Polar product into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.catalogService.SyncProducts(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d products\n", n)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Create the products defined in a YAML catalog file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		seed, err := service.ParseSeedFile(f)
		if err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.catalogService.Seed(cmd.Context(), seed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d, archived %d, synced %d products\n", len(res.Created), len(res.Archived), res.Synced)
		return nil
	},
}

var (
	tokenRole string
	tokenTTL  time.Duration
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <user-id>",
	Short: "Sign an API access token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := middleware.NewToken(cfg.Auth.JWTSecret, args[0], tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	issueTokenCmd.Flags().StringVar(&tokenRole, "role", "", "role claim, e.g. admin")
	issueTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}
