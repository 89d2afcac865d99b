package main

import (
	"fmt"

	"polar-billing-bridge/internal/client"
	"polar-billing-bridge/internal/config"
	"polar-billing-bridge/internal/notify"
	"polar-billing-bridge/internal/repository"
	"polar-billing-bridge/internal/service"
	"polar-billing-bridge/internal/webhook"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app wires the services shared by every command.
type app struct {
	db                  *gorm.DB
	polarClient         client.PolarClient
	subscriptionService service.SubscriptionService
	checkoutService     service.CheckoutService
	catalogService      service.CatalogService
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := client.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	polarClient := client.NewPolarClient(&cfg.Polar)

	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	productRepo := repository.NewProductRepository(db)

	return &app{
		db:          db,
		polarClient: polarClient,
		subscriptionService: service.NewSubscriptionService(
			customerRepo,
			subscriptionRepo,
			productRepo,
			repository.NewOrderRepository(db),
			repository.NewBenefitGrantRepository(db),
			nil,
		),
		checkoutService: service.NewCheckoutService(db, polarClient, userRepo, customerRepo, subscriptionRepo),
		catalogService:  service.NewCatalogService(db, polarClient),
	}, nil
}

func (a *app) webhookService(cfg *config.Config) (service.WebhookService, error) {
	verifier, err := webhook.NewVerifier(cfg.Polar.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("POLAR_WEBHOOK_SECRET: %w", err)
	}

	return service.NewWebhookService(
		a.db,
		verifier,
		cfg.Polar.FreeProductID,
		newNotifier(cfg),
		repository.NewUserRepository(a.db),
		repository.NewCustomerRepository(a.db),
		repository.NewProductRepository(a.db),
		repository.NewWebhookEventRepository(a.db),
	), nil
}

func newNotifier(cfg *config.Config) notify.Notifier {
	var sender notify.Sender
	if cfg.Email.PostmarkToken != "" {
		sender = notify.NewPostmarkSender(cfg.Email.PostmarkToken)
	} else {
		log.Warn().Msg("EMAIL_POSTMARK_TOKEN not set, notification emails are only logged")
		sender = notify.NewLogSender(func(to, subject, body string) {
			log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email")
		})
	}
	return notify.NewEmailNotifier(sender, cfg.Email.From, cfg.BaseURL)
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
