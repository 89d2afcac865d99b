package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"polar-billing-bridge/internal/metrics"
	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/normalize"
	"polar-billing-bridge/internal/notify"
	"polar-billing-bridge/internal/polar"
	"polar-billing-bridge/internal/reconcile"
	"polar-billing-bridge/internal/repository"
	"polar-billing-bridge/internal/webhook"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	outcomeProcessed = "processed"
	outcomeIgnored   = "ignored"
	outcomeFailed    = "failed"

	userIDMetadataKey = "userId"
)

type WebhookService interface {
	// HandleWebhook verifies and processes one delivery. Only verification
	// failures are returned (wrapping webhook.ErrInvalidSignature); handler
	// failures are logged, notified and recorded.
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type eventHandler func(ctx context.Context, data json.RawMessage) error

type webhookServiceImpl struct {
	verifier         *webhook.Verifier
	freeProductID    string
	notifier         notify.Notifier
	userRepo         repository.UserRepository
	customerRepo     repository.CustomerRepository
	productRepo      repository.ProductRepository
	webhookEventRepo repository.WebhookEventRepository

	subscriptions *reconcile.Reconciler[model.Subscription, *model.Subscription]
	products      *reconcile.Reconciler[model.Product, *model.Product]
	orders        *reconcile.Reconciler[model.Order, *model.Order]
	benefits      *reconcile.Reconciler[model.Benefit, *model.Benefit]
	benefitGrants *reconcile.Reconciler[model.BenefitGrant, *model.BenefitGrant]

	handlers        map[string]eventHandler
	failureHandlers map[string]eventHandler
}

func NewWebhookService(
	db *gorm.DB,
	verifier *webhook.Verifier,
	freeProductID string,
	notifier notify.Notifier,
	userRepo repository.UserRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	webhookEventRepo repository.WebhookEventRepository,
) WebhookService {
	s := &webhookServiceImpl{
		verifier:         verifier,
		freeProductID:    freeProductID,
		notifier:         notifier,
		userRepo:         userRepo,
		customerRepo:     customerRepo,
		productRepo:      productRepo,
		webhookEventRepo: webhookEventRepo,
		subscriptions:    reconcile.New[model.Subscription](db),
		products:         reconcile.New[model.Product](db),
		orders:           reconcile.New[model.Order](db),
		benefits:         reconcile.New[model.Benefit](db),
		benefitGrants:    reconcile.New[model.BenefitGrant](db),
	}

	s.handlers = map[string]eventHandler{
		"subscription.created":    s.handleSubscription,
		"subscription.updated":    s.handleSubscription,
		"subscription.active":     s.handleSubscription,
		"subscription.canceled":   s.handleSubscription,
		"subscription.uncanceled": s.handleSubscription,
		"subscription.revoked":    s.handleSubscription,
		"product.created":         s.handleProduct,
		"product.updated":         s.handleProduct,
		"order.created":           s.handleOrder,
		"order.updated":           s.handleOrder,
		"order.paid":              s.handleOrder,
		"order.refunded":          s.handleOrder,
		"benefit.created":         s.handleBenefit,
		"benefit.updated":         s.handleBenefit,
		"benefit_grant.created":   s.handleBenefitGrant,
		"benefit_grant.updated":   s.handleBenefitGrant,
		"benefit_grant.revoked":   s.handleBenefitGrant,
		"customer.created":        s.handleCustomer,
	}
	s.failureHandlers = map[string]eventHandler{}
	for eventType := range s.handlers {
		if strings.HasPrefix(eventType, "subscription.") {
			s.failureHandlers[eventType] = s.notifySubscriptionFailure
		}
	}

	return s
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	msgID, err := s.verifier.Verify(headers, body)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("unverified", "400").Inc()
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	var event polar.Event
	if err := json.Unmarshal(body, &event); err != nil {
		log.Warn().Err(err).Str("webhook_id", msgID).Msg("undecodable webhook envelope")
		s.record(ctx, msgID, "", outcomeFailed, err)
		metrics.WebhookRequestsTotal.WithLabelValues("malformed", "200").Inc()
		return nil
	}
	defer metrics.WebhookRequestsTotal.WithLabelValues(event.Type, "200").Inc()

	logger := log.With().Str("webhook_id", msgID).Str("event_type", event.Type).Logger()

	handle, ok := s.handlers[event.Type]
	if !ok {
		logger.Info().Msg("ignoring unhandled webhook event")
		s.record(ctx, msgID, event.Type, outcomeIgnored, nil)
		return nil
	}

	if err := handle(ctx, event.Data); err != nil {
		metrics.WebhookHandlerFailures.WithLabelValues(event.Type).Inc()
		logger.Error().Err(err).Msg("webhook handler failed")

		if onFailure, ok := s.failureHandlers[event.Type]; ok {
			if ferr := onFailure(ctx, event.Data); ferr != nil {
				logger.Error().Err(ferr).Msg("webhook failure notification failed")
			}
		}
		s.record(ctx, msgID, event.Type, outcomeFailed, err)
		return nil
	}

	logger.Debug().Msg("webhook processed")
	s.record(ctx, msgID, event.Type, outcomeProcessed, nil)
	return nil
}

func (s *webhookServiceImpl) record(ctx context.Context, msgID, eventType, outcome string, cause error) {
	var processingErr string
	if cause != nil {
		processingErr = cause.Error()
	}
	if err := s.webhookEventRepo.Record(ctx, msgID, eventType, outcome, processingErr); err != nil {
		log.Error().Err(err).Str("webhook_id", msgID).Msg("record webhook delivery")
	}
}

func decodeData[T any](data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode event data: %w", err)
	}
	return v, nil
}

func (s *webhookServiceImpl) handleSubscription(ctx context.Context, data json.RawMessage) error {
	in, err := decodeData[polar.Subscription](data)
	if err != nil {
		return err
	}

	user, err := s.resolveUser(ctx, in.Metadata, in.Customer, in.CustomerID)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", in.ID, err)
	}

	if in.Customer != nil {
		if err := s.ensureCustomer(ctx, *in.Customer, user.ID); err != nil {
			return err
		}
	}

	sub, err := normalize.Subscription(in, user.ID)
	if err != nil {
		return err
	}
	res, err := s.subscriptions.Upsert(ctx, sub)
	if err != nil {
		return fmt.Errorf("reconcile subscription %s: %w", in.ID, err)
	}

	log.Info().
		Str("subscription_id", in.ID).
		Str("user_id", user.ID).
		Str("status", in.Status).
		Str("outcome", string(res.Outcome)).
		Msg("subscription reconciled")

	if s.freeProductID != "" && in.ProductID == s.freeProductID {
		return nil
	}

	email := s.subscriptionEmail(ctx, user.Email, in)
	if err := s.notifier.SendSubscriptionSuccessEmail(ctx, email); err != nil {
		// the mirror is already correct; a lost email is not worth a redelivery
		log.Warn().Err(err).Str("subscription_id", in.ID).Msg("send subscription success email")
	}
	return nil
}

// notifySubscriptionFailure is the alternate path for subscription events
// whose handler failed. It reaches whoever it can address.
func (s *webhookServiceImpl) notifySubscriptionFailure(ctx context.Context, data json.RawMessage) error {
	in, err := decodeData[polar.Subscription](data)
	if err != nil {
		return err
	}
	if s.freeProductID != "" && in.ProductID == s.freeProductID {
		return nil
	}

	var email string
	if user, err := s.resolveUser(ctx, in.Metadata, in.Customer, in.CustomerID); err == nil {
		email = user.Email
	}
	if email == "" && in.Customer != nil {
		email = in.Customer.Email
	}
	if email == "" {
		return errors.New("no recipient for subscription failure email")
	}

	return s.notifier.SendSubscriptionErrorEmail(ctx, notify.SubscriptionEmail{
		Email:          email,
		SubscriptionID: in.ID,
	})
}

func (s *webhookServiceImpl) subscriptionEmail(ctx context.Context, to string, in polar.Subscription) notify.SubscriptionEmail {
	e := notify.SubscriptionEmail{
		Email:             to,
		SubscriptionID:    in.ID,
		Status:            in.Status,
		Amount:            in.Amount,
		CancelAtPeriodEnd: in.CancelAtPeriodEnd,
	}
	if in.CurrentPeriodEnd != nil {
		e.PeriodEnd = in.CurrentPeriodEnd.UTC().Format("January 2, 2006")
	}
	if in.Currency != nil {
		e.Currency = *in.Currency
	}
	if in.RecurringInterval != nil {
		e.RecurringInterval = *in.RecurringInterval
	}

	switch {
	case in.Product != nil:
		e.ProductName = in.Product.Name
	default:
		if product, err := s.productRepo.FindByExternalID(ctx, in.ProductID); err == nil && product != nil {
			e.ProductName = product.Name
		}
	}
	return e
}

func (s *webhookServiceImpl) handleProduct(ctx context.Context, data json.RawMessage) error {
	in, err := decodeData[polar.Product](data)
	if err != nil {
		return err
	}
	product, err := normalize.Product(in)
	if err != nil {
		return err
	}
	if _, err := s.products.Upsert(ctx, product); err != nil {
		return fmt.Errorf("reconcile product %s: %w", in.ID, err)
	}
	return nil
}

func (s *webhookServiceImpl) handleOrder(ctx context.Context, data json.RawMessage) error {
	in, err := decodeData[polar.Order](data)
	if err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, in.Metadata, in.Customer, in.CustomerID)
	if err != nil {
		return fmt.Errorf("order %s: %w", in.ID, err)
	}
	order, err := normalize.Order(in, user.ID)
	if err != nil {
		return err
	}
	if _, err := s.orders.Upsert(ctx, order); err != nil {
		return fmt.Errorf("reconcile order %s: %w", in.ID, err)
	}
	return nil
}

func (s *webhookServiceImpl) handleBenefit(ctx context.Context, data json.RawMessage) error {
	in, err := decodeData[polar.Benefit](data)
	if err != nil {
		return err
	}
	benefit, err := normalize.Benefit(in)
	if err != nil {
		return err
	}
	if _, err := s.benefits.Upsert(ctx, benefit); err != nil {
		return fmt.Errorf("reconcile benefit %s: %w", in.ID, err)
	}
	return nil
}

func (s *webhookServiceImpl) handleBenefitGrant(ctx context.Context, data json.RawMessage) error {
	in, err := decodeData[polar.BenefitGrant](data)
	if err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, nil, in.Customer, in.CustomerID)
	if err != nil {
		return fmt.Errorf("benefit grant %s: %w", in.ID, err)
	}
	grant, err := normalize.BenefitGrant(in, user.ID)
	if err != nil {
		return err
	}
	if _, err := s.benefitGrants.Upsert(ctx, grant); err != nil {
		return fmt.Errorf("reconcile benefit grant %s: %w", in.ID, err)
	}
	return nil
}

func (s *webhookServiceImpl) handleCustomer(ctx context.Context, data json.RawMessage) error {
	in, err := decodeData[polar.Customer](data)
	if err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, nil, &in, in.ID)
	if err != nil {
		return fmt.Errorf("customer %s: %w", in.ID, err)
	}
	return s.ensureCustomer(ctx, in, user.ID)
}

func (s *webhookServiceImpl) ensureCustomer(ctx context.Context, in polar.Customer, userID string) error {
	customer, err := normalize.Customer(in, userID)
	if err != nil {
		return err
	}
	if _, err := s.customerRepo.Insert(ctx, customer); err != nil {
		return fmt.Errorf("store customer %s: %w", in.ID, err)
	}
	return nil
}

// resolveUser finds the application user an event belongs to: the payload's
// own metadata first, then the embedded customer's metadata and external id,
// then a customer row already linked to customerID.
func (s *webhookServiceImpl) resolveUser(ctx context.Context, metadata map[string]any, customer *polar.Customer, customerID string) (*model.User, error) {
	userID := metadataUserID(metadata)
	if userID == "" && customer != nil {
		userID = metadataUserID(customer.Metadata)
		if userID == "" && customer.ExternalID != nil {
			userID = *customer.ExternalID
		}
	}
	if userID == "" && customerID != "" {
		stored, err := s.customerRepo.FindByExternalID(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("find customer %s: %w", customerID, err)
		}
		if stored != nil {
			userID = stored.UserID
		}
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return user, nil
}

func metadataUserID(metadata map[string]any) string {
	v, ok := metadata[userIDMetadataKey].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
