package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"polar-billing-bridge/internal/client"
	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/normalize"
	"polar-billing-bridge/internal/polar"
	"polar-billing-bridge/internal/reconcile"
	"polar-billing-bridge/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type CheckoutLinkRequest struct {
	ProductIDs         []string
	SubscriptionID     *string
	Origin             string
	SuccessURL         string
	TrialInterval      *string
	TrialIntervalCount *int
	Locale             *string
}

type CheckoutService interface {
	GenerateCheckoutLink(ctx context.Context, userID string, req CheckoutLinkRequest) (string, error)
	GenerateCustomerPortalLink(ctx context.Context, userID string) (string, error)

	// UpdateSubscription applies an administrative write. It fails with
	// reconcile.ErrNotFound instead of creating the subscription.
	UpdateSubscription(ctx context.Context, sub *model.Subscription) (reconcile.Result, error)
	CancelSubscription(ctx context.Context, subscriptionID string, revoke bool) (*model.Subscription, error)
	ChangeSubscription(ctx context.Context, subscriptionID, productID string) (*model.Subscription, error)
}

type checkoutServiceImpl struct {
	polarClient      client.PolarClient
	userRepo         repository.UserRepository
	customerRepo     repository.CustomerRepository
	subscriptionRepo repository.SubscriptionRepository
	subscriptions    *reconcile.Reconciler[model.Subscription, *model.Subscription]
}

func NewCheckoutService(
	db *gorm.DB,
	polarClient client.PolarClient,
	userRepo repository.UserRepository,
	customerRepo repository.CustomerRepository,
	subscriptionRepo repository.SubscriptionRepository,
) CheckoutService {
	return &checkoutServiceImpl{
		polarClient:      polarClient,
		userRepo:         userRepo,
		customerRepo:     customerRepo,
		subscriptionRepo: subscriptionRepo,
		subscriptions:    reconcile.New[model.Subscription](db),
	}
}

func (s *checkoutServiceImpl) GenerateCheckoutLink(ctx context.Context, userID string, req CheckoutLinkRequest) (string, error) {
	if len(req.ProductIDs) == 0 {
		return "", fmt.Errorf("%w: at least one product id is required", ErrInvalidInput)
	}
	if req.TrialIntervalCount != nil && req.TrialInterval == nil {
		return "", fmt.Errorf("%w: trial interval count without trial interval", ErrInvalidInput)
	}

	customer, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	checkoutReq := &client.CheckoutCreate{
		Products:       req.ProductIDs,
		CustomerID:     &customer.ExternalID,
		SubscriptionID: req.SubscriptionID,
		Metadata:       map[string]any{userIDMetadataKey: userID},
	}
	if req.Origin != "" {
		checkoutReq.EmbedOrigin = &req.Origin
	}
	if req.SuccessURL != "" {
		checkoutReq.SuccessURL = &req.SuccessURL
	}
	if req.TrialInterval != nil {
		allowTrial := true
		checkoutReq.AllowTrial = &allowTrial
		checkoutReq.TrialInterval = req.TrialInterval
		checkoutReq.TrialIntervalCount = req.TrialIntervalCount
	}

	checkout, err := s.polarClient.CreateCheckout(ctx, checkoutReq)
	if err != nil {
		return "", err
	}

	if req.Locale == nil || strings.TrimSpace(*req.Locale) == "" {
		return checkout.URL, nil
	}
	return withLocale(checkout.URL, strings.TrimSpace(*req.Locale))
}

func withLocale(rawURL, locale string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse checkout url: %w", err)
	}
	q := u.Query()
	q.Set("locale", locale)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ensureCustomer returns the user's customer, creating it upstream and in the
// mirror on first use. The upstream record carries the user id in its
// metadata so later webhooks resolve back to the user.
func (s *checkoutServiceImpl) ensureCustomer(ctx context.Context, userID string) (*model.Customer, error) {
	customer, err := s.customerRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find customer for user %s: %w", userID, err)
	}
	if customer != nil {
		return customer, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	req := &client.CustomerCreate{
		Email:      user.Email,
		ExternalID: &user.ID,
		Metadata:   map[string]any{userIDMetadataKey: user.ID},
	}
	if user.Name != "" {
		req.Name = &user.Name
	}
	created, err := s.polarClient.CreateCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize.Customer(*created, user.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.customerRepo.Insert(ctx, normalized); err != nil {
		return nil, fmt.Errorf("store customer %s: %w", created.ID, err)
	}

	// a concurrent request may have stored a different customer first
	stored, err := s.customerRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find customer for user %s: %w", userID, err)
	}
	if stored.ExternalID != created.ID {
		log.Warn().
			Str("user_id", userID).
			Str("kept_customer_id", stored.ExternalID).
			Str("orphan_customer_id", created.ID).
			Msg("customer already existed for user")
	}
	return stored, nil
}

func (s *checkoutServiceImpl) GenerateCustomerPortalLink(ctx context.Context, userID string) (string, error) {
	customer, err := s.customerRepo.FindByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("find customer for user %s: %w", userID, err)
	}
	if customer == nil {
		return "", fmt.Errorf("%w: user %s", ErrCustomerNotFound, userID)
	}

	session, err := s.polarClient.CreateCustomerSession(ctx, customer.ExternalID)
	if err != nil {
		return "", err
	}
	return session.CustomerPortalURL, nil
}

func (s *checkoutServiceImpl) UpdateSubscription(ctx context.Context, sub *model.Subscription) (reconcile.Result, error) {
	if err := normalize.SubscriptionRecord(sub); err != nil {
		return reconcile.Result{}, err
	}
	return s.subscriptions.UpdateOnly(ctx, sub)
}

func (s *checkoutServiceImpl) CancelSubscription(ctx context.Context, subscriptionID string, revoke bool) (*model.Subscription, error) {
	update := &client.SubscriptionUpdate{}
	if revoke {
		update.Revoke = &revoke
	} else {
		cancel := true
		update.CancelAtPeriodEnd = &cancel
	}
	return s.patchSubscription(ctx, subscriptionID, update)
}

func (s *checkoutServiceImpl) ChangeSubscription(ctx context.Context, subscriptionID, productID string) (*model.Subscription, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	return s.patchSubscription(ctx, subscriptionID, &client.SubscriptionUpdate{ProductID: &productID})
}

// patchSubscription updates the subscription upstream and reconciles the
// returned state without waiting for the webhook.
func (s *checkoutServiceImpl) patchSubscription(ctx context.Context, subscriptionID string, update *client.SubscriptionUpdate) (*model.Subscription, error) {
	stored, err := s.subscriptionRepo.FindByExternalID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("find subscription %s: %w", subscriptionID, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, reconcile.ErrNotFound)
	}

	updated, err := s.polarClient.UpdateSubscription(ctx, subscriptionID, update)
	if err != nil {
		return nil, err
	}
	return s.reconcileUpstream(ctx, *updated, stored.UserID)
}

func (s *checkoutServiceImpl) reconcileUpstream(ctx context.Context, in polar.Subscription, userID string) (*model.Subscription, error) {
	sub, err := normalize.Subscription(in, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.subscriptions.UpdateOnly(ctx, sub); err != nil {
		return nil, err
	}
	return s.subscriptionRepo.FindByExternalID(ctx, in.ID)
}
