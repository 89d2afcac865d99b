package service

import (
	"context"
	"fmt"
	"time"

	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/repository"
)

// SubscriptionWithProduct is a subscription joined with its mirrored product.
// Product is nil when the product is not mirrored.
type SubscriptionWithProduct struct {
	*model.Subscription
	Product *model.Product `json:"product"`
}

// TrialStatus describes the user's effective trial.
type TrialStatus struct {
	InTrial        bool    `json:"inTrial"`
	SubscriptionID string  `json:"subscriptionId,omitempty"`
	TrialEnd       *string `json:"trialEnd,omitempty"`
}

// SubscriptionService answers read queries over the mirror. Absent data is
// reported as nil or an empty slice, never as an error.
type SubscriptionService interface {
	GetCurrentSubscription(ctx context.Context, userID string) (*SubscriptionWithProduct, error)
	ListUserSubscriptions(ctx context.Context, userID string) ([]*SubscriptionWithProduct, error)
	ListAllUserSubscriptions(ctx context.Context, userID string) ([]*SubscriptionWithProduct, error)
	ListProducts(ctx context.Context, includeArchived bool) ([]*model.Product, error)
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	GetCustomerByUserID(ctx context.Context, userID string) (*model.Customer, error)
	GetTrialStatus(ctx context.Context, userID string) (*TrialStatus, error)
	ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error)
	ListUserBenefitGrants(ctx context.Context, userID string) ([]*model.BenefitGrant, error)
}

type subscriptionServiceImpl struct {
	customerRepo     repository.CustomerRepository
	subscriptionRepo repository.SubscriptionRepository
	productRepo      repository.ProductRepository
	orderRepo        repository.OrderRepository
	benefitGrantRepo repository.BenefitGrantRepository
	now              func() time.Time
}

// NewSubscriptionService builds the query layer. now is the evaluation clock
// for trial expiry; nil means time.Now.
func NewSubscriptionService(
	customerRepo repository.CustomerRepository,
	subscriptionRepo repository.SubscriptionRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	benefitGrantRepo repository.BenefitGrantRepository,
	now func() time.Time,
) SubscriptionService {
	if now == nil {
		now = time.Now
	}
	return &subscriptionServiceImpl{
		customerRepo:     customerRepo,
		subscriptionRepo: subscriptionRepo,
		productRepo:      productRepo,
		orderRepo:        orderRepo,
		benefitGrantRepo: benefitGrantRepo,
		now:              now,
	}
}

func (s *subscriptionServiceImpl) GetCurrentSubscription(ctx context.Context, userID string) (*SubscriptionWithProduct, error) {
	current, err := s.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, nil
	}
	return current[0], nil
}

func (s *subscriptionServiceImpl) ListUserSubscriptions(ctx context.Context, userID string) ([]*SubscriptionWithProduct, error) {
	customer, err := s.customerRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find customer for user %s: %w", userID, err)
	}
	if customer == nil {
		return []*SubscriptionWithProduct{}, nil
	}

	open, err := s.subscriptionRepo.ListOpenByCustomer(ctx, customer.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for customer %s: %w", customer.ExternalID, err)
	}

	now := s.now()
	current := make([]*model.Subscription, 0, len(open))
	for _, sub := range open {
		if sub.IsCurrent(now) {
			current = append(current, sub)
		}
	}
	return s.withProducts(ctx, current)
}

func (s *subscriptionServiceImpl) ListAllUserSubscriptions(ctx context.Context, userID string) ([]*SubscriptionWithProduct, error) {
	customer, err := s.customerRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find customer for user %s: %w", userID, err)
	}
	if customer == nil {
		return []*SubscriptionWithProduct{}, nil
	}

	subs, err := s.subscriptionRepo.ListByCustomer(ctx, customer.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for customer %s: %w", customer.ExternalID, err)
	}
	return s.withProducts(ctx, subs)
}

func (s *subscriptionServiceImpl) withProducts(ctx context.Context, subs []*model.Subscription) ([]*SubscriptionWithProduct, error) {
	out := make([]*SubscriptionWithProduct, 0, len(subs))
	if len(subs) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ProductID)
	}
	products, err := s.productRepo.FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load subscription products: %w", err)
	}
	byID := make(map[string]*model.Product, len(products))
	for _, p := range products {
		byID[p.ExternalID] = p
	}

	for _, sub := range subs {
		out = append(out, &SubscriptionWithProduct{Subscription: sub, Product: byID[sub.ProductID]})
	}
	return out, nil
}

func (s *subscriptionServiceImpl) ListProducts(ctx context.Context, includeArchived bool) ([]*model.Product, error) {
	return s.productRepo.List(ctx, includeArchived)
}

func (s *subscriptionServiceImpl) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return s.productRepo.FindByExternalID(ctx, productID)
}

func (s *subscriptionServiceImpl) GetSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	return s.subscriptionRepo.FindByExternalID(ctx, subscriptionID)
}

func (s *subscriptionServiceImpl) GetCustomerByUserID(ctx context.Context, userID string) (*model.Customer, error) {
	return s.customerRepo.FindByUserID(ctx, userID)
}

func (s *subscriptionServiceImpl) GetTrialStatus(ctx context.Context, userID string) (*TrialStatus, error) {
	current, err := s.GetCurrentSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.InTrial(s.now()) {
		return &TrialStatus{}, nil
	}
	return &TrialStatus{
		InTrial:        true,
		SubscriptionID: current.ExternalID,
		TrialEnd:       current.TrialEnd,
	}, nil
}

func (s *subscriptionServiceImpl) ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

func (s *subscriptionServiceImpl) ListUserBenefitGrants(ctx context.Context, userID string) ([]*model.BenefitGrant, error) {
	return s.benefitGrantRepo.ListActiveByUser(ctx, userID)
}
