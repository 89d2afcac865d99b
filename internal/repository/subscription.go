package repository

import (
	"context"
	"errors"

	"polar-billing-bridge/internal/model"

	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	FindByExternalID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error)
	ListOpenByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{
		db: db,
	}
}

func (r *subscriptionRepoImpl) FindByExternalID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("external_id = ?", subscriptionID).
		Take(&sub).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) ListByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error) {
	subs := []*model.Subscription{}
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("current_period_start DESC, external_id").
		Find(&subs).
		Error
	if err != nil {
		return nil, err
	}

	return subs, nil
}

// ListOpenByCustomer returns the customer's subscriptions that have not ended.
// Trial expiry depends on the evaluation time and is left to the caller.
func (r *subscriptionRepoImpl) ListOpenByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error) {
	subs := []*model.Subscription{}
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND ended_at IS NULL", customerID).
		Order("current_period_start DESC, external_id").
		Find(&subs).
		Error
	if err != nil {
		return nil, err
	}

	return subs, nil
}
