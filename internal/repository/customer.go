package repository

import (
	"context"
	"errors"
	"fmt"

	"polar-billing-bridge/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	// Insert creates the customer for its user id unless one exists, and
	// returns the row id of the stored customer either way.
	Insert(ctx context.Context, customer *model.Customer) (string, error)
	FindByUserID(ctx context.Context, userID string) (*model.Customer, error)
	FindByExternalID(ctx context.Context, customerID string) (*model.Customer, error)
}

type customerRepoImpl struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepoImpl{
		db: db,
	}
}

func (r *customerRepoImpl) Insert(ctx context.Context, customer *model.Customer) (string, error) {
	var rowID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Customer
		err := tx.Where("user_id = ?", customer.UserID).Take(&existing).Error
		if err == nil {
			rowID = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		customer.ID = ""
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(customer).Error; err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}

		// re-read: a concurrent insert for the same user may have won
		if err := tx.Where("user_id = ?", customer.UserID).Take(&existing).Error; err != nil {
			return fmt.Errorf("customer %s for user %s: %w", customer.ExternalID, customer.UserID, err)
		}
		rowID = existing.ID
		return nil
	})

	return rowID, err
}

func (r *customerRepoImpl) FindByUserID(ctx context.Context, userID string) (*model.Customer, error) {
	return r.findBy(ctx, "user_id = ?", userID)
}

func (r *customerRepoImpl) FindByExternalID(ctx context.Context, customerID string) (*model.Customer, error) {
	return r.findBy(ctx, "external_id = ?", customerID)
}

func (r *customerRepoImpl) findBy(ctx context.Context, query string, arg string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).Where(query, arg).Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
