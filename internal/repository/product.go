package repository

import (
	"context"
	"errors"

	"polar-billing-bridge/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	FindByExternalID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	List(ctx context.Context, includeArchived bool) ([]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

// FindByExternalID returns nil when the product is not mirrored.
func (r *productRepoImpl) FindByExternalID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("external_id = ?", productID).
		Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	products := []*model.Product{}
	if len(productIDs) == 0 {
		return products, nil
	}

	err := r.db.WithContext(ctx).
		Where("external_id IN ?", productIDs).
		Find(&products).
		Error
	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) List(ctx context.Context, includeArchived bool) ([]*model.Product, error) {
	products := []*model.Product{}
	q := r.db.WithContext(ctx).Order("name, external_id")
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}

	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}

	return products, nil
}
