package repository

import (
	"context"

	"polar-billing-bridge/internal/model"

	"gorm.io/gorm"
)

type BenefitGrantRepository interface {
	ListActiveByUser(ctx context.Context, userID string) ([]*model.BenefitGrant, error)
}

type benefitGrantRepoImpl struct {
	db *gorm.DB
}

func NewBenefitGrantRepository(db *gorm.DB) BenefitGrantRepository {
	return &benefitGrantRepoImpl{db: db}
}

func (r *benefitGrantRepoImpl) ListActiveByUser(ctx context.Context, userID string) ([]*model.BenefitGrant, error) {
	grants := []*model.BenefitGrant{}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_granted = ? AND is_revoked = ?", userID, true, false).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}
