package repository

import (
	"context"
	"errors"

	"polar-billing-bridge/internal/model"

	"gorm.io/gorm"
)

// UserRepository reads application users; the application owns the table.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (*model.User, error)
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{db: db}
}

func (r *userRepoImpl) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
