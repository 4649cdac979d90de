package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/questfall/walletgate/core"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *core.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	var user core.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) GetByWalletAddress(ctx context.Context, address string) (*core.User, error) {
	var user core.User
	err := r.db.WithContext(ctx).First(&user, "wallet_address = ?", core.NormalizeAddress(address)).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
