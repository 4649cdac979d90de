package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/questfall/walletgate/core"
)

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *refreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *core.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *refreshTokenRepository) GetByHash(ctx context.Context, hash string) (*core.RefreshToken, error) {
	var token core.RefreshToken
	err := r.db.WithContext(ctx).First(&token, "token_hash = ?", hash).Error
	if err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (r *refreshTokenRepository) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		Delete(&core.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *refreshTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&core.RefreshToken{}).Error
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&core.RefreshToken{})
	return res.RowsAffected, res.Error
}

// Rotate replaces the row identified by oldHash with next inside one
// transaction. The row is locked FOR UPDATE and deleted; a zero
// rows-affected delete means another rotation already consumed the
// token, so exactly one of any concurrent callers wins.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *core.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current core.RefreshToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "token_hash = ?", oldHash).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrRefreshTokenInvalid
			}
			return err
		}

		res := tx.Where("token_hash = ?", oldHash).Delete(&core.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrRefreshTokenInvalid
		}

		return tx.Create(next).Error
	})
}
