package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/questfall/walletgate/core"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *core.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetActive(ctx context.Context, id, userID uuid.UUID) (*core.Session, error) {
	var session core.Session
	err := r.db.WithContext(ctx).
		First(&session, "id = ? AND user_id = ? AND is_active = ?", id, userID, true).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *sessionRepository) GetByTokenID(ctx context.Context, tokenID string) (*core.Session, error) {
	var session core.Session
	err := r.db.WithContext(ctx).First(&session, "token_id = ?", tokenID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *sessionRepository) Update(ctx context.Context, session *core.Session) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *sessionRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&core.Session{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  &now,
		}).Error
}

func (r *sessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&core.Session{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  &now,
		})
	return res.RowsAffected, res.Error
}

func (r *sessionRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("ended_at < ?", cutoff).
		Delete(&core.Session{})
	return res.RowsAffected, res.Error
}
