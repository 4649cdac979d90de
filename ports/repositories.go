package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/questfall/walletgate/core"
)

// UserRepository persists wallet-backed users.
type UserRepository interface {
	Create(ctx context.Context, user *core.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*core.User, error)
	GetByWalletAddress(ctx context.Context, address string) (*core.User, error)
}

// DeviceRepository persists devices and their wallet pairings.
type DeviceRepository interface {
	Create(ctx context.Context, device *core.Device) error
	Update(ctx context.Context, device *core.Device) error
	GetByDeviceIDAndUser(ctx context.Context, deviceID string, userID uuid.UUID) (*core.Device, error)
	ListByDeviceID(ctx context.Context, deviceID string) ([]core.Device, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]core.Device, error)
	// ResetForUser deactivates every device of the user and clears
	// their wallet lists, enabling re-pairing.
	ResetForUser(ctx context.Context, userID uuid.UUID) error
}

// SessionRepository persists authenticated sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *core.Session) error
	// GetActive loads the session only when it matches id, userID and
	// is still active; core.ErrNotFound otherwise.
	GetActive(ctx context.Context, id, userID uuid.UUID) (*core.Session, error)
	GetByTokenID(ctx context.Context, tokenID string) (*core.Session, error)
	Update(ctx context.Context, session *core.Session) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// DeactivateExpired marks every active session past its expiry as
	// ended and returns the number of affected rows.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	// DeleteEndedBefore hard-deletes sessions that ended before cutoff.
	// Sessions still active (ended_at unset) are never deleted.
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RefreshTokenRepository persists refresh token hashes.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *core.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*core.RefreshToken, error)
	// DeleteByHash removes the row and reports how many rows matched,
	// letting rotation detect a concurrent winner.
	DeleteByHash(ctx context.Context, hash string) (int64, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// Rotate atomically replaces the row identified by oldHash with
	// next. Exactly one of two concurrent calls with the same oldHash
	// succeeds; the loser gets core.ErrRefreshTokenInvalid.
	Rotate(ctx context.Context, oldHash string, next *core.RefreshToken) error
}
