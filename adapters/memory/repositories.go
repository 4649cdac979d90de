package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questfall/walletgate/core"
)

// UserRepository is an in-memory ports.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]core.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]core.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepository) GetByWalletAddress(ctx context.Context, address string) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	address = core.NormalizeAddress(address)
	for _, user := range r.users {
		if user.WalletAddress == address {
			u := user
			return &u, nil
		}
	}
	return nil, core.ErrNotFound
}

// DeviceRepository is an in-memory ports.DeviceRepository.
type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]core.Device
}

func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{devices: make(map[uuid.UUID]core.Device)}
}

func (r *DeviceRepository) Create(ctx context.Context, device *core.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	r.devices[device.ID] = *device
	return nil
}

func (r *DeviceRepository) Update(ctx context.Context, device *core.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[device.ID]; !ok {
		return core.ErrNotFound
	}
	r.devices[device.ID] = *device
	return nil
}

func (r *DeviceRepository) GetByDeviceIDAndUser(ctx context.Context, deviceID string, userID uuid.UUID) (*core.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, device := range r.devices {
		if device.DeviceID == deviceID && device.UserID != nil && *device.UserID == userID {
			d := device
			return &d, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *DeviceRepository) ListByDeviceID(ctx context.Context, deviceID string) ([]core.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Device
	for _, device := range r.devices {
		if device.DeviceID == deviceID {
			out = append(out, device)
		}
	}
	return out, nil
}

func (r *DeviceRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]core.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Device
	for _, device := range r.devices {
		if device.UserID != nil && *device.UserID == userID {
			out = append(out, device)
		}
	}
	return out, nil
}

func (r *DeviceRepository) ResetForUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, device := range r.devices {
		if device.UserID != nil && *device.UserID == userID {
			device.IsActive = false
			device.WalletAddresses = nil
			r.devices[id] = device
		}
	}
	return nil
}

// SessionRepository is an in-memory ports.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]core.Session

	// FailCreates makes Create fail, to exercise the swallow-and-log
	// session creation contract.
	FailCreates bool
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]core.Session)}
}

func (r *SessionRepository) Create(ctx context.Context, session *core.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailCreates {
		return core.ErrStorageUnavailable
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) GetActive(ctx context.Context, id, userID uuid.UUID) (*core.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok || session.UserID != userID || !session.IsActive {
		return nil, core.ErrNotFound
	}
	s := session
	return &s, nil
}

func (r *SessionRepository) GetByTokenID(ctx context.Context, tokenID string) (*core.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.TokenID == tokenID {
			s := session
			return &s, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *SessionRepository) Update(ctx context.Context, session *core.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return core.ErrNotFound
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now()
	session.IsActive = false
	session.EndedAt = &now
	r.sessions[id] = session
	return nil
}

func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, session := range r.sessions {
		if session.IsActive && session.ExpiresAt.Before(now) {
			session.IsActive = false
			endedAt := now
			session.EndedAt = &endedAt
			r.sessions[id] = session
			count++
		}
	}
	return count, nil
}

func (r *SessionRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, session := range r.sessions {
		if session.EndedAt != nil && session.EndedAt.Before(cutoff) {
			delete(r.sessions, id)
			count++
		}
	}
	return count, nil
}

// RefreshTokenRepository is an in-memory ports.RefreshTokenRepository.
type RefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]core.RefreshToken // keyed by TokenHash
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: make(map[string]core.RefreshToken)}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *core.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = time.Now()
	r.tokens[token.TokenHash] = *token
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*core.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[hash]
	if !ok {
		return nil, core.ErrNotFound
	}
	t := token
	return &t, nil
}

func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[hash]; !ok {
		return 0, nil
	}
	delete(r.tokens, hash)
	return 1, nil
}

func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, token := range r.tokens {
		if token.UserID == userID {
			delete(r.tokens, hash)
		}
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for hash, token := range r.tokens {
		if token.ExpiresAt.Before(now) {
			delete(r.tokens, hash)
			count++
		}
	}
	return count, nil
}

// Rotate mirrors the transactional postgres rotation: the delete and
// insert happen under one lock, so exactly one concurrent caller wins.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *core.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[oldHash]; !ok {
		return core.ErrRefreshTokenInvalid
	}
	delete(r.tokens, oldHash)

	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	next.CreatedAt = time.Now()
	r.tokens[next.TokenHash] = *next
	return nil
}
