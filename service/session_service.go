package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/questfall/walletgate/core"
	"github.com/questfall/walletgate/ports"
)

// SessionService manages the lifecycle of persisted sessions.
type SessionService struct {
	sessions  ports.SessionRepository
	ttl       time.Duration
	retention time.Duration
	log       zerolog.Logger
}

func NewSessionService(sessions ports.SessionRepository, ttl, retention time.Duration, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions:  sessions,
		ttl:       ttl,
		retention: retention,
		log:       log.With().Str("component", "session_service").Logger(),
	}
}

// Create persists a session for a freshly authenticated user. A
// storage failure is logged and swallowed — authentication proceeds
// without a session row, so a database hiccup never blocks login.
// Callers must handle the nil result.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, deviceID, ipAddress, userAgent, tokenID string) *core.Session {
	session := &core.Session{
		ID:        uuid.New(),
		UserID:    userID,
		DeviceID:  deviceID,
		TokenID:   tokenID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		IsActive:  true,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.log.Warn().
			Err(err).
			Str("user_id", truncateID(userID.String())).
			Msg("failed to persist session, continuing without one")
		return nil
	}
	return session
}

// FindActive loads the session matching {id, userID, isActive:true}.
func (s *SessionService) FindActive(ctx context.Context, id, userID uuid.UUID) (*core.Session, error) {
	session, err := s.sessions.GetActive(ctx, id, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrSessionInvalid
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Deactivate ends a session (isActive=false, endedAt=now).
func (s *SessionService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.sessions.Deactivate(ctx, id)
}

// DeactivateByTokenID ends the session bound to a token id, if any.
func (s *SessionService) DeactivateByTokenID(ctx context.Context, tokenID string) error {
	session, err := s.sessions.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sessions.Deactivate(ctx, session.ID)
}

// Touch persists sliding session activity.
func (s *SessionService) Touch(ctx context.Context, session *core.Session) error {
	return s.sessions.Update(ctx, session)
}

// Renew extends an active session's expiry by the configured TTL, so a
// session lives as long as its refresh chain keeps rotating.
func (s *SessionService) Renew(ctx context.Context, session *core.Session) error {
	session.ExpiresAt = time.Now().Add(s.ttl)
	return s.sessions.Update(ctx, session)
}

// CleanupExpiredSessions marks active sessions past their expiry as
// ended and returns the count. Safe to run concurrently with live
// traffic: it is a pure filter-and-update.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeactivateExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Msg("expired sessions deactivated")
	}
	return count, nil
}

// PurgeOldSessions hard-deletes sessions that ended before the
// retention window. Active sessions are never purged.
func (s *SessionService) PurgeOldSessions(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	count, err := s.sessions.DeleteEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old sessions: %w", err)
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Msg("old sessions purged")
	}
	return count, nil
}
