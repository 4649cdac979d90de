package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/questfall/walletgate/core"
	"github.com/questfall/walletgate/ports"
)

const refreshTokenBytes = 32

// AccessClaims are the claims carried by an access token. SessionID is
// empty when authentication proceeded without a session row.
type AccessClaims struct {
	jwt.RegisteredClaims
	Wallet    string `json:"wallet"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
}

// TokenService issues signed access tokens and opaque rotated refresh
// tokens. Refresh tokens are persisted as HMAC hashes only and carry
// their session binding through rotation.
type TokenService struct {
	users         ports.UserRepository
	refreshTokens ports.RefreshTokenRepository
	sessions      *SessionService

	secret        []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	log zerolog.Logger
}

func NewTokenService(
	users ports.UserRepository,
	refreshTokens ports.RefreshTokenRepository,
	sessions *SessionService,
	secret, refreshSecret string,
	accessTTL, refreshTTL time.Duration,
	log zerolog.Logger,
) *TokenService {
	return &TokenService{
		users:         users,
		refreshTokens: refreshTokens,
		sessions:      sessions,
		secret:        []byte(secret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		log:           log.With().Str("component", "token_service").Logger(),
	}
}

// GenerateAccessToken signs an HS256 access token bound to the user
// and, when available, the session.
func (s *TokenService) GenerateAccessToken(user *core.User, sessionID string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		Wallet:    user.WalletAddress,
		Role:      user.Role,
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates signature and expiry and returns the
// claims. Any failure maps to ErrAccessTokenInvalid.
func (s *TokenService) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, core.ErrAccessTokenInvalid
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, core.ErrAccessTokenInvalid
	}
	return claims, nil
}

// CreateRefreshToken mints an opaque random token for the user and
// persists its hash. The raw token is returned exactly once. sessionID
// is empty only when the session row could not be stored.
func (s *TokenService) CreateRefreshToken(ctx context.Context, userID uuid.UUID, sessionID string) (string, error) {
	raw, err := generateOpaqueToken()
	if err != nil {
		return "", err
	}

	record := &core.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		TokenHash: s.hashRefreshToken(raw),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.refreshTokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return raw, nil
}

// TokenPair is the result of a successful refresh rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	UserID       uuid.UUID
}

// RefreshContext carries the request attributes a rotation needs to
// keep the new access token bound to a live session.
type RefreshContext struct {
	Fingerprint string
	IPAddress   string
	UserAgent   string
}

// RefreshTokens rotates a refresh token: look up, reject if missing or
// expired (deleting expired rows as a side effect), atomically replace
// the old row with a new one, and mint a fresh access token. The
// rotation runs in one repository transaction, so of two concurrent
// calls with the same token exactly one succeeds and the other gets
// ErrRefreshTokenInvalid. The new access token keeps the session
// binding of the old chain, so the session security guard stays in
// force across refreshes.
func (s *TokenService) RefreshTokens(ctx context.Context, rawToken string, client RefreshContext) (*TokenPair, error) {
	oldHash := s.hashRefreshToken(rawToken)

	current, err := s.refreshTokens.GetByHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if time.Now().After(current.ExpiresAt) {
		if _, err := s.refreshTokens.DeleteByHash(ctx, oldHash); err != nil {
			s.log.Warn().Err(err).Msg("failed to delete expired refresh token")
		}
		return nil, core.ErrRefreshTokenExpired
	}

	user, err := s.users.GetByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	sessionID := s.resolveSession(ctx, current, user, client)

	newRaw, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}
	next := &core.RefreshToken{
		ID:        uuid.New(),
		UserID:    current.UserID,
		SessionID: sessionID,
		TokenHash: s.hashRefreshToken(newRaw),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}

	if err := s.refreshTokens.Rotate(ctx, oldHash, next); err != nil {
		if errors.Is(err, core.ErrRefreshTokenInvalid) {
			return nil, core.ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	accessToken, err := s.GenerateAccessToken(user, sessionID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRaw,
		UserID:       user.ID,
	}, nil
}

// resolveSession keeps a rotation bound to the session security guard:
// a still-active bound session is renewed; a missing or ended one is
// replaced with a fresh row for the requesting device. Only a session
// storage failure leaves the new chain session-less.
func (s *TokenService) resolveSession(ctx context.Context, current *core.RefreshToken, user *core.User, client RefreshContext) string {
	if current.SessionID != "" {
		if sid, err := uuid.Parse(current.SessionID); err == nil {
			session, err := s.sessions.FindActive(ctx, sid, user.ID)
			if err == nil {
				if err := s.sessions.Renew(ctx, session); err != nil {
					s.log.Warn().Err(err).Str("session_id", truncateID(current.SessionID)).Msg("failed to renew session")
				}
				return session.ID.String()
			}
			if !errors.Is(err, core.ErrSessionInvalid) {
				s.log.Warn().Err(err).Str("session_id", truncateID(current.SessionID)).Msg("failed to load session for rotation")
			}
		}
	}

	session := s.sessions.Create(ctx, user.ID, client.Fingerprint, client.IPAddress, client.UserAgent, uuid.New().String())
	if session == nil {
		return ""
	}
	return session.ID.String()
}

// RevokeRefreshToken deletes the stored hash for a raw refresh token,
// ends its bound session and returns the owning user id. Unknown
// tokens fail with ErrRefreshTokenInvalid.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, rawToken string) (uuid.UUID, error) {
	hash := s.hashRefreshToken(rawToken)

	current, err := s.refreshTokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return uuid.Nil, core.ErrRefreshTokenInvalid
		}
		return uuid.Nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if _, err := s.refreshTokens.DeleteByHash(ctx, hash); err != nil {
		return uuid.Nil, fmt.Errorf("failed to delete refresh token: %w", err)
	}

	if sid, err := uuid.Parse(current.SessionID); err == nil {
		if err := s.sessions.Deactivate(ctx, sid); err != nil && !errors.Is(err, core.ErrNotFound) {
			s.log.Warn().Err(err).Str("session_id", truncateID(current.SessionID)).Msg("failed to end session on revoke")
		}
	}
	return current.UserID, nil
}

// CleanupExpired removes refresh token rows past their expiry.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.refreshTokens.DeleteExpired(ctx, time.Now())
}

// hashRefreshToken computes the storage hash of a raw refresh token.
// Keying the HMAC with the refresh secret means a leaked table does not
// yield usable tokens.
func (s *TokenService) hashRefreshToken(raw string) string {
	mac := hmac.New(sha256.New, s.refreshSecret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
