package service

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/questfall/walletgate/core"
	"github.com/questfall/walletgate/internal/fingerprint"
)

// SecurityPolicy holds the configuration switches for per-request
// session validation.
type SecurityPolicy struct {
	EnableDeviceFingerprinting bool
	EnableUserAgentValidation  bool
	StrictIPValidation         bool
	UserAgentThreshold         float64
	IPMatchLevel               int
}

// SessionSecurityService re-validates the stored session context
// against the current request before allowing access.
type SessionSecurityService struct {
	sessions *SessionService
	devices  *DeviceService
	policy   SecurityPolicy
	log      zerolog.Logger
}

func NewSessionSecurityService(sessions *SessionService, devices *DeviceService, policy SecurityPolicy, log zerolog.Logger) *SessionSecurityService {
	return &SessionSecurityService{
		sessions: sessions,
		devices:  devices,
		policy:   policy,
		log:      log.With().Str("component", "session_security").Logger(),
	}
}

// ValidateRequestSession checks the current request against the stored
// session: existence, expiry, device fingerprint, user agent
// similarity and IP proximity, in that order. On success the device
// and session activity are updated. A session deactivated concurrently
// between load and update surfaces as a late ErrSessionInvalid, not as
// corruption.
func (s *SessionSecurityService) ValidateRequestSession(ctx context.Context, r *http.Request, userID, sessionID uuid.UUID) error {
	if !s.policy.EnableDeviceFingerprinting {
		return nil
	}

	session, err := s.sessions.FindActive(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	if time.Now().After(session.ExpiresAt) {
		if err := s.sessions.Deactivate(ctx, session.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", truncateID(session.ID.String())).Msg("failed to deactivate expired session")
		}
		return core.ErrSessionExpired
	}

	currentFingerprint := fingerprint.FromRequest(r)
	if currentFingerprint != session.DeviceID {
		known, err := s.devices.IsKnownDevice(ctx, userID, currentFingerprint)
		if err != nil {
			return err
		}
		if !known {
			s.log.Warn().
				Str("user_id", truncateID(userID.String())).
				Str("fingerprint", truncateID(currentFingerprint)).
				Msg("request from unrecognized device")
			return core.ErrDeviceNotRecognized
		}
	}

	currentUA := r.UserAgent()
	if s.policy.EnableUserAgentValidation {
		score := UserAgentSimilarity(session.UserAgent, currentUA)
		if score < s.policy.UserAgentThreshold {
			s.log.Warn().
				Str("user_id", truncateID(userID.String())).
				Float64("score", score).
				Msg("user agent similarity below threshold")
			return core.ErrSuspiciousDeviceChange
		}
	}

	currentIP := fingerprint.ClientIP(r)
	required := s.policy.IPMatchLevel
	if s.policy.StrictIPValidation && required < 3 {
		required = 3
	}
	if matched := IPMatchSegments(session.IPAddress, currentIP); matched < required {
		if s.policy.StrictIPValidation {
			s.log.Warn().
				Str("user_id", truncateID(userID.String())).
				Int("matched_segments", matched).
				Msg("ip mismatch rejected under strict validation")
			return core.ErrSuspiciousLocation
		}
		s.log.Info().
			Str("user_id", truncateID(userID.String())).
			Int("matched_segments", matched).
			Msg("ip changed, allowing")
	}

	if err := s.devices.TouchDevice(ctx, userID, currentFingerprint, DeviceInfo{IPAddress: currentIP, UserAgent: currentUA}); err != nil {
		s.log.Warn().Err(err).Msg("failed to touch device")
	}
	session.IPAddress = currentIP
	if err := s.sessions.Touch(ctx, session); err != nil {
		s.log.Warn().Err(err).Str("session_id", truncateID(session.ID.String())).Msg("failed to persist session activity")
	}

	return nil
}

// UserAgentSimilarity scores how alike two user agent strings are, from
// 0.0 (nothing in common) to 1.0 (identical), as one minus the
// normalized Levenshtein distance.
func UserAgentSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	dist := levenshtein([]rune(a), []rune(b))
	max := len([]rune(a))
	if l := len([]rune(b)); l > max {
		max = l
	}
	return 1.0 - float64(dist)/float64(max)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// IPMatchSegments counts leading matching segments of two IP
// addresses: octets for IPv4 (0-4), 16-bit blocks for IPv6 (0-8).
// Comparison stops at the first mismatching segment. Unparsable or
// mixed-family inputs score 0.
func IPMatchSegments(stored, current string) int {
	storedIP := net.ParseIP(stored)
	currentIP := net.ParseIP(current)
	if storedIP == nil || currentIP == nil {
		return 0
	}

	s4, c4 := storedIP.To4(), currentIP.To4()
	if (s4 == nil) != (c4 == nil) {
		return 0
	}

	if s4 != nil {
		matched := 0
		for i := 0; i < net.IPv4len; i++ {
			if s4[i] != c4[i] {
				break
			}
			matched++
		}
		return matched
	}

	s16, c16 := storedIP.To16(), currentIP.To16()
	matched := 0
	for i := 0; i < net.IPv6len; i += 2 {
		if s16[i] != c16[i] || s16[i+1] != c16[i+1] {
			break
		}
		matched++
	}
	return matched
}
