package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questfall/walletgate/core"
	"github.com/questfall/walletgate/service"
)

func TestIssueChallenge(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	t.Run("issues a parseable challenge", func(t *testing.T) {
		w := newWallet(t)

		result, err := env.authService.IssueChallenge(ctx, w.address)
		require.NoError(t, err)

		challenge, err := core.ParseChallengeMessage(result.Message)
		require.NoError(t, err)
		assert.Equal(t, testDomain, challenge.Domain)
		assert.Equal(t, strings.ToLower(w.address), challenge.Address)
		assert.True(t, result.ExpiresAt.After(time.Now()))
	})

	t.Run("rejects a malformed address", func(t *testing.T) {
		_, err := env.authService.IssueChallenge(ctx, "not-an-address")
		assert.ErrorIs(t, err, core.ErrInvalidAddress)
	})

	t.Run("challenges are unique per call", func(t *testing.T) {
		w := newWallet(t)

		a, err := env.authService.IssueChallenge(ctx, w.address)
		require.NoError(t, err)
		b, err := env.authService.IssueChallenge(ctx, w.address)
		require.NoError(t, err)

		assert.NotEqual(t, a.Message, b.Message)
	})
}

// authenticate runs the full connect-sign-authenticate flow for a
// wallet and returns the result.
func authenticate(t *testing.T, env *testEnv, w wallet, fingerprint string) (*service.AuthResult, error) {
	t.Helper()
	ctx := context.Background()

	challenge, err := env.authService.IssueChallenge(ctx, w.address)
	require.NoError(t, err)

	return env.authService.Authenticate(ctx, service.AuthenticateInput{
		Address:     w.address,
		Message:     challenge.Message,
		Signature:   w.sign(t, challenge.Message),
		Fingerprint: fingerprint,
		IPAddress:   "192.168.1.10",
		UserAgent:   "Mozilla/5.0 (test)",
	})
}

func TestAuthenticate(t *testing.T) {
	t.Run("creates a new user with lowercased address", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		w := newWallet(t)

		result, err := authenticate(t, env, w, "fp-1")
		require.NoError(t, err)

		assert.True(t, result.IsNewUser)
		assert.Equal(t, strings.ToLower(w.address), result.User.WalletAddress)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)

		claims, err := env.tokenService.ParseAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID.String(), claims.Subject)
		assert.NotEmpty(t, claims.SessionID)

		events := env.events.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "login", events[0].Kind)
		assert.True(t, events[0].IsNewUser)
	})

	t.Run("second authentication reuses the user", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		w := newWallet(t)

		first, err := authenticate(t, env, w, "fp-1")
		require.NoError(t, err)

		second, err := authenticate(t, env, w, "fp-1")
		require.NoError(t, err)

		assert.False(t, second.IsNewUser)
		assert.Equal(t, first.User.ID, second.User.ID)
	})

	t.Run("a challenge verifies at most once", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		w := newWallet(t)
		ctx := context.Background()

		challenge, err := env.authService.IssueChallenge(ctx, w.address)
		require.NoError(t, err)

		input := service.AuthenticateInput{
			Address:     w.address,
			Message:     challenge.Message,
			Signature:   w.sign(t, challenge.Message),
			Fingerprint: "fp-1",
		}

		_, err = env.authService.Authenticate(ctx, input)
		require.NoError(t, err)

		_, err = env.authService.Authenticate(ctx, input)
		assert.ErrorIs(t, err, core.ErrChallengeConsumed)
	})

	t.Run("rejects an expired challenge", func(t *testing.T) {
		env := newTestEnv(t, envOptions{challengeTTL: -time.Minute})
		w := newWallet(t)

		_, err := authenticate(t, env, w, "fp-1")
		assert.ErrorIs(t, err, core.ErrChallengeExpired)
	})

	t.Run("rejects a signature from another wallet", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		w := newWallet(t)
		other := newWallet(t)
		ctx := context.Background()

		challenge, err := env.authService.IssueChallenge(ctx, w.address)
		require.NoError(t, err)

		_, err = env.authService.Authenticate(ctx, service.AuthenticateInput{
			Address:     w.address,
			Message:     challenge.Message,
			Signature:   other.sign(t, challenge.Message),
			Fingerprint: "fp-1",
		})
		assert.ErrorIs(t, err, core.ErrSignatureInvalid)
	})

	t.Run("rejects a challenge issued for another address", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		w := newWallet(t)
		other := newWallet(t)
		ctx := context.Background()

		challenge, err := env.authService.IssueChallenge(ctx, other.address)
		require.NoError(t, err)

		_, err = env.authService.Authenticate(ctx, service.AuthenticateInput{
			Address:     w.address,
			Message:     challenge.Message,
			Signature:   w.sign(t, challenge.Message),
			Fingerprint: "fp-1",
		})
		assert.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("bypass flag accepts any signature", func(t *testing.T) {
		env := newTestEnv(t, envOptions{bypassSignature: true})
		w := newWallet(t)
		ctx := context.Background()

		challenge, err := env.authService.IssueChallenge(ctx, w.address)
		require.NoError(t, err)

		_, err = env.authService.Authenticate(ctx, service.AuthenticateInput{
			Address:     w.address,
			Message:     challenge.Message,
			Signature:   "0xgarbage",
			Fingerprint: "fp-1",
		})
		assert.NoError(t, err)
	})

	t.Run("denies a second wallet on a paired device", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		first := newWallet(t)
		second := newWallet(t)

		_, err := authenticate(t, env, first, "shared-fp")
		require.NoError(t, err)

		_, err = authenticate(t, env, second, "shared-fp")
		assert.ErrorIs(t, err, core.ErrDevicePairingConflict)
	})

	t.Run("session storage failure degrades to stateless auth", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		env.sessions.FailCreates = true
		w := newWallet(t)

		result, err := authenticate(t, env, w, "fp-1")
		require.NoError(t, err)

		claims, err := env.tokenService.ParseAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Empty(t, claims.SessionID)
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	w := newWallet(t)
	ctx := context.Background()

	result, err := authenticate(t, env, w, "fp-1")
	require.NoError(t, err)

	claims, err := env.tokenService.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.authService.Logout(ctx, result.RefreshToken))

	// The bound session ended with the logout.
	sessionID, err := uuid.Parse(claims.SessionID)
	require.NoError(t, err)
	_, err = env.sessionService.FindActive(ctx, sessionID, result.User.ID)
	assert.ErrorIs(t, err, core.ErrSessionInvalid)

	// The refresh token is gone: rotation and a second logout fail.
	_, err = env.tokenService.RefreshTokens(ctx, result.RefreshToken, service.RefreshContext{Fingerprint: "fp-1"})
	assert.ErrorIs(t, err, core.ErrRefreshTokenInvalid)
	assert.ErrorIs(t, env.authService.Logout(ctx, result.RefreshToken), core.ErrRefreshTokenInvalid)

	events := env.events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "logout", events[1].Kind)
}
