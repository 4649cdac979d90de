package service_test

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/questfall/walletgate/adapters/memory"
	"github.com/questfall/walletgate/service"
)

const (
	testSecret        = "test-jwt-secret"
	testRefreshSecret = "test-refresh-secret"
	testDomain        = "walletgate.test"
)

type testEnv struct {
	users      *memory.UserRepository
	devices    *memory.DeviceRepository
	sessions   *memory.SessionRepository
	refresh    *memory.RefreshTokenRepository
	challenges *memory.ChallengeStore
	events     *memory.EventPublisher

	deviceService  *service.DeviceService
	sessionService *service.SessionService
	tokenService   *service.TokenService
	authService    *service.AuthService
}

type envOptions struct {
	skipDeviceCheck bool
	bypassSignature bool
	accessTTL       time.Duration
	refreshTTL      time.Duration
	challengeTTL    time.Duration
	sessionTTL      time.Duration
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	if opts.accessTTL == 0 {
		opts.accessTTL = 15 * time.Minute
	}
	if opts.refreshTTL == 0 {
		opts.refreshTTL = 7 * 24 * time.Hour
	}
	if opts.challengeTTL == 0 {
		opts.challengeTTL = 10 * time.Minute
	}
	if opts.sessionTTL == 0 {
		opts.sessionTTL = 7 * 24 * time.Hour
	}

	env := &testEnv{
		users:      memory.NewUserRepository(),
		devices:    memory.NewDeviceRepository(),
		sessions:   memory.NewSessionRepository(),
		refresh:    memory.NewRefreshTokenRepository(),
		challenges: memory.NewChallengeStore(),
		events:     memory.NewEventPublisher(),
	}

	log := zerolog.Nop()
	env.deviceService = service.NewDeviceService(env.devices, opts.skipDeviceCheck, log)
	env.sessionService = service.NewSessionService(env.sessions, opts.sessionTTL, 30*24*time.Hour, log)
	env.tokenService = service.NewTokenService(
		env.users, env.refresh, env.sessionService,
		testSecret, testRefreshSecret,
		opts.accessTTL, opts.refreshTTL,
		log,
	)
	env.authService = service.NewAuthService(
		env.users, env.challenges,
		env.deviceService, env.sessionService, env.tokenService, env.events,
		testDomain, opts.challengeTTL, opts.bypassSignature,
		log,
	)

	return env
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

// sign produces a personal_sign signature over message with the wallet
// V convention (27/28).
func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[64] += 27

	return hexutil.Encode(sig)
}
