package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/questfall/walletgate/core"
	"github.com/questfall/walletgate/internal/eth"
	"github.com/questfall/walletgate/ports"
)

// AuthService handles challenge issuance and wallet authentication.
type AuthService struct {
	users      ports.UserRepository
	challenges ports.ChallengeStore
	devices    *DeviceService
	sessions   *SessionService
	tokens     *TokenService
	eventPub   ports.EventPublisher

	challengeDomain string
	challengeTTL    time.Duration
	bypassSignature bool

	log zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	challenges ports.ChallengeStore,
	devices *DeviceService,
	sessions *SessionService,
	tokens *TokenService,
	eventPub ports.EventPublisher,
	challengeDomain string,
	challengeTTL time.Duration,
	bypassSignature bool,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:           users,
		challenges:      challenges,
		devices:         devices,
		sessions:        sessions,
		tokens:          tokens,
		eventPub:        eventPub,
		challengeDomain: challengeDomain,
		challengeTTL:    challengeTTL,
		bypassSignature: bypassSignature,
		log:             log.With().Str("component", "auth_service").Logger(),
	}
}

// ChallengeResult is the response to a wallet connect request.
type ChallengeResult struct {
	Message   string
	ExpiresAt time.Time
}

// IssueChallenge generates a time-boxed challenge message for the
// wallet address and records its nonce for single-use enforcement.
func (s *AuthService) IssueChallenge(ctx context.Context, address string) (*ChallengeResult, error) {
	if !common.IsHexAddress(address) {
		return nil, core.ErrInvalidAddress
	}

	challenge, err := core.NewChallenge(s.challengeDomain, address, s.challengeTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	if err := s.challenges.Put(ctx, challenge.Nonce, challenge.Address, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("failed to record challenge: %w", err)
	}

	return &ChallengeResult{
		Message:   challenge.Message(),
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

// AuthenticateInput carries everything a wallet authentication needs.
type AuthenticateInput struct {
	Address     string
	Message     string
	Signature   string
	Email       string
	Fingerprint string
	IPAddress   string
	UserAgent   string
}

// AuthResult is the outcome of a successful authentication.
type AuthResult struct {
	User         *core.User
	AccessToken  string
	RefreshToken string
	IsNewUser    bool
}

// Authenticate verifies a signed challenge and logs the wallet in:
// verify the message and signature, enforce the device-wallet pairing
// policy, create the user on first authentication, open a session and
// issue tokens. The session row is best-effort; its absence does not
// fail the login.
func (s *AuthService) Authenticate(ctx context.Context, input AuthenticateInput) (*AuthResult, error) {
	if !common.IsHexAddress(input.Address) {
		return nil, core.ErrInvalidAddress
	}
	address := core.NormalizeAddress(input.Address)

	challenge, err := core.ParseChallengeMessage(input.Message)
	if err != nil {
		return nil, err
	}
	if challenge.Address != address {
		return nil, core.ErrInvalidChallenge
	}
	if challenge.Expired(time.Now()) {
		return nil, core.ErrChallengeExpired
	}

	issuedFor, err := s.challenges.Consume(ctx, challenge.Nonce)
	if err != nil {
		return nil, err
	}
	if issuedFor != address {
		return nil, core.ErrInvalidChallenge
	}

	if s.bypassSignature {
		s.log.Warn().Str("address", truncateID(address)).Msg("signature verification bypassed (BYPASS_WALLET_SIGNATURE is enabled)")
	} else if !eth.VerifyPersonalSignature(address, input.Message, input.Signature) {
		return nil, core.ErrSignatureInvalid
	}

	// Pairing is checked before any user row is created so a denied
	// wallet never leaves an orphan user behind.
	existing, err := s.users.GetByWalletAddress(ctx, address)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	var requesterID *uuid.UUID
	if existing != nil {
		requesterID = &existing.ID
	}

	allowed, err := s.devices.ValidateDeviceWalletPairing(ctx, input.Fingerprint, address, requesterID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, core.ErrDevicePairingConflict
	}

	user, isNewUser := existing, false
	if user == nil {
		user, err = s.createUser(ctx, address, input.Email)
		if err != nil {
			return nil, err
		}
		isNewUser = true
	}

	device, err := s.devices.RegisterDevice(ctx, user.ID, input.Fingerprint, address, DeviceInfo{
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	// Best-effort: a nil session means auth proceeds statelessly.
	tokenID := uuid.New().String()
	session := s.sessions.Create(ctx, user.ID, device.DeviceID, input.IPAddress, input.UserAgent, tokenID)

	sessionID := ""
	if session != nil {
		sessionID = session.ID.String()
	}

	accessToken, err := s.tokens.GenerateAccessToken(user, sessionID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.CreateRefreshToken(ctx, user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishLogin(ctx, user.ID, address, isNewUser); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish login event")
	}

	s.log.Info().
		Str("user_id", truncateID(user.ID.String())).
		Str("device_id", truncateID(device.DeviceID)).
		Bool("is_new_user", isNewUser).
		Msg("wallet authenticated")

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IsNewUser:    isNewUser,
	}, nil
}

// Logout revokes the refresh token and notifies other instances.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	userID, err := s.tokens.RevokeRefreshToken(ctx, rawRefreshToken)
	if err != nil {
		return err
	}

	if err := s.eventPub.PublishLogout(ctx, userID, truncateID(rawRefreshToken)); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish logout event")
	}

	s.log.Info().Str("user_id", truncateID(userID.String())).Msg("logged out")
	return nil
}

func (s *AuthService) createUser(ctx context.Context, address, email string) (*core.User, error) {
	user := &core.User{
		ID:            uuid.New(),
		WalletAddress: address,
		Email:         email,
		Role:          "user",
		IsVerified:    true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
