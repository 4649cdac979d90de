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

// DeviceInfo carries the request attributes recorded on a device.
type DeviceInfo struct {
	IPAddress string
	UserAgent string
}

// DeviceService tracks device-wallet pairings and enforces the
// one-wallet-per-device policy.
type DeviceService struct {
	devices ports.DeviceRepository

	skipDeviceCheck bool
	log             zerolog.Logger
}

func NewDeviceService(devices ports.DeviceRepository, skipDeviceCheck bool, log zerolog.Logger) *DeviceService {
	return &DeviceService{
		devices:         devices,
		skipDeviceCheck: skipDeviceCheck,
		log:             log.With().Str("component", "device_service").Logger(),
	}
}

// ValidateDeviceWalletPairing decides whether walletAddress may
// authenticate from the device identified by deviceID. userID is nil
// when the wallet has no user yet (first authentication).
//
// Policy: a device is bound to the first wallet it authenticates with.
// The same wallet may reconnect from the same device, including through
// a browser profile shared by several user rows; any different wallet
// is denied until the device is reset.
func (s *DeviceService) ValidateDeviceWalletPairing(ctx context.Context, deviceID, walletAddress string, userID *uuid.UUID) (bool, error) {
	if s.skipDeviceCheck {
		s.log.Warn().Msg("device pairing check bypassed (SKIP_DEVICE_CHECK is enabled)")
		return true, nil
	}

	walletAddress = core.NormalizeAddress(walletAddress)

	records, err := s.devices.ListByDeviceID(ctx, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(records) == 0 {
		// New device, nothing to conflict with.
		return true, nil
	}

	var own *core.Device
	var others []core.Device
	for i := range records {
		d := records[i]
		if userID != nil && d.UserID != nil && *d.UserID == *userID {
			own = &d
			continue
		}
		others = append(others, d)
	}

	if own != nil && own.IsActive {
		if own.HasWallet(walletAddress) {
			return true, nil
		}
		if len(own.WalletAddresses) > 0 {
			// Different wallet on an already-paired device.
			return false, nil
		}
	}

	// A same-wallet match on any row wins before any conflict is
	// considered, so the verdict does not depend on row order.
	conflict := false
	for _, other := range others {
		if !other.IsActive {
			continue
		}
		if other.HasWallet(walletAddress) {
			// Same wallet reconnecting through a shared browser
			// profile is tolerated.
			return true, nil
		}
		if len(other.WalletAddresses) > 0 {
			conflict = true
			continue
		}
		if other.UserID != nil {
			// Another user claimed this device but has not paired a
			// wallet yet; deny to prevent a handoff mid-registration.
			conflict = true
		}
	}

	return !conflict, nil
}

// RegisterDevice creates or updates the device record for a user after
// a successful authentication: unseen fingerprints get a fresh row,
// recognized ones are touched (visit count, last seen, last IP) and the
// wallet is recorded.
func (s *DeviceService) RegisterDevice(ctx context.Context, userID uuid.UUID, deviceID, walletAddress string, info DeviceInfo) (*core.Device, error) {
	walletAddress = core.NormalizeAddress(walletAddress)
	now := time.Now()

	device, err := s.devices.GetByDeviceIDAndUser(ctx, deviceID, userID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("failed to load device: %w", err)
		}
		device = &core.Device{
			ID:            uuid.New(),
			DeviceID:      deviceID,
			UserID:        &userID,
			IsActive:      true,
			VisitCount:    1,
			FirstSeen:     now,
			LastSeen:      now,
			LastIPAddress: info.IPAddress,
			LastUserAgent: info.UserAgent,
		}
		if walletAddress != "" {
			device.WalletAddresses = append(device.WalletAddresses, walletAddress)
		}
		if err := s.devices.Create(ctx, device); err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
		return device, nil
	}

	device.VisitCount++
	device.LastSeen = now
	device.IsActive = true
	if info.IPAddress != "" {
		device.LastIPAddress = info.IPAddress
	}
	if info.UserAgent != "" {
		device.LastUserAgent = info.UserAgent
	}
	if walletAddress != "" && !device.HasWallet(walletAddress) {
		device.WalletAddresses = append(device.WalletAddresses, walletAddress)
	}
	if err := s.devices.Update(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to update device: %w", err)
	}
	return device, nil
}

// TouchDevice records a validated request on a recognized device.
func (s *DeviceService) TouchDevice(ctx context.Context, userID uuid.UUID, deviceID string, info DeviceInfo) error {
	device, err := s.devices.GetByDeviceIDAndUser(ctx, deviceID, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load device: %w", err)
	}

	device.VisitCount++
	device.LastSeen = time.Now()
	if info.IPAddress != "" {
		device.LastIPAddress = info.IPAddress
	}
	return s.devices.Update(ctx, device)
}

// IsKnownDevice reports whether the fingerprint already belongs to one
// of the user's active devices.
func (s *DeviceService) IsKnownDevice(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	device, err := s.devices.GetByDeviceIDAndUser(ctx, deviceID, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return device.IsActive, nil
}

// ResetDeviceAssociations deactivates all of a user's devices and
// clears their wallet lists, enabling re-pairing.
func (s *DeviceService) ResetDeviceAssociations(ctx context.Context, userID uuid.UUID) error {
	if err := s.devices.ResetForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to reset devices: %w", err)
	}
	s.log.Info().Str("user_id", truncateID(userID.String())).Msg("device associations reset")
	return nil
}
