package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questfall/walletgate/service"
)

const (
	walletA = "0xaaaa000000000000000000000000000000000001"
	walletB = "0xbbbb000000000000000000000000000000000002"
)

func registerDevice(t *testing.T, env *testEnv, userID uuid.UUID, deviceID, wallet string) {
	t.Helper()
	_, err := env.deviceService.RegisterDevice(context.Background(), userID, deviceID, wallet, service.DeviceInfo{
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
}

func TestValidateDeviceWalletPairing(t *testing.T) {
	ctx := context.Background()

	t.Run("unseen device is allowed", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "fresh", walletA, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("own device with the same wallet is allowed", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		userID := uuid.New()
		registerDevice(t, env, userID, "dev-1", walletA)

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "dev-1", walletA, &userID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("address comparison ignores case", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		userID := uuid.New()
		registerDevice(t, env, userID, "dev-1", walletA)

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "dev-1", "0xAAAA000000000000000000000000000000000001", &userID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("own device with a different wallet is denied", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		userID := uuid.New()
		registerDevice(t, env, userID, "dev-1", walletA)

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "dev-1", walletB, &userID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("another user's device with the same wallet is allowed", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		otherUser := uuid.New()
		registerDevice(t, env, otherUser, "shared", walletA)

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "shared", walletA, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("another user's device with a different wallet is denied", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		otherUser := uuid.New()
		registerDevice(t, env, otherUser, "shared", walletA)

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "shared", walletB, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("device claimed without a wallet is denied to others", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		otherUser := uuid.New()
		registerDevice(t, env, otherUser, "claimed", "")

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "claimed", walletA, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("same-wallet match wins over a conflicting row", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		registerDevice(t, env, uuid.New(), "shared", walletA)
		registerDevice(t, env, uuid.New(), "shared", walletB)

		// Whatever order the rows come back in, a matching wallet on
		// any of them allows, and a wallet matching none denies.
		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "shared", walletA, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = env.deviceService.ValidateDeviceWalletPairing(ctx, "shared", walletB, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = env.deviceService.ValidateDeviceWalletPairing(ctx, "shared", "0xcccc000000000000000000000000000000000003", nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("reset devices stop conflicting", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		otherUser := uuid.New()
		registerDevice(t, env, otherUser, "shared", walletA)

		require.NoError(t, env.deviceService.ResetDeviceAssociations(ctx, otherUser))

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "shared", walletB, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("skip flag allows everything", func(t *testing.T) {
		env := newTestEnv(t, envOptions{skipDeviceCheck: true})
		otherUser := uuid.New()
		registerDevice(t, env, otherUser, "shared", walletA)

		ok, err := env.deviceService.ValidateDeviceWalletPairing(ctx, "shared", walletB, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRegisterDevice(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	userID := uuid.New()

	created, err := env.deviceService.RegisterDevice(ctx, userID, "dev-1", walletA, service.DeviceInfo{
		IPAddress: "10.0.0.1",
		UserAgent: "agent-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.VisitCount)
	assert.Equal(t, []string{walletA}, []string(created.WalletAddresses))
	assert.True(t, created.IsActive)

	// A repeat visit touches the existing row instead of creating one.
	touched, err := env.deviceService.RegisterDevice(ctx, userID, "dev-1", walletA, service.DeviceInfo{
		IPAddress: "10.0.0.2",
		UserAgent: "agent-2",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, touched.ID)
	assert.Equal(t, 2, touched.VisitCount)
	assert.Equal(t, "10.0.0.2", touched.LastIPAddress)
	assert.Len(t, touched.WalletAddresses, 1)

	devices, err := env.devices.ListByDeviceID(ctx, "dev-1")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestIsKnownDevice(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	userID := uuid.New()

	known, err := env.deviceService.IsKnownDevice(ctx, userID, "dev-1")
	require.NoError(t, err)
	assert.False(t, known)

	registerDevice(t, env, userID, "dev-1", walletA)

	known, err = env.deviceService.IsKnownDevice(ctx, userID, "dev-1")
	require.NoError(t, err)
	assert.True(t, known)

	require.NoError(t, env.deviceService.ResetDeviceAssociations(ctx, userID))

	known, err = env.deviceService.IsKnownDevice(ctx, userID, "dev-1")
	require.NoError(t, err)
	assert.False(t, known)
}
