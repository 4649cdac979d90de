package ports

import (
	"context"
	"time"
)

// ChallengeStore tracks issued challenge nonces so each one verifies at
// most once. Entries expire with the challenge TTL.
type ChallengeStore interface {
	// Put records a freshly issued nonce for the given wallet address.
	Put(ctx context.Context, nonce, address string, ttl time.Duration) error
	// Consume atomically removes the nonce and returns the address it
	// was issued for. A missing nonce (expired or already used) fails
	// with core.ErrChallengeConsumed.
	Consume(ctx context.Context, nonce string) (string, error)
}
