// Package memory provides in-memory implementations of the ports
// interfaces. They are primarily intended for testing purposes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/questfall/walletgate/core"
)

type challengeEntry struct {
	address   string
	expiresAt time.Time
}

// ChallengeStore is an in-memory ports.ChallengeStore.
type ChallengeStore struct {
	mu      sync.Mutex
	entries map[string]challengeEntry
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{entries: make(map[string]challengeEntry)}
}

func (s *ChallengeStore) Put(ctx context.Context, nonce, address string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[nonce] = challengeEntry{
		address:   core.NormalizeAddress(address),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *ChallengeStore) Consume(ctx context.Context, nonce string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[nonce]
	if !ok {
		return "", core.ErrChallengeConsumed
	}
	delete(s.entries, nonce)

	if time.Now().After(entry.expiresAt) {
		return "", core.ErrChallengeConsumed
	}
	return entry.address, nil
}
