package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/questfall/walletgate/core"
)

// ChallengeStore is a Redis implementation of ports.ChallengeStore.
// Nonces expire with the challenge TTL, so an unused challenge cleans
// itself up and an expired one fails consumption.
type ChallengeStore struct {
	client *redis.Client
	prefix string
}

func NewChallengeStore(client *redis.Client) *ChallengeStore {
	return &ChallengeStore{
		client: client,
		prefix: "walletgate:challenge:",
	}
}

func (s *ChallengeStore) Put(ctx context.Context, nonce, address string, ttl time.Duration) error {
	key := s.prefix + nonce
	if err := s.client.Set(ctx, key, core.NormalizeAddress(address), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge nonce: %w", err)
	}
	return nil
}

// Consume removes the nonce and returns the address it was issued for.
// GETDEL makes consumption atomic: of two concurrent authenticate
// calls with the same challenge, only one sees the nonce.
func (s *ChallengeStore) Consume(ctx context.Context, nonce string) (string, error) {
	key := s.prefix + nonce
	address, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrChallengeConsumed
		}
		return "", fmt.Errorf("failed to consume challenge nonce: %w", err)
	}
	return address, nil
}
