package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NonceSize is the number of random bytes in a challenge nonce.
const NonceSize = 32

const challengeHeaderSuffix = " wants you to sign in with your wallet:"

// Challenge is a one-time message a wallet must sign to prove key
// ownership. It is not persisted as an entity: the message text is
// round-tripped by the client and verified byte-for-byte, while the
// nonce is consumed server-side to prevent replay.
type Challenge struct {
	Domain    string
	Address   string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewChallenge creates a challenge for the given wallet address with a
// fresh CSPRNG nonce. The address is normalized to lowercase.
func NewChallenge(domain, address string, ttl time.Duration) (*Challenge, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	return &Challenge{
		Domain:    domain,
		Address:   NormalizeAddress(address),
		Nonce:     hex.EncodeToString(nonce),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Message renders the human-readable text the wallet signs. The format
// must stay stable: ParseChallengeMessage relies on it, and the client
// must sign exactly these bytes.
func (c *Challenge) Message() string {
	var b strings.Builder
	b.WriteString(c.Domain)
	b.WriteString(challengeHeaderSuffix)
	b.WriteString("\n")
	b.WriteString(c.Address)
	b.WriteString("\n\n")
	b.WriteString("Nonce: ")
	b.WriteString(c.Nonce)
	b.WriteString("\n")
	b.WriteString("Issued At: ")
	b.WriteString(c.IssuedAt.Format(time.RFC3339))
	b.WriteString("\n")
	b.WriteString("Expires At: ")
	b.WriteString(c.ExpiresAt.Format(time.RFC3339))
	return b.String()
}

// Expired reports whether the challenge expiry has passed. Expiry is
// enforced lazily at verification time, not at issuance.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ParseChallengeMessage parses a challenge message back into its
// fields. Any structural deviation fails with ErrInvalidChallenge.
func ParseChallengeMessage(message string) (*Challenge, error) {
	lines := strings.Split(message, "\n")
	if len(lines) != 6 {
		return nil, ErrInvalidChallenge
	}

	domain, ok := strings.CutSuffix(lines[0], challengeHeaderSuffix)
	if !ok || domain == "" {
		return nil, ErrInvalidChallenge
	}

	address := lines[1]
	if !strings.HasPrefix(address, "0x") {
		return nil, ErrInvalidChallenge
	}

	if lines[2] != "" {
		return nil, ErrInvalidChallenge
	}

	nonce, ok := strings.CutPrefix(lines[3], "Nonce: ")
	if !ok || nonce == "" {
		return nil, ErrInvalidChallenge
	}

	issuedRaw, ok := strings.CutPrefix(lines[4], "Issued At: ")
	if !ok {
		return nil, ErrInvalidChallenge
	}
	issuedAt, err := time.Parse(time.RFC3339, issuedRaw)
	if err != nil {
		return nil, ErrInvalidChallenge
	}

	expiresRaw, ok := strings.CutPrefix(lines[5], "Expires At: ")
	if !ok {
		return nil, ErrInvalidChallenge
	}
	expiresAt, err := time.Parse(time.RFC3339, expiresRaw)
	if err != nil {
		return nil, ErrInvalidChallenge
	}

	return &Challenge{
		Domain:    domain,
		Address:   NormalizeAddress(address),
		Nonce:     nonce,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
