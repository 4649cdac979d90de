// Package eth verifies EIP-191 personal_sign signatures the way
// browser wallets produce them.
package eth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the expected length of a personal_sign signature:
// 32 bytes R, 32 bytes S, 1 byte V.
const SignatureLength = 65

// RecoverAddress recovers the checksummed signer address from a
// personal_sign signature over message. The signature is hex-encoded
// with 0x prefix; V may be 27/28 (wallet convention) or 0/1.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}

	// Work on a copy so the caller's slice is untouched.
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("invalid recovery id %d", sig[64])
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

// VerifyPersonalSignature checks that signature was produced by the
// holder of address's private key over message. Addresses are compared
// case-insensitively. Every failure path returns false; the function
// never defaults to valid.
func VerifyPersonalSignature(address, message, signature string) bool {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered, address)
}
