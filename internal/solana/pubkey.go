package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of an ed25519 public key.
const PublicKeyLength = 32

// SystemProgramID owns plain SOL accounts.
const SystemProgramID = "11111111111111111111111111111111"

// PublicKey is a Solana address.
type PublicKey [PublicKeyLength]byte

// PublicKeyFromBase58 parses a base58 address and checks its length.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid base58 %q: %w", s, err)
	}
	if len(raw) != PublicKeyLength {
		return pk, fmt.Errorf("invalid public key %q: decoded to %d bytes, want %d", s, len(raw), PublicKeyLength)
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey parses a base58 address and panics on failure.
// Use only for hardcoded constants.
func MustPublicKey(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

func (p PublicKey) Bytes() []byte {
	return p[:]
}

func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}
