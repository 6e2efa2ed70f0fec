package solana

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"filippo.io/edwards25519"
)

// DefaultBattleProgramID is the mainnet battle program. Deployments
// against devnet override it through configuration.
const DefaultBattleProgramID = "WaveWarz11111111111111111111111111111111111"

// Program-derived address seeds used by the battle program. The battle
// account holds the match state, the vault holds the SOL pools.
const (
	battleSeedPrefix = "battle"
	vaultSeedPrefix  = "battle_vault"
)

const (
	pdaMarker     = "ProgramDerivedAddress"
	maxSeeds      = 16
	maxSeedLength = 32
)

var (
	ErrNoViableBump = errors.New("unable to find a viable program address bump")
	ErrSeedTooLong  = errors.New("seed exceeds 32 bytes")
	ErrTooManySeeds = errors.New("too many seeds")
)

// BattleAddresses are the two derived accounts of one battle.
type BattleAddresses struct {
	Battle     PublicKey
	BattleBump uint8
	Vault      PublicKey
	VaultBump  uint8
}

// ParseBattleID parses the on-chain battle id, which catalog rows and
// URLs carry as a decimal string.
func ParseBattleID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid battle id %q: %w", raw, err)
	}
	return id, nil
}

// DeriveBattleAddresses derives the battle account and vault addresses
// for a battle id. Derivation is deterministic, so callers never need
// the addresses stored anywhere.
func DeriveBattleAddresses(battleID uint64, programID PublicKey) (BattleAddresses, error) {
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, battleID)

	battle, battleBump, err := FindProgramAddress([][]byte{[]byte(battleSeedPrefix), idBytes}, programID)
	if err != nil {
		return BattleAddresses{}, fmt.Errorf("derive battle address for id %d: %w", battleID, err)
	}
	vault, vaultBump, err := FindProgramAddress([][]byte{[]byte(vaultSeedPrefix), idBytes}, programID)
	if err != nil {
		return BattleAddresses{}, fmt.Errorf("derive vault address for id %d: %w", battleID, err)
	}

	return BattleAddresses{
		Battle:     battle,
		BattleBump: battleBump,
		Vault:      vault,
		VaultBump:  vaultBump,
	}, nil
}

// FindProgramAddress walks bump seeds from 255 down and returns the
// first candidate that does not land on the ed25519 curve, matching
// the runtime's derivation rules.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	if len(seeds) > maxSeeds {
		return PublicKey{}, 0, ErrTooManySeeds
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return PublicKey{}, 0, ErrSeedTooLong
		}
	}

	for bump := maxBumpSeed; bump >= 0; bump-- {
		candidate := deriveAddress(seeds, byte(bump), programID)
		if isOffCurve(candidate[:]) {
			return candidate, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

const maxBumpSeed = 255

func deriveAddress(seeds [][]byte, bump byte, programID PublicKey) PublicKey {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	return pk
}

// isOffCurve reports whether the bytes fail to decompress as an
// ed25519 point. Program addresses must have no private key, which is
// exactly the off-curve condition.
func isOffCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err != nil
}
