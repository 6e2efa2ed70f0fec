package battle

import (
	"encoding/binary"
	"time"

	"github.com/mr-tron/base58"
)

// Battle account layout, little-endian. The first 8 bytes are the
// account discriminator and bytes 16-20, 228-244 and the two state
// flags at 246-247 belong to program-internal bookkeeping this side
// never reads.
const (
	offBattleID          = 8
	offStartTime         = 20
	offEndTime           = 28
	offWalletA           = 36
	offWalletB           = 68
	offTreasury          = 100
	offMintA             = 132
	offMintB             = 164
	offSupplyA           = 196
	offSupplyB           = 204
	offBalanceA          = 212
	offBalanceB          = 220
	offWinnerIsA         = 244
	offWinnerDecided     = 245
	offIsActive          = 248
	offTotalDistribution = 249

	battleAccountMinLen = 257
)

const (
	lamportsPerSOL = 1_000_000_000
	tokenBaseUnit  = 1_000_000
)

// BattleAccount is the decoded on-chain state of one battle. Balances
// and the distribution total are SOL, supplies are whole tokens,
// timestamps are epoch milliseconds.
type BattleAccount struct {
	BattleID  uint64
	StartTime int64
	EndTime   int64

	WalletA  string
	WalletB  string
	Treasury string
	MintA    string
	MintB    string

	SupplyA  float64
	SupplyB  float64
	BalanceA float64
	BalanceB float64

	WinnerIsA         bool
	WinnerDecided     bool
	IsActive          bool
	TotalDistribution float64

	// IsEnded is true once the active flag drops or the end time
	// passes, whichever happens first.
	IsEnded bool
}

// DecodeBattleAccount reads a battle account buffer. Buffers shorter
// than the fixed layout fail with a DecodeError; nothing is ever
// decoded partially.
func DecodeBattleAccount(data []byte, now time.Time) (*BattleAccount, error) {
	if len(data) < battleAccountMinLen {
		return nil, &DecodeError{Field: "account", Got: len(data), Want: battleAccountMinLen}
	}

	le := binary.LittleEndian
	acc := &BattleAccount{
		BattleID:  le.Uint64(data[offBattleID:]),
		StartTime: int64(le.Uint64(data[offStartTime:])) * 1000,
		EndTime:   int64(le.Uint64(data[offEndTime:])) * 1000,

		WalletA:  base58.Encode(data[offWalletA : offWalletA+32]),
		WalletB:  base58.Encode(data[offWalletB : offWalletB+32]),
		Treasury: base58.Encode(data[offTreasury : offTreasury+32]),
		MintA:    base58.Encode(data[offMintA : offMintA+32]),
		MintB:    base58.Encode(data[offMintB : offMintB+32]),

		SupplyA:  float64(le.Uint64(data[offSupplyA:])) / tokenBaseUnit,
		SupplyB:  float64(le.Uint64(data[offSupplyB:])) / tokenBaseUnit,
		BalanceA: float64(le.Uint64(data[offBalanceA:])) / lamportsPerSOL,
		BalanceB: float64(le.Uint64(data[offBalanceB:])) / lamportsPerSOL,

		WinnerIsA:         data[offWinnerIsA] != 0,
		WinnerDecided:     data[offWinnerDecided] != 0,
		IsActive:          data[offIsActive] != 0,
		TotalDistribution: float64(le.Uint64(data[offTotalDistribution:])) / lamportsPerSOL,
	}

	acc.IsEnded = !acc.IsActive || now.UnixMilli() > acc.EndTime
	return acc, nil
}
