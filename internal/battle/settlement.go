package battle

import (
	"fmt"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
)

// Distribution schedule for the losing pool.
const (
	winningTradersShare = 0.40
	losingTradersShare  = 0.50
	winningArtistShare  = 0.05
	losingArtistShare   = 0.02
	platformShare       = 0.03
)

// Continuous trading fees, owed regardless of outcome.
const (
	artistVolumeFeeRate   = 0.01
	platformVolumeFeeRate = 0.005
)

// ComputeSettlement derives the payout picture for an ended battle.
// The winner is the side whose pool holds strictly more SOL; an exact
// tie has no winner and fails with ErrSettlementTie so the caller can
// surface it instead of picking a side arbitrarily.
func ComputeSettlement(state *models.BattleState) (*models.SettlementStats, error) {
	if !state.IsEnded {
		return nil, fmt.Errorf("%w: battle %s", ErrBattleNotEnded, state.ID)
	}
	if state.BalanceA == state.BalanceB {
		return nil, fmt.Errorf("%w: both pools hold %.9f SOL", ErrSettlementTie, state.BalanceA)
	}

	winnerIsA := state.BalanceA > state.BalanceB
	winningPool, losingPool := state.BalanceA, state.BalanceB
	winner := models.SideA
	if !winnerIsA {
		winningPool, losingPool = state.BalanceB, state.BalanceA
		winner = models.SideB
	}

	feeA := state.VolumeA * artistVolumeFeeRate
	feeB := state.VolumeB * artistVolumeFeeRate
	platformFee := (state.VolumeA + state.VolumeB) * platformVolumeFeeRate

	winnerBonus := losingPool * winningArtistShare
	loserBonus := losingPool * losingArtistShare

	stats := &models.SettlementStats{
		Winner:    winner,
		WinMargin: winningPool - losingPool,

		WinningPool: winningPool,
		LosingPool:  losingPool,

		WinningTradersPool: losingPool * winningTradersShare,
		LosingTradersPool:  losingPool * losingTradersShare,
		WinningArtistBonus: winnerBonus,
		LosingArtistBonus:  loserBonus,
		PlatformCut:        losingPool * platformShare,

		ArtistFeeA:  feeA,
		ArtistFeeB:  feeB,
		PlatformFee: platformFee,
	}

	if winnerIsA {
		stats.ArtistEarningsA = feeA + winnerBonus
		stats.ArtistEarningsB = feeB + loserBonus
	} else {
		stats.ArtistEarningsA = feeA + loserBonus
		stats.ArtistEarningsB = feeB + winnerBonus
	}

	return stats, nil
}
