package battle

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/helius"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
)

// History-walk limits. A battle rarely accumulates more than a couple
// hundred transfers, and the newest hundred dominate the display
// numbers, so the walk is capped rather than exhaustive.
const (
	historyPageSize        = 50
	historyMaxTransactions = 100
	recentTradeLimit       = 20
)

// HistorySource pages enriched transaction history for an address,
// newest first.
type HistorySource interface {
	AddressTransactions(ctx context.Context, address string, limit int, before string) ([]helius.Transaction, error)
}

// VolumeReport is the reconstructed trading activity of one battle.
type VolumeReport struct {
	TotalVolume   float64
	VolumeA       float64
	VolumeB       float64
	TradeCount    int
	UniqueTraders int
	RecentTrades  []models.RecentTrade
	PagesFetched  int
}

// Reconstructor rebuilds battle trading volume from vault transfer
// history. The chain does not store volume anywhere; it only exists as
// the sum of transfers in and out of the pools.
type Reconstructor struct {
	history HistorySource
	log     zerolog.Logger
}

func NewReconstructor(history HistorySource) *Reconstructor {
	return &Reconstructor{
		history: history,
		log:     observability.NewLogger("volume"),
	}
}

// Reconstruct walks the vault's history and classifies every SOL
// transfer touching the battle or vault address: inbound is a buy,
// outbound a sell, moves between the two pool accounts are internal
// and skipped. Any failed page aborts the walk.
func (r *Reconstructor) Reconstruct(ctx context.Context, battleAddress, vaultAddress string, tvlA, tvlB float64) (*VolumeReport, error) {
	pool := map[string]bool{
		battleAddress: true,
		vaultAddress:  true,
	}

	report := &VolumeReport{
		RecentTrades: make([]models.RecentTrade, 0, recentTradeLimit),
	}
	traders := make(map[string]struct{})

	before := ""
	scanned := 0
	for page := 1; ; page++ {
		txs, err := r.history.AddressTransactions(ctx, vaultAddress, historyPageSize, before)
		if err != nil {
			return nil, &ReconstructionError{Page: page, Err: err}
		}
		report.PagesFetched++

		for _, tx := range txs {
			for _, leg := range tx.NativeTransfers {
				inbound := pool[leg.ToUserAccount]
				outbound := pool[leg.FromUserAccount]

				var tradeType, counterparty string
				switch {
				case inbound && outbound:
					continue // internal move between pool accounts
				case inbound:
					tradeType = models.TradeBuy
					counterparty = leg.FromUserAccount
				case outbound:
					tradeType = models.TradeSell
					counterparty = leg.ToUserAccount
				default:
					continue
				}

				lamports := leg.Amount
				if lamports < 0 {
					lamports = -lamports
				}
				amount := float64(lamports) / lamportsPerSOL

				report.TotalVolume += amount
				report.TradeCount++
				traders[counterparty] = struct{}{}

				if len(report.RecentTrades) < recentTradeLimit {
					report.RecentTrades = append(report.RecentTrades, models.RecentTrade{
						Signature:    tx.Signature,
						Type:         tradeType,
						AmountSOL:    amount,
						Counterparty: counterparty,
						Timestamp:    tx.Timestamp * 1000,
					})
				}
			}
		}

		scanned += len(txs)
		if len(txs) < historyPageSize || scanned >= historyMaxTransactions {
			break
		}
		before = txs[len(txs)-1].Signature
	}

	report.UniqueTraders = len(traders)
	report.VolumeA, report.VolumeB = SplitVolumeByTVL(report.TotalVolume, tvlA, tvlB)

	r.log.Debug().
		Str("vault", vaultAddress).
		Float64("total_volume", report.TotalVolume).
		Int("trades", report.TradeCount).
		Int("pages", report.PagesFetched).
		Msg("reconstructed volume")
	return report, nil
}

// SplitVolumeByTVL apportions the observed volume total between the
// sides in proportion to their pool balances. Native transfers do not
// say which side a trade backed, so per-side volume is an estimate.
// The two parts always sum to the total; with no TVL on either side
// the split is even.
func SplitVolumeByTVL(total, tvlA, tvlB float64) (volumeA, volumeB float64) {
	tvl := tvlA + tvlB
	if tvl <= 0 {
		half := total / 2
		return half, half
	}
	volumeA = total * (tvlA / tvl)
	return volumeA, total - volumeA
}
