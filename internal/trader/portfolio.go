package trader

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/battle"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/helius"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/solana"
)

// Wallet history limits. Wallets are far busier than vaults, so the
// walk pages deeper than a battle scan but still caps at a thousand
// transactions.
const (
	walletPageSize = 100
	walletMaxPages = 10
)

const lamportsPerSOL = 1_000_000_000

// UnlistedPrefix keys groupings for program activity against battles
// the catalog does not list.
const UnlistedPrefix = "unlisted:"

type HistorySource interface {
	AddressTransactions(ctx context.Context, address string, limit int, before string) ([]helius.Transaction, error)
}

// Aggregator rebuilds a wallet's battle portfolio from its transfer
// history. Outbound SOL to a battle's addresses counts as an
// investment, inbound as a payout.
type Aggregator struct {
	history HistorySource
	program solana.PublicKey
	log     zerolog.Logger
}

func NewAggregator(history HistorySource, program solana.PublicKey) *Aggregator {
	return &Aggregator{
		history: history,
		program: program,
		log:     observability.NewLogger("portfolio"),
	}
}

type battleRef struct {
	key   string
	title string
}

// BuildProfile walks the wallet's history against the battle catalog.
// Transfers to or from a listed battle's derived addresses group under
// that battle; program transactions against unknown addresses group
// under a synthetic unlisted key so the numbers still add up.
func (a *Aggregator) BuildProfile(ctx context.Context, wallet string, catalog []models.BattleSummary) (*models.TraderProfileStats, error) {
	index := a.indexCatalog(catalog)
	programID := a.program.String()

	groups := make(map[string]*models.TraderBattleHistory)
	latest := make(map[string]int64)

	before := ""
	for page := 1; page <= walletMaxPages; page++ {
		txs, err := a.history.AddressTransactions(ctx, wallet, walletPageSize, before)
		if err != nil {
			return nil, &battle.ReconstructionError{Page: page, Err: err}
		}

		for _, tx := range txs {
			touchesProgram := tx.TouchesProgram(programID)
			for _, leg := range tx.NativeTransfers {
				outgoing := leg.FromUserAccount == wallet
				incoming := leg.ToUserAccount == wallet
				if outgoing == incoming {
					continue // self transfer or a leg between third parties
				}

				counterparty := leg.ToUserAccount
				txType := models.TxInvest
				if incoming {
					counterparty = leg.FromUserAccount
					txType = models.TxPayout
				}

				ref, listed := index[counterparty]
				if !listed {
					if !touchesProgram || counterparty == "" {
						continue
					}
					ref = battleRef{key: UnlistedPrefix + counterparty}
				}

				lamports := leg.Amount
				if lamports < 0 {
					lamports = -lamports
				}
				amount := float64(lamports) / lamportsPerSOL
				ts := tx.Timestamp * 1000

				group := groups[ref.key]
				if group == nil {
					group = &models.TraderBattleHistory{BattleKey: ref.key, Title: ref.title}
					groups[ref.key] = group
				}
				if txType == models.TxInvest {
					group.Invested += amount
				} else {
					group.PaidOut += amount
				}
				group.Transactions = append(group.Transactions, models.TraderTransaction{
					Signature: tx.Signature,
					Type:      txType,
					AmountSOL: amount,
					Timestamp: ts,
				})
				if ts > latest[ref.key] {
					latest[ref.key] = ts
				}
			}
		}

		if len(txs) < walletPageSize {
			break
		}
		before = txs[len(txs)-1].Signature
	}

	return a.finalize(wallet, groups, latest), nil
}

func (a *Aggregator) indexCatalog(catalog []models.BattleSummary) map[string]battleRef {
	index := make(map[string]battleRef, len(catalog)*2)
	for _, sum := range catalog {
		id, err := solana.ParseBattleID(sum.BattleID)
		if err != nil {
			a.log.Warn().Err(err).Str("battle", sum.ID).Msg("catalog row has a bad battle id, skipping")
			continue
		}
		addrs, err := solana.DeriveBattleAddresses(id, a.program)
		if err != nil {
			a.log.Warn().Err(err).Str("battle", sum.ID).Msg("address derivation failed, skipping")
			continue
		}
		ref := battleRef{key: sum.ID, title: sum.Title}
		index[addrs.Battle.String()] = ref
		index[addrs.Vault.String()] = ref
	}
	return index
}

// finalize classifies each grouping and rolls the totals up. A battle
// that paid more than it took is a WIN, one that paid anything less is
// a LOSS, and one that never paid out is still PENDING.
func (a *Aggregator) finalize(wallet string, groups map[string]*models.TraderBattleHistory, latest map[string]int64) *models.TraderProfileStats {
	profile := &models.TraderProfileStats{
		Wallet:      wallet,
		Battles:     make([]models.TraderBattleHistory, 0, len(groups)),
		GeneratedAt: time.Now().UnixMilli(),
	}

	for _, group := range groups {
		group.Net = group.PaidOut - group.Invested
		switch {
		case group.PaidOut > group.Invested:
			group.Outcome = models.OutcomeWin
			profile.Wins++
		case group.PaidOut > 0:
			group.Outcome = models.OutcomeLoss
			profile.Losses++
		default:
			group.Outcome = models.OutcomePending
			profile.Pending++
		}
		profile.TotalInvested += group.Invested
		profile.TotalPaidOut += group.PaidOut
		profile.Battles = append(profile.Battles, *group)
	}

	profile.NetPL = profile.TotalPaidOut - profile.TotalInvested
	if decided := profile.Wins + profile.Losses; decided > 0 {
		profile.WinRate = float64(profile.Wins) / float64(decided)
	}

	sort.Slice(profile.Battles, func(i, j int) bool {
		return latest[profile.Battles[i].BattleKey] > latest[profile.Battles[j].BattleKey]
	})
	return profile
}
