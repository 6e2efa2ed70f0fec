package api

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/battle"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
)

// battleResponse carries one of three shapes: a full live state, the
// catalog listing for a battle that has no chain account yet, or the
// catalog listing with its persisted aggregates when the chain is
// unreachable and the data is served stale.
type battleResponse struct {
	Status string                `json:"status"` // found | not_started | stale
	State  *models.BattleState   `json:"state,omitempty"`
	Battle *models.BattleSummary `json:"battle,omitempty"`
}

type settlementResponse struct {
	Status     string                  `json:"status"` // settled | tie
	Settlement *models.SettlementStats `json:"settlement,omitempty"`
}

type leaderboardEntry struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	SideA         models.BattleSide `json:"sideA"`
	SideB         models.BattleSide `json:"sideB"`
	TVL           float64           `json:"tvl"`
	BalanceA      float64           `json:"balanceA"`
	BalanceB      float64           `json:"balanceB"`
	TotalVolume   float64           `json:"totalVolume"`
	TradeCount    int               `json:"tradeCount"`
	UniqueTraders int               `json:"uniqueTraders"`
	IsEnded       bool              `json:"isEnded"`
	Stale         bool              `json:"stale,omitempty"`
	NotStarted    bool              `json:"notStarted,omitempty"`
}

func (s *Server) handleBattleList(w http.ResponseWriter, r *http.Request) {
	battles, err := s.battles.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("battle list failed")
		writeError(w, http.StatusInternalServerError, "failed to load battles")
		return
	}
	writeJSON(w, http.StatusOK, battles)
}

func (s *Server) handleBattle(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.lookupBattle(w, r)
	if !ok {
		return
	}

	res, err := s.takeSnapshot(r.Context(), *sum, r.URL.Query().Get("refresh") == "true")
	if err != nil {
		s.log.Warn().Err(err).Str("battle", sum.ID).Msg("live scan failed")
		if sum.Cached != nil {
			writeJSON(w, http.StatusOK, battleResponse{Status: "stale", Battle: sum})
			return
		}
		writeError(w, http.StatusBadGateway, "chain scan failed and no cached snapshot exists")
		return
	}

	if res.Status == battle.ScanNotStarted {
		writeJSON(w, http.StatusOK, battleResponse{Status: "not_started", Battle: sum})
		return
	}
	writeJSON(w, http.StatusOK, battleResponse{Status: "found", State: res.State})
}

func (s *Server) handleBattleSettlement(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.lookupBattle(w, r)
	if !ok {
		return
	}

	res, err := s.snapshots.Snapshot(r.Context(), *sum)
	if err != nil {
		s.log.Warn().Err(err).Str("battle", sum.ID).Msg("settlement scan failed")
		writeError(w, http.StatusBadGateway, "chain scan failed")
		return
	}
	if res.Status == battle.ScanNotStarted {
		writeError(w, http.StatusConflict, "battle has not started on chain")
		return
	}

	stats, err := battle.ComputeSettlement(res.State)
	switch {
	case errors.Is(err, battle.ErrBattleNotEnded):
		writeError(w, http.StatusConflict, "battle is still running")
	case errors.Is(err, battle.ErrSettlementTie):
		writeJSON(w, http.StatusOK, settlementResponse{Status: "tie"})
	case err != nil:
		s.log.Error().Err(err).Str("battle", sum.ID).Msg("settlement computation failed")
		writeError(w, http.StatusInternalServerError, "failed to compute settlement")
	default:
		writeJSON(w, http.StatusOK, settlementResponse{Status: "settled", Settlement: stats})
	}
}

// handleLeaderboard snapshots every catalog battle with a bounded
// worker pool. A battle whose scan fails drops to its persisted
// aggregates, marked stale; only battles with no data at all are
// omitted.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	sortKey := r.URL.Query().Get("sort")
	switch sortKey {
	case "", "tvl":
		sortKey = "tvl"
	case "volume":
	default:
		writeError(w, http.StatusBadRequest, "invalid sort, expected tvl|volume")
		return
	}

	sums, err := s.battles.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("battle list failed")
		writeError(w, http.StatusInternalServerError, "failed to load battles")
		return
	}

	entries := make([]*leaderboardEntry, len(sums))
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.scanLimit)
	for i, sum := range sums {
		g.Go(func() error {
			res, err := s.snapshots.Snapshot(gctx, sum)
			switch {
			case err != nil && sum.Cached != nil:
				s.log.Warn().Err(err).Str("battle", sum.ID).Msg("leaderboard serving persisted aggregates")
				entries[i] = entryFromAggregates(sum)
			case err != nil:
				s.log.Warn().Err(err).Str("battle", sum.ID).Msg("leaderboard omitting battle")
			case res.Status == battle.ScanNotStarted:
				entries[i] = &leaderboardEntry{
					ID: sum.ID, Title: sum.Title,
					SideA: sum.SideA, SideB: sum.SideB,
					NotStarted: true,
				}
			default:
				entries[i] = entryFromState(res.State)
			}
			return nil
		})
	}
	// Workers degrade per battle instead of failing the group.
	_ = g.Wait()

	out := make([]*leaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if sortKey == "volume" {
			return out[a].TotalVolume > out[b].TotalVolume
		}
		return out[a].TVL > out[b].TVL
	})
	writeJSON(w, http.StatusOK, out)
}

// lookupBattle resolves the {id} path value against the catalog and
// writes the error response itself when the battle cannot be served.
func (s *Server) lookupBattle(w http.ResponseWriter, r *http.Request) (*models.BattleSummary, bool) {
	id := r.PathValue("id")
	sum, err := s.battles.Get(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("battle", id).Msg("battle lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to load battle")
		return nil, false
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "battle not found")
		return nil, false
	}
	return sum, true
}

func (s *Server) takeSnapshot(ctx context.Context, sum models.BattleSummary, refresh bool) (battle.ScanResult, error) {
	if refresh {
		return s.snapshots.Refresh(ctx, sum)
	}
	return s.snapshots.Snapshot(ctx, sum)
}

func entryFromState(st *models.BattleState) *leaderboardEntry {
	return &leaderboardEntry{
		ID: st.ID, Title: st.Title,
		SideA: st.SideA, SideB: st.SideB,
		TVL:      st.TVL(),
		BalanceA: st.BalanceA, BalanceB: st.BalanceB,
		TotalVolume: st.TotalVolume,
		TradeCount:  st.TradeCount, UniqueTraders: st.UniqueTraders,
		IsEnded: st.IsEnded,
	}
}

func entryFromAggregates(sum models.BattleSummary) *leaderboardEntry {
	c := sum.Cached
	return &leaderboardEntry{
		ID: sum.ID, Title: sum.Title,
		SideA: sum.SideA, SideB: sum.SideB,
		TVL:      c.BalanceA + c.BalanceB,
		BalanceA: c.BalanceA, BalanceB: c.BalanceB,
		TotalVolume: c.TotalVolume,
		TradeCount:  c.TradeCount, UniqueTraders: c.UniqueTraders,
		IsEnded: c.IsEnded,
		Stale:   true,
	}
}
