package api

import (
	"context"
	"net/http"
	"time"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
)

type traderResponse struct {
	Status  string                     `json:"status"` // live | cached | stale
	Profile *models.TraderProfileStats `json:"profile"`
}

// handleTraderProfile serves a wallet's battle portfolio. Fresh builds
// walk the full wallet history, so results are cached in Redis and
// persisted to the catalog database for the degraded path.
func (s *Server) handleTraderProfile(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if !validWallet(wallet) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	ctx := r.Context()
	if r.URL.Query().Get("refresh") != "true" {
		if p, err := s.profiles.Get(ctx, wallet); err != nil {
			s.log.Warn().Err(err).Str("wallet", wallet).Msg("profile cache read failed")
		} else if p != nil {
			s.metrics.CacheHit("profile")
			writeJSON(w, http.StatusOK, traderResponse{Status: "cached", Profile: p})
			return
		}
		s.metrics.CacheMiss("profile")
	}

	catalog, err := s.battles.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("battle list failed")
		writeError(w, http.StatusInternalServerError, "failed to load battle catalog")
		return
	}

	profile, err := s.portfolios.BuildProfile(ctx, wallet, catalog)
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet).Msg("profile build failed")
		if stored, serr := s.traders.GetProfile(ctx, wallet); serr == nil && stored != nil {
			writeJSON(w, http.StatusOK, traderResponse{Status: "stale", Profile: stored})
			return
		}
		writeError(w, http.StatusBadGateway, "history provider unavailable")
		return
	}

	s.storeProfile(profile)
	writeJSON(w, http.StatusOK, traderResponse{Status: "live", Profile: profile})
}

// storeProfile writes a freshly built profile to the database and the
// cache without holding up the response.
func (s *Server) storeProfile(p *models.TraderProfileStats) {
	snapshot := *p
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.traders.SaveProfile(ctx, &snapshot); err != nil {
			s.log.Warn().Err(err).Str("wallet", snapshot.Wallet).Msg("profile persist failed")
		}
		if err := s.profiles.Put(ctx, &snapshot); err != nil {
			s.log.Warn().Err(err).Str("wallet", snapshot.Wallet).Msg("profile cache write failed")
		}
	}()
}
