package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/battle"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
)

const (
	sweepTimeout  = 4 * time.Minute
	battleTimeout = 30 * time.Second
)

// BattleLister returns the catalog battles that still need rescanning.
type BattleLister interface {
	ListActive(ctx context.Context) ([]models.BattleSummary, error)
}

// SnapshotTaker performs a live chain scan for one battle.
type SnapshotTaker interface {
	Refresh(ctx context.Context, sum models.BattleSummary) (battle.ScanResult, error)
}

type RefresherConfig struct {
	Interval time.Duration // e.g. 5*time.Minute
}

// Refresher periodically rescans every active battle so persisted
// aggregates stay warm and API reads rarely pay for a live scan.
// Battles are swept sequentially to keep RPC pressure flat.
type Refresher struct {
	battles   BattleLister
	snapshots SnapshotTaker
	cfg       RefresherConfig
	log       zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewRefresher(battles BattleLister, snapshots SnapshotTaker, cfg RefresherConfig) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Refresher{
		battles:   battles,
		snapshots: snapshots,
		cfg:       cfg,
		log:       observability.NewLogger("refresher"),
	}
}

func (r *Refresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.log.Warn().Msg("refresher already running")
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	// Initial sweep on startup (fire-and-forget)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := r.sweep(ctx); err != nil {
			r.log.Error().Err(err).Msg("initial sweep failed")
		}
	}()

	// Recurring ticker
	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
				if err := r.sweep(ctx); err != nil {
					r.log.Error().Err(err).Msg("sweep failed")
				}
				cancel()
			}
		}
	}()

	r.log.Info().Dur("interval", r.cfg.Interval).Msg("refresher started")
}

func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.stopCh)
	r.running = false
	r.log.Info().Msg("refresher stopped")
}

func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RefreshNow sweeps outside the normal schedule.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	r.log.Info().Msg("manual sweep triggered")
	return r.sweep(ctx)
}

// sweep rescans every active battle. Per-battle failures are logged
// and skipped so one flaky battle cannot starve the rest; only a
// catalog listing failure aborts the sweep.
func (r *Refresher) sweep(ctx context.Context) error {
	battles, err := r.battles.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active battles: %w", err)
	}

	var refreshed, notStarted, failed int
	for _, sum := range battles {
		bctx, cancel := context.WithTimeout(ctx, battleTimeout)
		res, err := r.snapshots.Refresh(bctx, sum)
		cancel()

		switch {
		case err != nil:
			failed++
			r.log.Warn().Err(err).Str("battle", sum.ID).Msg("battle refresh failed")
		case res.Status == battle.ScanNotStarted:
			notStarted++
		default:
			refreshed++
		}
	}

	r.log.Info().
		Int("battles", len(battles)).
		Int("refreshed", refreshed).
		Int("not_started", notStarted).
		Int("failed", failed).
		Msg("sweep complete")
	return nil
}
