package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/solana"
)

const defaultSnapshotTTL = 5 * time.Minute

// ScanStatus tags a snapshot result. A battle listed in the catalog
// may simply not exist on chain yet, which is a state of its own, not
// an error and not a row of zeros.
type ScanStatus string

const (
	ScanFound      ScanStatus = "found"
	ScanNotStarted ScanStatus = "not_started"
)

// ScanResult is the outcome of a snapshot request. State is nil when
// Status is ScanNotStarted.
type ScanResult struct {
	Status ScanStatus
	State  *models.BattleState
}

// AccountSource reads raw account bytes from the chain.
type AccountSource interface {
	GetAccountInfo(ctx context.Context, address string) ([]byte, error)
}

// SnapshotSink persists scanned battle state. Persistence is best
// effort and never fails a scan.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, state *models.BattleState) error
}

type AssemblerConfig struct {
	ProgramID solana.PublicKey
	CacheTTL  time.Duration    // defaults to 5 minutes
	Clock     func() time.Time // defaults to time.Now
}

// Assembler produces full battle snapshots: derive addresses, fetch
// and decode the battle account, reconstruct volume, merge with the
// catalog listing. Results are cached in memory per battle id so a
// busy battle page does not hammer the RPC node.
type Assembler struct {
	rpc     AccountSource
	volume  *Reconstructor
	sink    SnapshotSink
	program solana.PublicKey
	cache   *snapshotCache
	now     func() time.Time
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewAssembler(rpc AccountSource, history HistorySource, sink SnapshotSink, metrics *observability.Metrics, cfg AssemblerConfig) *Assembler {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultSnapshotTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Assembler{
		rpc:     rpc,
		volume:  NewReconstructor(history),
		sink:    sink,
		program: cfg.ProgramID,
		cache:   newSnapshotCache(cfg.CacheTTL, cfg.Clock),
		now:     cfg.Clock,
		metrics: metrics,
		log:     observability.NewLogger("snapshot"),
	}
}

// Snapshot returns the current state of a battle, served from the
// in-memory cache, from persisted aggregates when they are fresh
// enough, or from a live chain scan. Failures return an error; stale
// or missing data is never papered over with zeros.
func (a *Assembler) Snapshot(ctx context.Context, sum models.BattleSummary) (ScanResult, error) {
	if res, ok := a.cache.get(sum.ID); ok {
		a.metrics.CacheHit("snapshot_memory")
		return res, nil
	}
	a.metrics.CacheMiss("snapshot_memory")

	if res, ok := a.fromCatalog(sum); ok {
		a.metrics.CacheHit("snapshot_catalog")
		a.cache.put(sum.ID, res)
		return res, nil
	}

	return a.Refresh(ctx, sum)
}

// Refresh performs a live chain scan regardless of cache freshness and
// replaces the cached entry on success.
func (a *Assembler) Refresh(ctx context.Context, sum models.BattleSummary) (ScanResult, error) {
	started := a.now()
	res, err := a.scan(ctx, sum)
	elapsed := a.now().Sub(started).Seconds()
	if err != nil {
		a.metrics.ScanObserved("error", elapsed)
		return ScanResult{}, err
	}
	a.metrics.ScanObserved(string(res.Status), elapsed)
	a.cache.put(sum.ID, res)

	if res.Status == ScanFound && a.sink != nil {
		a.persist(res.State)
	}
	return res, nil
}

func (a *Assembler) scan(ctx context.Context, sum models.BattleSummary) (ScanResult, error) {
	id, err := solana.ParseBattleID(sum.BattleID)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan battle %s: %w", sum.ID, err)
	}
	addrs, err := solana.DeriveBattleAddresses(id, a.program)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan battle %s: %w", sum.ID, err)
	}

	raw, err := a.rpc.GetAccountInfo(ctx, addrs.Battle.String())
	if errors.Is(err, solana.ErrAccountNotFound) {
		a.log.Info().Str("battle", sum.ID).Str("address", addrs.Battle.String()).Msg("battle account absent, not started")
		return ScanResult{Status: ScanNotStarted}, nil
	}
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan battle %s: %w", sum.ID, err)
	}

	now := a.now()
	acc, err := DecodeBattleAccount(raw, now)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan battle %s: %w", sum.ID, err)
	}

	vol, err := a.volume.Reconstruct(ctx, addrs.Battle.String(), addrs.Vault.String(), acc.BalanceA, acc.BalanceB)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan battle %s: %w", sum.ID, err)
	}
	a.metrics.PagesFetched(vol.PagesFetched)

	state := mergeState(sum, addrs, acc, vol, now)
	a.log.Info().
		Str("battle", sum.ID).
		Float64("tvl", state.TVL()).
		Float64("volume", state.TotalVolume).
		Bool("ended", state.IsEnded).
		Msg("scanned battle")
	return ScanResult{Status: ScanFound, State: state}, nil
}

// fromCatalog serves a battle off its persisted aggregates when the
// last scan is within the cache TTL, typically right after a restart.
func (a *Assembler) fromCatalog(sum models.BattleSummary) (ScanResult, bool) {
	c := sum.Cached
	if c == nil || c.LastScannedAt.IsZero() {
		return ScanResult{}, false
	}
	if a.now().Sub(c.LastScannedAt) > a.cache.ttl {
		return ScanResult{}, false
	}

	id, err := solana.ParseBattleID(sum.BattleID)
	if err != nil {
		return ScanResult{}, false
	}
	addrs, err := solana.DeriveBattleAddresses(id, a.program)
	if err != nil {
		return ScanResult{}, false
	}

	state := stateFromAggregates(sum, addrs, *c)
	// The end time may have passed since the aggregates were stored.
	if !state.IsEnded && state.EndTime > 0 && a.now().UnixMilli() > state.EndTime {
		state.IsEnded = true
	}
	return ScanResult{Status: ScanFound, State: state}, true
}

func (a *Assembler) persist(state *models.BattleState) {
	snapshot := *state
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.sink.SaveSnapshot(ctx, &snapshot); err != nil {
			a.log.Warn().Err(err).Str("battle", snapshot.ID).Msg("snapshot persist failed")
		}
	}()
}

func mergeState(sum models.BattleSummary, addrs solana.BattleAddresses, acc *BattleAccount, vol *VolumeReport, now time.Time) *models.BattleState {
	sum.Cached = nil
	return &models.BattleState{
		BattleSummary: sum,

		BattleAddress: addrs.Battle.String(),
		VaultAddress:  addrs.Vault.String(),

		StartTime: acc.StartTime,
		EndTime:   acc.EndTime,

		BalanceA: acc.BalanceA,
		BalanceB: acc.BalanceB,
		SupplyA:  acc.SupplyA,
		SupplyB:  acc.SupplyB,

		TotalVolume:   vol.TotalVolume,
		VolumeA:       vol.VolumeA,
		VolumeB:       vol.VolumeB,
		TradeCount:    vol.TradeCount,
		UniqueTraders: vol.UniqueTraders,

		IsEnded:           acc.IsEnded,
		WinnerDecided:     acc.WinnerDecided,
		WinnerIsA:         acc.WinnerIsA,
		TotalDistribution: acc.TotalDistribution,

		RecentTrades: vol.RecentTrades,

		ScannedAt: now.UnixMilli(),
	}
}

func stateFromAggregates(sum models.BattleSummary, addrs solana.BattleAddresses, agg models.SnapshotAggregates) *models.BattleState {
	scannedAt := agg.LastScannedAt.UnixMilli()
	sum.Cached = nil
	return &models.BattleState{
		BattleSummary: sum,

		BattleAddress: addrs.Battle.String(),
		VaultAddress:  addrs.Vault.String(),

		StartTime: agg.StartTime,
		EndTime:   agg.EndTime,

		BalanceA: agg.BalanceA,
		BalanceB: agg.BalanceB,

		TotalVolume:   agg.TotalVolume,
		VolumeA:       agg.VolumeA,
		VolumeB:       agg.VolumeB,
		TradeCount:    agg.TradeCount,
		UniqueTraders: agg.UniqueTraders,

		IsEnded:           agg.IsEnded,
		WinnerDecided:     agg.WinnerDecided,
		WinnerIsA:         agg.WinnerIsA,
		TotalDistribution: agg.TotalDistribution,

		RecentTrades: agg.RecentTrades,

		ScannedAt: scannedAt,
	}
}

type cacheEntry struct {
	result   ScanResult
	storedAt time.Time
}

// snapshotCache is a mutex-guarded map with lazy expiry. Battles
// number in the dozens, so there is no eviction beyond TTL.
type snapshotCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newSnapshotCache(ttl time.Duration, now func() time.Time) *snapshotCache {
	return &snapshotCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *snapshotCache) get(id string) (ScanResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return ScanResult{}, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, id)
		return ScanResult{}, false
	}
	return e.result, true
}

func (c *snapshotCache) put(id string, res ScanResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cacheEntry{result: res, storedAt: c.now()}
}
