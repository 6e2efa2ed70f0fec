package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/helius"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/solana"
)

type fakeAccounts struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeAccounts) GetAccountInfo(ctx context.Context, address string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeSink struct {
	saved chan *models.BattleState
}

func (f *fakeSink) SaveSnapshot(ctx context.Context, state *models.BattleState) error {
	f.saved <- state
	return nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var testBaseTime = time.Unix(1700000000, 0)

func testSummary() models.BattleSummary {
	return models.BattleSummary{
		ID:       "b-1",
		BattleID: "42",
		Title:    "Neon Vox vs Static Roar",
		SideA:    models.BattleSide{ArtistName: "Neon Vox"},
		SideB:    models.BattleSide{ArtistName: "Static Roar"},
	}
}

// liveAccount is an active battle holding 60 and 40 SOL.
func liveAccount() []byte {
	return accountFixture{
		battleID: 42,
		startSec: testBaseTime.Unix() - 3600,
		endSec:   testBaseTime.Unix() + 3600,
		balanceA: 60_000_000_000,
		balanceB: 40_000_000_000,
		supplyA:  1_000_000,
		supplyB:  1_000_000,
		isActive: true,
	}.encode()
}

func liveHistory() *fakeHistory {
	return &fakeHistory{pages: [][]helius.Transaction{{
		transfer("sig-buy", testBaseTime.Unix()-60, "W1", deriveTestVault(), 5_000_000_000),
		transfer("sig-sell", testBaseTime.Unix()-120, deriveTestVault(), "W2", 2_000_000_000),
	}}}
}

func deriveTestAddrs() solana.BattleAddresses {
	program := solana.MustPublicKey(solana.DefaultBattleProgramID)
	addrs, err := solana.DeriveBattleAddresses(42, program)
	if err != nil {
		panic(err)
	}
	return addrs
}

func deriveTestVault() string {
	return deriveTestAddrs().Vault.String()
}

func newTestAssembler(accounts *fakeAccounts, history *fakeHistory, sink SnapshotSink, clock *testClock) *Assembler {
	return NewAssembler(accounts, history, sink, nil, AssemblerConfig{
		ProgramID: solana.MustPublicKey(solana.DefaultBattleProgramID),
		Clock:     clock.Now,
	})
}

func TestSnapshot_MergesAccountAndVolume(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	asm := newTestAssembler(accounts, liveHistory(), nil, clock)

	res, err := asm.Snapshot(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != ScanFound {
		t.Fatalf("Status = %s, want found", res.Status)
	}

	state := res.State
	addrs := deriveTestAddrs()
	if state.BattleAddress != addrs.Battle.String() {
		t.Errorf("BattleAddress = %s, want %s", state.BattleAddress, addrs.Battle)
	}
	if state.VaultAddress != addrs.Vault.String() {
		t.Errorf("VaultAddress = %s, want %s", state.VaultAddress, addrs.Vault)
	}

	if state.ID != "b-1" || state.Title != "Neon Vox vs Static Roar" {
		t.Errorf("catalog fields not carried: %+v", state.BattleSummary)
	}
	if state.Cached != nil {
		t.Error("merged state must not carry the catalog cache blob")
	}

	if !almostEqual(state.BalanceA, 60) || !almostEqual(state.BalanceB, 40) {
		t.Errorf("balances = %v/%v, want 60/40", state.BalanceA, state.BalanceB)
	}
	if !almostEqual(state.TotalVolume, 7) || !almostEqual(state.VolumeA, 4.2) || !almostEqual(state.VolumeB, 2.8) {
		t.Errorf("volume = %v (%v/%v), want 7 (4.2/2.8)", state.TotalVolume, state.VolumeA, state.VolumeB)
	}
	if state.TradeCount != 2 || state.UniqueTraders != 2 || len(state.RecentTrades) != 2 {
		t.Errorf("activity = %d trades, %d traders, %d recent", state.TradeCount, state.UniqueTraders, len(state.RecentTrades))
	}
	if state.IsEnded {
		t.Error("battle is active and before its end time")
	}
	if state.ScannedAt != testBaseTime.UnixMilli() {
		t.Errorf("ScannedAt = %d, want clock time", state.ScannedAt)
	}
}

func TestSnapshot_CachedWithinTTL(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	history := liveHistory()
	asm := newTestAssembler(accounts, history, nil, clock)

	first, err := asm.Snapshot(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(2 * time.Minute)
	second, err := asm.Snapshot(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if accounts.calls != 1 {
		t.Errorf("account fetched %d times, want 1", accounts.calls)
	}
	if len(history.calls) != 1 {
		t.Errorf("history fetched %d times, want 1", len(history.calls))
	}
	if first.State != second.State {
		t.Error("cached result must be the identical snapshot")
	}
}

func TestSnapshot_RescansAfterTTL(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	history := liveHistory()
	history.pages = append(history.pages, history.pages[0])
	asm := newTestAssembler(accounts, history, nil, clock)

	if _, err := asm.Snapshot(context.Background(), testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(6 * time.Minute)
	if _, err := asm.Snapshot(context.Background(), testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if accounts.calls != 2 {
		t.Errorf("account fetched %d times, want rescan after TTL", accounts.calls)
	}
}

func TestSnapshot_NotStartedTaggedAndCached(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{err: fmt.Errorf("%w: derived", solana.ErrAccountNotFound)}
	asm := newTestAssembler(accounts, &fakeHistory{}, nil, clock)

	res, err := asm.Snapshot(context.Background(), testSummary())
	if err != nil {
		t.Fatalf("missing account is a state, not an error: %v", err)
	}
	if res.Status != ScanNotStarted {
		t.Fatalf("Status = %s, want not_started", res.Status)
	}
	if res.State != nil {
		t.Fatal("not-started result must carry no state")
	}

	if _, err := asm.Snapshot(context.Background(), testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.calls != 1 {
		t.Errorf("not-started result should be cached, got %d fetches", accounts.calls)
	}
}

func TestSnapshot_DecodeFailureSurfaces(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: make([]byte, 10)}
	asm := newTestAssembler(accounts, &fakeHistory{}, nil, clock)

	_, err := asm.Snapshot(context.Background(), testSummary())
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}

	// Failures are never cached; the next request tries again.
	asm.Snapshot(context.Background(), testSummary())
	if accounts.calls != 2 {
		t.Errorf("failed scan was cached, got %d fetches", accounts.calls)
	}
}

func TestSnapshot_HistoryFailureSurfaces(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	history := &fakeHistory{errOnPage: 1}
	asm := newTestAssembler(accounts, history, nil, clock)

	_, err := asm.Snapshot(context.Background(), testSummary())
	var recErr *ReconstructionError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected ReconstructionError, got %v", err)
	}
}

func TestSnapshot_ServesFreshCatalogAggregates(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	asm := newTestAssembler(accounts, &fakeHistory{}, nil, clock)

	sum := testSummary()
	sum.Cached = &models.SnapshotAggregates{
		StartTime:     (testBaseTime.Unix() - 7200) * 1000,
		EndTime:       (testBaseTime.Unix() - 3600) * 1000,
		BalanceA:      12,
		BalanceB:      8,
		TotalVolume:   30,
		VolumeA:       18,
		VolumeB:       12,
		TradeCount:    9,
		UniqueTraders: 4,
		LastScannedAt: testBaseTime.Add(-time.Minute),
	}

	res, err := asm.Snapshot(context.Background(), sum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != ScanFound {
		t.Fatalf("Status = %s, want found", res.Status)
	}
	if accounts.calls != 0 {
		t.Errorf("fresh catalog aggregates must not hit the chain, got %d fetches", accounts.calls)
	}
	if !almostEqual(res.State.BalanceA, 12) || res.State.TradeCount != 9 {
		t.Errorf("aggregates not carried: %+v", res.State)
	}
	if !res.State.IsEnded {
		t.Error("end time passed since the stored scan, state must read as ended")
	}
}

func TestSnapshot_StaleCatalogAggregatesRescans(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	asm := newTestAssembler(accounts, liveHistory(), nil, clock)

	sum := testSummary()
	sum.Cached = &models.SnapshotAggregates{
		BalanceA:      12,
		LastScannedAt: testBaseTime.Add(-10 * time.Minute),
	}

	res, err := asm.Snapshot(context.Background(), sum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.calls != 1 {
		t.Errorf("stale aggregates must trigger a scan, got %d fetches", accounts.calls)
	}
	if !almostEqual(res.State.BalanceA, 60) {
		t.Errorf("BalanceA = %v, want live value 60", res.State.BalanceA)
	}
}

func TestSnapshot_PersistsScannedState(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	sink := &fakeSink{saved: make(chan *models.BattleState, 1)}
	asm := newTestAssembler(accounts, liveHistory(), sink, clock)

	if _, err := asm.Snapshot(context.Background(), testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case state := <-sink.saved:
		if state.ID != "b-1" {
			t.Errorf("persisted battle %s, want b-1", state.ID)
		}
		if !almostEqual(state.TotalVolume, 7) {
			t.Errorf("persisted volume = %v, want 7", state.TotalVolume)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was never persisted")
	}
}

func TestRefresh_BypassesFreshCache(t *testing.T) {
	clock := newTestClock(testBaseTime)
	accounts := &fakeAccounts{data: liveAccount()}
	history := liveHistory()
	history.pages = append(history.pages, history.pages[0])
	asm := newTestAssembler(accounts, history, nil, clock)

	if _, err := asm.Snapshot(context.Background(), testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := asm.Refresh(context.Background(), testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.calls != 2 {
		t.Fatalf("Refresh must scan, got %d fetches", accounts.calls)
	}

	// The refreshed result replaces the cached one.
	if _, err := asm.Snapshot(context.Background(), testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.calls != 2 {
		t.Errorf("refresh result was not cached, got %d fetches", accounts.calls)
	}
}
