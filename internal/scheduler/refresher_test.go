package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/battle"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/scheduler"
)

type fakeLister struct {
	battles []models.BattleSummary
	err     error
	calls   atomic.Int32
}

func (f *fakeLister) ListActive(ctx context.Context) ([]models.BattleSummary, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.battles, nil
}

type fakeSnapshots struct {
	mu           sync.Mutex
	refreshed    []string
	failOn       string
	notStartedOn string
}

func (f *fakeSnapshots) Refresh(ctx context.Context, sum models.BattleSummary) (battle.ScanResult, error) {
	f.mu.Lock()
	f.refreshed = append(f.refreshed, sum.ID)
	f.mu.Unlock()

	if sum.ID == f.failOn {
		return battle.ScanResult{}, errors.New("rpc unavailable")
	}
	if sum.ID == f.notStartedOn {
		return battle.ScanResult{Status: battle.ScanNotStarted}, nil
	}
	return battle.ScanResult{Status: battle.ScanFound, State: &models.BattleState{}}, nil
}

func (f *fakeSnapshots) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshed...)
}

func catalog(ids ...string) []models.BattleSummary {
	out := make([]models.BattleSummary, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.BattleSummary{ID: id, BattleID: string(rune('1' + i))})
	}
	return out
}

func TestRefresher_RefreshNowSweepsAllBattles(t *testing.T) {
	lister := &fakeLister{battles: catalog("b-1", "b-2", "b-3")}
	snaps := &fakeSnapshots{notStartedOn: "b-2"}

	ref := scheduler.NewRefresher(lister, snaps, scheduler.RefresherConfig{Interval: time.Hour})

	if err := ref.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	seen := snaps.seen()
	if len(seen) != 3 {
		t.Fatalf("expected 3 battles refreshed, got %d: %v", len(seen), seen)
	}
	for i, want := range []string{"b-1", "b-2", "b-3"} {
		if seen[i] != want {
			t.Errorf("refresh order[%d] = %s, want %s", i, seen[i], want)
		}
	}
	t.Logf("Swept %d battles (one not yet on chain)", len(seen))
}

func TestRefresher_ContinuesPastFailures(t *testing.T) {
	lister := &fakeLister{battles: catalog("b-1", "b-2", "b-3")}
	snaps := &fakeSnapshots{failOn: "b-2"}

	ref := scheduler.NewRefresher(lister, snaps, scheduler.RefresherConfig{Interval: time.Hour})

	if err := ref.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow should absorb per-battle failures, got: %v", err)
	}

	if seen := snaps.seen(); len(seen) != 3 {
		t.Fatalf("expected all 3 battles attempted despite failure, got %v", seen)
	}
	t.Log("Per-battle failure did not stop the sweep")
}

func TestRefresher_ListFailurePropagates(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	snaps := &fakeSnapshots{}

	ref := scheduler.NewRefresher(lister, snaps, scheduler.RefresherConfig{Interval: time.Hour})

	err := ref.RefreshNow(context.Background())
	if err == nil {
		t.Fatal("expected error when catalog listing fails")
	}
	if seen := snaps.seen(); len(seen) != 0 {
		t.Fatalf("no battles should be refreshed when listing fails, got %v", seen)
	}
	t.Logf("Listing failure surfaced: %v", err)
}

func TestRefresher_StartStop(t *testing.T) {
	lister := &fakeLister{battles: catalog("b-1")}
	snaps := &fakeSnapshots{}

	ref := scheduler.NewRefresher(lister, snaps, scheduler.RefresherConfig{Interval: time.Hour})

	ref.Start()
	if !ref.Running() {
		t.Fatal("expected running after Start")
	}

	// Second Start is a no-op, not a second ticker
	ref.Start()
	if !ref.Running() {
		t.Fatal("expected still running after duplicate Start")
	}

	// Give the initial sweep goroutine a moment
	time.Sleep(200 * time.Millisecond)
	if lister.calls.Load() == 0 {
		t.Fatal("expected initial sweep to list battles")
	}

	ref.Stop()
	if ref.Running() {
		t.Fatal("expected not running after Stop")
	}
	ref.Stop() // second Stop must not panic

	t.Log("Start/Stop lifecycle: OK")
}
