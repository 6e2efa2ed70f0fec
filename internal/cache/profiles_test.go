package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
)

func setupCache(t *testing.T, ttl time.Duration) *ProfileCache {
	t.Helper()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping redis integration test")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	return NewProfileCache(rdb, ttl)
}

func TestProfileCache_RoundTrip(t *testing.T) {
	c := setupCache(t, time.Minute)
	ctx := context.Background()

	wallet := fmt.Sprintf("CacheWallet%d", time.Now().UnixNano())
	profile := &models.TraderProfileStats{
		Wallet:  wallet,
		Wins:    2,
		Losses:  1,
		WinRate: 2.0 / 3.0,
		NetPL:   1.25,
	}

	if err := c.Put(ctx, profile); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := c.Get(ctx, wallet)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.Wins != 2 || got.NetPL != 1.25 {
		t.Fatalf("cached profile mismatch: %+v", got)
	}
}

func TestProfileCache_MissReturnsNil(t *testing.T) {
	c := setupCache(t, time.Minute)

	got, err := c.Get(context.Background(), "NeverCachedWallet")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestProfileCache_Expires(t *testing.T) {
	c := setupCache(t, 100*time.Millisecond)
	ctx := context.Background()

	wallet := fmt.Sprintf("ExpiryWallet%d", time.Now().UnixNano())
	if err := c.Put(ctx, &models.TraderProfileStats{Wallet: wallet}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	got, err := c.Get(ctx, wallet)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatal("expected entry to expire")
	}
}

func TestProfileCache_NilDisabled(t *testing.T) {
	var c *ProfileCache

	got, err := c.Get(context.Background(), "any")
	if err != nil || got != nil {
		t.Fatalf("nil cache must read as a miss, got %v / %v", got, err)
	}
	if err := c.Put(context.Background(), &models.TraderProfileStats{Wallet: "any"}); err != nil {
		t.Fatalf("nil cache Put must be a no-op, got %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("nil cache must report unavailable")
	}
}
