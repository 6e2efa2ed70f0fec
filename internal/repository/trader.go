package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
)

// TraderRepo persists built trader profiles so the API can serve a
// last-known-good profile when the chain walk fails.
type TraderRepo struct {
	pool *pgxpool.Pool
}

func NewTraderRepo(pool *pgxpool.Pool) *TraderRepo {
	return &TraderRepo{pool: pool}
}

// SaveProfile stores the profile as a single document keyed by wallet.
func (r *TraderRepo) SaveProfile(ctx context.Context, p *models.TraderProfileStats) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile for %s: %w", p.Wallet, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO trader_profiles (wallet, profile, generated_at)
		VALUES ($1, $2, to_timestamp($3 / 1000.0))
		ON CONFLICT (wallet) DO UPDATE SET
			profile = EXCLUDED.profile,
			generated_at = EXCLUDED.generated_at
	`, p.Wallet, blob, p.GeneratedAt)
	if err != nil {
		return fmt.Errorf("save profile for %s: %w", p.Wallet, err)
	}
	return nil
}

// GetProfile returns the stored profile, or nil when the wallet has
// never been profiled.
func (r *TraderRepo) GetProfile(ctx context.Context, wallet string) (*models.TraderProfileStats, error) {
	var blob []byte
	err := r.pool.QueryRow(ctx, `
		SELECT profile FROM trader_profiles WHERE wallet = $1
	`, wallet).Scan(&blob)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("query profile for %s: %w", wallet, err)
	}

	var profile models.TraderProfileStats
	if err := json.Unmarshal(blob, &profile); err != nil {
		return nil, fmt.Errorf("decode profile for %s: %w", wallet, err)
	}
	return &profile, nil
}
