package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
)

// scannable lets scan helpers accept both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// BattleRepo reads and writes the battle catalog. Catalog rows come
// from listing operations; the aggregate columns are written back by
// snapshot scans.
type BattleRepo struct {
	pool *pgxpool.Pool
}

func NewBattleRepo(pool *pgxpool.Pool) *BattleRepo {
	return &BattleRepo{pool: pool}
}

const battleColumns = `id, battle_id, title, side_a, side_b, created_at,
	start_time_ms, end_time_ms, balance_a, balance_b, volume_a, volume_b,
	total_volume, trade_count, unique_traders, is_ended, winner_decided,
	winner_is_a, total_distribution, recent_trades, last_scanned_at`

// List returns every cataloged battle, newest listing first.
func (r *BattleRepo) List(ctx context.Context) ([]models.BattleSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+battleColumns+`
		FROM battles
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query battles: %w", err)
	}
	defer rows.Close()
	return collectBattles(rows)
}

// ListActive returns battles still worth rescanning: never scanned, or
// not yet ended at the last scan.
func (r *BattleRepo) ListActive(ctx context.Context) ([]models.BattleSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+battleColumns+`
		FROM battles
		WHERE last_scanned_at IS NULL OR is_ended = FALSE
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active battles: %w", err)
	}
	defer rows.Close()
	return collectBattles(rows)
}

// Get looks a battle up by catalog id or on-chain battle id. Returns
// nil without error when no row matches.
func (r *BattleRepo) Get(ctx context.Context, id string) (*models.BattleSummary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+battleColumns+`
		FROM battles
		WHERE id = $1 OR battle_id = $1
		LIMIT 1
	`, id)
	return scanBattle(row)
}

// Upsert inserts or refreshes a catalog listing. Aggregate columns are
// left alone; only snapshot scans write those.
func (r *BattleRepo) Upsert(ctx context.Context, b *models.BattleSummary) (*models.BattleSummary, error) {
	sideA, err := json.Marshal(b.SideA)
	if err != nil {
		return nil, fmt.Errorf("marshal side A: %w", err)
	}
	sideB, err := json.Marshal(b.SideB)
	if err != nil {
		return nil, fmt.Errorf("marshal side B: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO battles (id, battle_id, title, side_a, side_b)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			battle_id = EXCLUDED.battle_id,
			title = EXCLUDED.title,
			side_a = EXCLUDED.side_a,
			side_b = EXCLUDED.side_b
		RETURNING `+battleColumns,
		b.ID, b.BattleID, b.Title, sideA, sideB)
	return scanBattle(row)
}

// SaveSnapshot writes the scanned aggregates back onto the catalog
// row. The battle must already be listed.
func (r *BattleRepo) SaveSnapshot(ctx context.Context, state *models.BattleState) error {
	recent, err := json.Marshal(state.RecentTrades)
	if err != nil {
		return fmt.Errorf("marshal recent trades: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE battles SET
			start_time_ms = $2,
			end_time_ms = $3,
			balance_a = $4,
			balance_b = $5,
			volume_a = $6,
			volume_b = $7,
			total_volume = $8,
			trade_count = $9,
			unique_traders = $10,
			is_ended = $11,
			winner_decided = $12,
			winner_is_a = $13,
			total_distribution = $14,
			recent_trades = $15,
			last_scanned_at = NOW()
		WHERE id = $1
	`,
		state.ID,
		state.StartTime, state.EndTime,
		state.BalanceA, state.BalanceB,
		state.VolumeA, state.VolumeB, state.TotalVolume,
		state.TradeCount, state.UniqueTraders,
		state.IsEnded, state.WinnerDecided, state.WinnerIsA,
		state.TotalDistribution, recent)
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", state.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save snapshot: battle %s is not in the catalog", state.ID)
	}
	return nil
}

func scanBattle(row scannable) (*models.BattleSummary, error) {
	var (
		sum          models.BattleSummary
		agg          models.SnapshotAggregates
		sideA, sideB []byte
		recent       []byte
		lastScanned  *time.Time
	)

	err := row.Scan(
		&sum.ID, &sum.BattleID, &sum.Title, &sideA, &sideB, &sum.CreatedAt,
		&agg.StartTime, &agg.EndTime, &agg.BalanceA, &agg.BalanceB,
		&agg.VolumeA, &agg.VolumeB, &agg.TotalVolume,
		&agg.TradeCount, &agg.UniqueTraders,
		&agg.IsEnded, &agg.WinnerDecided, &agg.WinnerIsA,
		&agg.TotalDistribution, &recent, &lastScanned,
	)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("scan battle: %w", err)
	}

	if err := json.Unmarshal(sideA, &sum.SideA); err != nil {
		return nil, fmt.Errorf("decode side A for %s: %w", sum.ID, err)
	}
	if err := json.Unmarshal(sideB, &sum.SideB); err != nil {
		return nil, fmt.Errorf("decode side B for %s: %w", sum.ID, err)
	}

	if lastScanned != nil {
		if len(recent) > 0 {
			if err := json.Unmarshal(recent, &agg.RecentTrades); err != nil {
				return nil, fmt.Errorf("decode recent trades for %s: %w", sum.ID, err)
			}
		}
		agg.LastScannedAt = *lastScanned
		sum.Cached = &agg
	}
	return &sum, nil
}

func collectBattles(rows rowsIter) ([]models.BattleSummary, error) {
	var out []models.BattleSummary
	for rows.Next() {
		sum, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, rows.Err()
}
