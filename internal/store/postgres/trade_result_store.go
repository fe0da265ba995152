package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polyarb/arbengine/internal/domain"
)

// TradeResultStore implements domain.TradeResultStore using PostgreSQL,
// the queryable mirror of trades.csv.
type TradeResultStore struct {
	pool *pgxpool.Pool
}

// NewTradeResultStore creates a new TradeResultStore.
func NewTradeResultStore(pool *pgxpool.Pool) *TradeResultStore {
	return &TradeResultStore{pool: pool}
}

// Insert records one completed execution attempt, with its per-leg outcomes
// serialized to JSON.
func (s *TradeResultStore) Insert(ctx context.Context, tr domain.TradeResult) error {
	legsJSON, err := json.Marshal(tr.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal trade legs: %w", err)
	}

	const query = `
		INSERT INTO trade_results (
			id, opportunity_id, legs, status, expected_pnl_usd, actual_pnl_usd,
			total_fees_usd, total_slip_usd, latency_ms, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		tr.ID, tr.OpportunityID, legsJSON, string(tr.Status), tr.ExpectedPnLUSD, tr.ActualPnLUSD,
		tr.TotalFeesUSD, tr.TotalSlipUSD, tr.LatencyMs, tr.StartedAt, tr.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade result %s: %w", tr.ID, err)
	}
	return nil
}

// ListRecent returns the most recently completed trades, newest first.
func (s *TradeResultStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeResult, error) {
	const query = `
		SELECT id, opportunity_id, legs, status, expected_pnl_usd, actual_pnl_usd,
			total_fees_usd, total_slip_usd, latency_ms, started_at, completed_at
		FROM trade_results ORDER BY completed_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trade results: %w", err)
	}
	defer rows.Close()
	return scanTradeResultRows(rows)
}

// SumPnL sums ActualPnLUSD across every trade completed since the given
// time. The /status endpoint does not report it.
func (s *TradeResultStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(actual_pnl_usd), 0) FROM trade_results WHERE completed_at >= $1`
	var sum float64
	if err := s.pool.QueryRow(ctx, query, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum trade pnl: %w", err)
	}
	return sum, nil
}

func scanTradeResultRows(rows pgx.Rows) ([]domain.TradeResult, error) {
	var out []domain.TradeResult
	for rows.Next() {
		var tr domain.TradeResult
		var legsJSON []byte
		var status string
		if err := rows.Scan(
			&tr.ID, &tr.OpportunityID, &legsJSON, &status, &tr.ExpectedPnLUSD, &tr.ActualPnLUSD,
			&tr.TotalFeesUSD, &tr.TotalSlipUSD, &tr.LatencyMs, &tr.StartedAt, &tr.CompletedAt,
		); err != nil {
			return nil, err
		}
		tr.Status = domain.TradeStatus(status)
		if len(legsJSON) > 0 {
			_ = json.Unmarshal(legsJSON, &tr.Legs)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

var _ domain.TradeResultStore = (*TradeResultStore)(nil)
