package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polyarb/arbengine/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL,
// mirroring each row the orchestrator writes to opportunities.csv so the
// queryable history survives independently of the flat file.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert records one detected opportunity, with its legs serialized to JSON.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	legsJSON, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity legs: %w", err)
	}

	const query = `
		INSERT INTO opportunities (
			id, legs, kl_divergence, l1_distance, profit_metric,
			expected_profit_usd, trade_notional, detected_at, converged, iterations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		opp.ID, legsJSON, opp.KLDivergence, opp.L1Distance, opp.ProfitMetric,
		opp.ExpectedProfitUSD, opp.TradeNotional, opp.DetectedAt, opp.Converged, opp.Iterations,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recently detected opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	const query = `
		SELECT id, legs, kl_divergence, l1_distance, profit_metric,
			expected_profit_usd, trade_notional, detected_at, converged, iterations
		FROM opportunities ORDER BY detected_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunityRows(rows)
}

func scanOpportunityRows(rows pgx.Rows) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var legsJSON []byte
		if err := rows.Scan(
			&opp.ID, &legsJSON, &opp.KLDivergence, &opp.L1Distance, &opp.ProfitMetric,
			&opp.ExpectedProfitUSD, &opp.TradeNotional, &opp.DetectedAt, &opp.Converged, &opp.Iterations,
		); err != nil {
			return nil, err
		}
		if len(legsJSON) > 0 {
			_ = json.Unmarshal(legsJSON, &opp.Legs)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
