package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// StrategyStore implements domain.StrategyStore using PostgreSQL.
type StrategyStore struct {
	pool *pgxpool.Pool
}

// NewStrategyStore creates a StrategyStore backed by the given pool.
func NewStrategyStore(pool *pgxpool.Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

// ListActiveByUser returns the user's active strategies ordered by id, which
// fixes first-match precedence across scan cycles.
func (s *StrategyStore) ListActiveByUser(ctx context.Context, userID int64) ([]domain.Strategy, error) {
	const query = `
		SELECT id, user_id, active, min_profit_pct, exchanges, max_amount, updated_at
		FROM strategies
		WHERE user_id = $1 AND active
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list strategies for user %d: %w", userID, err)
	}
	defer rows.Close()

	var strategies []domain.Strategy
	for rows.Next() {
		var st domain.Strategy
		if err := rows.Scan(
			&st.ID, &st.UserID, &st.Active, &st.MinProfitPct,
			&st.Exchanges, &st.MaxAmount, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan strategy: %w", err)
		}
		strategies = append(strategies, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list strategies for user %d: %w", userID, err)
	}
	return strategies, nil
}

// Upsert inserts or updates a strategy and returns its id.
func (s *StrategyStore) Upsert(ctx context.Context, st domain.Strategy) (int64, error) {
	if st.ID == 0 {
		const insert = `
			INSERT INTO strategies (user_id, active, min_profit_pct, exchanges, max_amount)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		var id int64
		err := s.pool.QueryRow(ctx, insert,
			st.UserID, st.Active, st.MinProfitPct, st.Exchanges, st.MaxAmount,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert strategy: %w", err)
		}
		return id, nil
	}

	const update = `
		UPDATE strategies
		SET active = $3, min_profit_pct = $4, exchanges = $5, max_amount = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`
	tag, err := s.pool.Exec(ctx, update,
		st.ID, st.UserID, st.Active, st.MinProfitPct, st.Exchanges, st.MaxAmount,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: update strategy %d: %w", st.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("postgres: update strategy %d: %w", st.ID, domain.ErrNotFound)
	}
	return st.ID, nil
}

var _ domain.StrategyStore = (*StrategyStore)(nil)
