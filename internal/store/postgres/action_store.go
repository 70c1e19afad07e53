package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// ActionStore implements domain.ActionStore on the append-only
// mirror_actions table.
type ActionStore struct {
	pool *pgxpool.Pool
}

// NewActionStore creates an ActionStore backed by pool.
func NewActionStore(pool *pgxpool.Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// AppendAction inserts a new action. Reusing an id is an error.
func (s *ActionStore) AppendAction(ctx context.Context, a domain.MirrorAction) error {
	var result []byte
	if len(a.Result) > 0 {
		result = a.Result
	}
	const query = `INSERT INTO mirror_actions (id, tx_hash, action, created_at, result_json) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, a.ID, a.TxHash, string(a.Kind), a.CreatedAt.UTC(), result); err != nil {
		return fmt.Errorf("postgres: append action %s: %w", a.ID, err)
	}
	return nil
}

// ListActionsSince returns actions created strictly after since, oldest
// first. limit <= 0 means no limit.
func (s *ActionStore) ListActionsSince(ctx context.Context, since time.Time, limit int) ([]domain.MirrorAction, error) {
	query := `SELECT id, tx_hash, action, created_at, result_json FROM mirror_actions
		WHERE created_at > $1 ORDER BY created_at, id`
	args := []any{since.UTC()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list actions: %w", err)
	}
	defer rows.Close()

	var out []domain.MirrorAction
	for rows.Next() {
		var (
			a      domain.MirrorAction
			kind   string
			result []byte
		)
		if err := rows.Scan(&a.ID, &a.TxHash, &kind, &a.CreatedAt, &result); err != nil {
			return nil, fmt.Errorf("postgres: scan action: %w", err)
		}
		a.Kind = domain.ActionKind(kind)
		if len(result) > 0 {
			a.Result = json.RawMessage(result)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
