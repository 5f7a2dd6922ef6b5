package postgres

import (
	"context"

	"campus-rides/internal/domain/matching"
	"campus-rides/internal/ports"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchEventRepo persists match events using pgx and plain SQL. The audit
// trail is append-only and single-statement, so it runs on the pool directly
// with no surrounding transaction.
type MatchEventRepo struct {
	pool *pgxpool.Pool
}

// NewMatchEventRepo constructs a new MatchEventRepo.
func NewMatchEventRepo(pool *pgxpool.Pool) ports.MatchEventRepository {
	return &MatchEventRepo{pool: pool}
}

// Append inserts a new match_events row.
func (repo *MatchEventRepo) Append(ctx context.Context, event *matching.Event) error {
	// validate event before inserting
	if err := event.Validate(); err != nil {
		return err
	}

	// serialize event data to JSON
	data, err := event.DataJSON()
	if err != nil {
		return err
	}

	// insert match event record
	err = repo.pool.QueryRow(ctx, `
		INSERT INTO match_events (request_id, event_type, phase, event_data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, created_at
	`,
		event.RequestID,
		event.Type.String(),
		event.Phase.String(),
		string(data),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return err
	}

	return nil
}
