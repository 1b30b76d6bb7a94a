package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxadm/analyzer/internal/core/domain"
)

// AttemptRepo implements storage.AttemptRepository using PostgreSQL.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a new PostgreSQL attempt repository.
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Save records one provider attempt.
func (r *AttemptRepo) Save(ctx context.Context, attempt *domain.ProviderAttempt) error {
	query := `
		INSERT INTO provider_attempts (id, request_id, provider, outcome, error, retries, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.RequestID,
		attempt.Provider,
		string(attempt.Outcome),
		attempt.Error,
		attempt.Retries,
		attempt.StartedAt,
		attempt.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

type attemptRow struct {
	ID         string    `db:"id"`
	RequestID  string    `db:"request_id"`
	Provider   string    `db:"provider"`
	Outcome    string    `db:"outcome"`
	Error      string    `db:"error"`
	Retries    int       `db:"retries"`
	StartedAt  time.Time `db:"started_at"`
	DurationMS int64     `db:"duration_ms"`
}

func (a *attemptRow) toDomain() *domain.ProviderAttempt {
	return &domain.ProviderAttempt{
		ID:        a.ID,
		RequestID: a.RequestID,
		Provider:  a.Provider,
		Outcome:   domain.AttemptOutcome(a.Outcome),
		Error:     a.Error,
		Retries:   a.Retries,
		StartedAt: a.StartedAt,
		Duration:  time.Duration(a.DurationMS) * time.Millisecond,
	}
}

// ListByRequest retrieves all attempts for a request in call order.
func (r *AttemptRepo) ListByRequest(ctx context.Context, requestID string) ([]*domain.ProviderAttempt, error) {
	query := `
		SELECT id, request_id, provider, outcome, error, retries, started_at, duration_ms
		FROM provider_attempts
		WHERE request_id = $1
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryxContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProviderAttempt
	for rows.Next() {
		var row attemptRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		out = append(out, row.toDomain())
	}
	return out, rows.Err()
}
