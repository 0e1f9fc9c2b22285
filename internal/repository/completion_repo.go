package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"brightsteps/internal/database"
	"brightsteps/internal/models"
	"brightsteps/internal/progress"
)

// CompletionRepository is the event store for challenge completions
type CompletionRepository struct {
	db database.DBTX
}

// NewCompletionRepository creates a new completion repository
func NewCompletionRepository(db database.DBTX) *CompletionRepository {
	return &CompletionRepository{db: db}
}

const completionColumns = `
	SELECT cc.child_id, cc.challenge_id, c.pillar_id, cc.completed_at, cc.feeling
	FROM challenge_completions cc
	JOIN challenges c ON c.id = cc.challenge_id
`

// FetchCompletions returns every completion a child has, oldest first
func (r *CompletionRepository) FetchCompletions(ctx context.Context, childID int64) ([]models.CompletionEvent, error) {
	query := completionColumns + " WHERE cc.child_id = ? ORDER BY cc.completed_at ASC, cc.challenge_id ASC"
	return r.queryCompletions(ctx, query, childID)
}

// ListAllCompletions returns completions for every child, for backups
func (r *CompletionRepository) ListAllCompletions(ctx context.Context) ([]models.CompletionEvent, error) {
	query := completionColumns + " ORDER BY cc.child_id ASC, cc.completed_at ASC, cc.challenge_id ASC"
	return r.queryCompletions(ctx, query)
}

// GetCompletion retrieves the completion of one challenge by one child
func (r *CompletionRepository) GetCompletion(ctx context.Context, childID, challengeID int64) (*models.CompletionEvent, error) {
	query := completionColumns + " WHERE cc.child_id = ? AND cc.challenge_id = ?"
	events, err := r.queryCompletions(ctx, query, childID, challengeID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, progress.NotFound("get completion", "child %d has not completed challenge %d", childID, challengeID)
	}
	return &events[0], nil
}

// UpsertCompletion records a completion. Completing the same challenge again
// at a later time moves completed_at and replaces the feeling instead of
// adding a row; an earlier or equal time leaves the stored row as it is.
func (r *CompletionRepository) UpsertCompletion(ctx context.Context, event models.CompletionEvent) error {
	query := r.db.GetDialect().UpsertQuery(database.Upsert{
		Table:    "challenge_completions",
		Columns:  []string{"child_id", "challenge_id", "completed_at", "feeling"},
		Conflict: []string{"child_id", "challenge_id"},
		Update:   []string{"completed_at", "feeling"},
		Newer:    "completed_at",
	})

	var feeling sql.NullInt64
	if event.Feeling != nil {
		feeling = sql.NullInt64{Int64: int64(*event.Feeling), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, query, event.ChildID, event.ChallengeID, event.CompletedAt.UTC().Truncate(time.Microsecond), feeling); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

func (r *CompletionRepository) queryCompletions(ctx context.Context, query string, args ...interface{}) ([]models.CompletionEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var events []models.CompletionEvent
	for rows.Next() {
		var event models.CompletionEvent
		var feeling sql.NullInt64
		if err := rows.Scan(
			&event.ChildID,
			&event.ChallengeID,
			&event.PillarID,
			&event.CompletedAt,
			&feeling,
		); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		if feeling.Valid {
			f := int(feeling.Int64)
			event.Feeling = &f
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read completions: %w", err)
	}

	return events, nil
}
