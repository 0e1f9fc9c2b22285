package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brightsteps/internal/database"
	"brightsteps/internal/models"
	"brightsteps/internal/progress"
)

// TraitRepository stores cumulative trait scores and the XP ledger
type TraitRepository struct {
	db *database.DB
}

// NewTraitRepository creates a new trait repository
func NewTraitRepository(db *database.DB) *TraitRepository {
	return &TraitRepository{db: db}
}

// XPApplication is the XP one completion event grants, ready to persist
type XPApplication struct {
	ChildID     int64
	ChallengeID int64
	EventKey    string
	Feeling     int
	AwardedAt   time.Time
	Deltas      []progress.TraitDelta
}

var errAlreadyApplied = errors.New("xp already applied for event")

// FetchTraitScores returns every trait score a child holds
func (r *TraitRepository) FetchTraitScores(ctx context.Context, childID int64) ([]models.TraitScore, error) {
	return queryTraitScores(ctx, r.db, "SELECT child_id, trait_id, score FROM trait_scores WHERE child_id = ? ORDER BY trait_id ASC", childID)
}

// ListAllTraitScores returns every score row, for backups
func (r *TraitRepository) ListAllTraitScores(ctx context.Context) ([]models.TraitScore, error) {
	return queryTraitScores(ctx, r.db, "SELECT child_id, trait_id, score FROM trait_scores ORDER BY child_id ASC, trait_id ASC")
}

func queryTraitScores(ctx context.Context, db database.DBTX, query string, args ...interface{}) ([]models.TraitScore, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trait scores: %w", err)
	}
	defer rows.Close()

	var scores []models.TraitScore
	for rows.Next() {
		var s models.TraitScore
		if err := rows.Scan(&s.ChildID, &s.TraitID, &s.Score); err != nil {
			return nil, fmt.Errorf("failed to scan trait score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// FetchAwards returns ledger rows for a child awarded at or after since
func (r *TraitRepository) FetchAwards(ctx context.Context, childID int64, since time.Time) ([]models.XPAward, error) {
	query := `
		SELECT child_id, event_key, challenge_id, trait_id, delta, awarded_at
		FROM xp_awards
		WHERE child_id = ? AND awarded_at >= ?
		ORDER BY awarded_at ASC, trait_id ASC
	`
	return queryAwards(ctx, r.db, query, childID, since.UTC())
}

// ListAllAwards returns the whole ledger, for backups
func (r *TraitRepository) ListAllAwards(ctx context.Context) ([]models.XPAward, error) {
	query := `
		SELECT child_id, event_key, challenge_id, trait_id, delta, awarded_at
		FROM xp_awards
		ORDER BY child_id ASC, awarded_at ASC, trait_id ASC
	`
	return queryAwards(ctx, r.db, query)
}

func queryAwards(ctx context.Context, db database.DBTX, query string, args ...interface{}) ([]models.XPAward, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query xp awards: %w", err)
	}
	defer rows.Close()

	var awards []models.XPAward
	for rows.Next() {
		var a models.XPAward
		if err := rows.Scan(&a.ChildID, &a.EventKey, &a.ChallengeID, &a.TraitID, &a.Delta, &a.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp award: %w", err)
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

// PersistTraitScoreDelta atomically adds delta to a trait score and returns
// the new total. The increment happens in the database, so concurrent
// callers never overwrite each other.
func PersistTraitScoreDelta(ctx context.Context, db database.DBTX, childID, traitID int64, delta int) (models.TraitScore, error) {
	if delta < 0 {
		return models.TraitScore{}, progress.InvalidInput("persist trait score", "negative delta %d for trait %d", delta, traitID)
	}

	query := db.GetDialect().UpsertQuery(database.Upsert{
		Table:     "trait_scores",
		Columns:   []string{"child_id", "trait_id", "score"},
		Conflict:  []string{"child_id", "trait_id"},
		Increment: []string{"score"},
	})
	if _, err := db.ExecContext(ctx, query, childID, traitID, float64(delta)); err != nil {
		return models.TraitScore{}, fmt.Errorf("failed to increment trait %d: %w", traitID, err)
	}

	score := models.TraitScore{ChildID: childID, TraitID: traitID}
	err := db.QueryRowContext(ctx, "SELECT score FROM trait_scores WHERE child_id = ? AND trait_id = ?", childID, traitID).Scan(&score.Score)
	if err != nil {
		return models.TraitScore{}, fmt.Errorf("failed to read trait %d: %w", traitID, err)
	}
	return score, nil
}

// ApplyXPAwards persists the XP of one completion event exactly once.
// The application row, ledger rows and score increments commit together or
// not at all. When the event was already applied nothing changes and the
// recorded awards are returned with applied set to false.
func (r *TraitRepository) ApplyXPAwards(ctx context.Context, app XPApplication) ([]progress.TraitAward, bool, error) {
	done, err := r.applicationExists(ctx, app.ChildID, app.EventKey)
	if err != nil {
		return nil, false, err
	}
	if done {
		awards, err := r.recordedAwards(ctx, app.ChildID, app.EventKey)
		return awards, false, err
	}

	awardedAt := app.AwardedAt.UTC()
	var awards []progress.TraitAward
	err = r.db.WithTx(ctx, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO xp_applications (child_id, event_key, challenge_id, feeling, applied_at) VALUES (?, ?, ?, ?, ?)",
			app.ChildID, app.EventKey, app.ChallengeID, app.Feeling, time.Now().UTC())
		if err != nil {
			if tx.GetDialect().IsUniqueViolation(err) {
				return errAlreadyApplied
			}
			return fmt.Errorf("failed to record xp application: %w", err)
		}

		awards = make([]progress.TraitAward, 0, len(app.Deltas))
		for _, d := range app.Deltas {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO xp_awards (child_id, event_key, challenge_id, trait_id, delta, awarded_at) VALUES (?, ?, ?, ?, ?, ?)",
				app.ChildID, app.EventKey, app.ChallengeID, d.TraitID, d.Delta, awardedAt)
			if err != nil {
				if tx.GetDialect().IsUniqueViolation(err) {
					return &progress.Error{Kind: progress.ErrConcurrencyConflict, Op: "apply xp", Err: err}
				}
				return fmt.Errorf("failed to record xp award: %w", err)
			}

			score, err := PersistTraitScoreDelta(ctx, tx, app.ChildID, d.TraitID, d.Delta)
			if err != nil {
				return err
			}
			awards = append(awards, progress.TraitAward{TraitID: d.TraitID, Delta: d.Delta, NewTotal: score.Score})
		}
		return nil
	})

	if errors.Is(err, errAlreadyApplied) {
		awards, err := r.recordedAwards(ctx, app.ChildID, app.EventKey)
		return awards, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return awards, true, nil
}

func (r *TraitRepository) applicationExists(ctx context.Context, childID int64, eventKey string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM xp_applications WHERE child_id = ? AND event_key = ?", childID, eventKey).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check xp application: %w", err)
	}
	return count > 0, nil
}

// recordedAwards returns the ledger rows of an applied event with the
// trait's current total
func (r *TraitRepository) recordedAwards(ctx context.Context, childID int64, eventKey string) ([]progress.TraitAward, error) {
	query := `
		SELECT a.trait_id, a.delta, COALESCE(s.score, 0)
		FROM xp_awards a
		LEFT JOIN trait_scores s ON s.child_id = a.child_id AND s.trait_id = a.trait_id
		WHERE a.child_id = ? AND a.event_key = ?
		ORDER BY a.trait_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, childID, eventKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query recorded awards: %w", err)
	}
	defer rows.Close()

	awards := []progress.TraitAward{}
	for rows.Next() {
		var a progress.TraitAward
		if err := rows.Scan(&a.TraitID, &a.Delta, &a.NewTotal); err != nil {
			return nil, fmt.Errorf("failed to scan recorded award: %w", err)
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

// XPApplicationRecord is one row of the application log, for backups
type XPApplicationRecord struct {
	ChildID     int64     `json:"child_id"`
	EventKey    string    `json:"event_key"`
	ChallengeID int64     `json:"challenge_id"`
	Feeling     int       `json:"feeling"`
	AppliedAt   time.Time `json:"applied_at"`
}

// ListAllApplications returns the application log, for backups
func (r *TraitRepository) ListAllApplications(ctx context.Context) ([]XPApplicationRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT child_id, event_key, challenge_id, feeling, applied_at FROM xp_applications ORDER BY child_id ASC, applied_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query xp applications: %w", err)
	}
	defer rows.Close()

	var records []XPApplicationRecord
	for rows.Next() {
		var rec XPApplicationRecord
		if err := rows.Scan(&rec.ChildID, &rec.EventKey, &rec.ChallengeID, &rec.Feeling, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp application: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
