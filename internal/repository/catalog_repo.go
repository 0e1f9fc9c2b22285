package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brightsteps/internal/database"
	"brightsteps/internal/models"
	"brightsteps/internal/progress"
)

// CatalogRepository reads and seeds the static reference data: pillars,
// traits, challenges, trait weights and reward definitions.
type CatalogRepository struct {
	db database.DBTX
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db database.DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const challengeColumns = "SELECT id, pillar_id, title, description, age_range, steps, created_at FROM challenges"

// FetchChallengeCatalog returns the challenges for an age range, or every
// challenge when ageRange is empty.
func (r *CatalogRepository) FetchChallengeCatalog(ctx context.Context, ageRange string) ([]models.Challenge, error) {
	query := challengeColumns
	var args []interface{}
	if ageRange != "" {
		query += " WHERE age_range = ?"
		args = append(args, ageRange)
	}
	query += " ORDER BY pillar_id ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	defer rows.Close()

	var challenges []models.Challenge
	for rows.Next() {
		var c models.Challenge
		if err := rows.Scan(&c.ID, &c.PillarID, &c.Title, &c.Description, &c.AgeRange, &c.Steps, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	return challenges, rows.Err()
}

// GetChallenge retrieves a challenge by ID
func (r *CatalogRepository) GetChallenge(ctx context.Context, challengeID int64) (*models.Challenge, error) {
	c := &models.Challenge{}
	err := r.db.QueryRowContext(ctx, challengeColumns+" WHERE id = ?", challengeID).Scan(
		&c.ID, &c.PillarID, &c.Title, &c.Description, &c.AgeRange, &c.Steps, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, progress.NotFound("get challenge", "challenge %d", challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// ListPillars returns the five pillars in ID order
func (r *CatalogRepository) ListPillars(ctx context.Context) ([]models.Pillar, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM pillars ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pillars: %w", err)
	}
	defer rows.Close()

	var pillars []models.Pillar
	for rows.Next() {
		var p models.Pillar
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan pillar: %w", err)
		}
		pillars = append(pillars, p)
	}
	return pillars, rows.Err()
}

// ListTraits returns the trait taxonomy in ID order
func (r *CatalogRepository) ListTraits(ctx context.Context) ([]models.Trait, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, pillar_id FROM traits ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query traits: %w", err)
	}
	defer rows.Close()

	var traits []models.Trait
	for rows.Next() {
		var t models.Trait
		if err := rows.Scan(&t.ID, &t.Name, &t.PillarID); err != nil {
			return nil, fmt.Errorf("failed to scan trait: %w", err)
		}
		traits = append(traits, t)
	}
	return traits, rows.Err()
}

// FetchTraitWeights returns the trait weights declared for a challenge
func (r *CatalogRepository) FetchTraitWeights(ctx context.Context, challengeID int64) ([]models.ChallengeTraitWeight, error) {
	query := `
		SELECT challenge_id, trait_id, weight
		FROM challenge_trait_weights
		WHERE challenge_id = ?
		ORDER BY trait_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trait weights: %w", err)
	}
	defer rows.Close()

	var weights []models.ChallengeTraitWeight
	for rows.Next() {
		var w models.ChallengeTraitWeight
		if err := rows.Scan(&w.ChallengeID, &w.TraitID, &w.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan trait weight: %w", err)
		}
		weights = append(weights, w)
	}
	return weights, rows.Err()
}

// FetchRewardCatalog returns reward definitions in catalog order
func (r *CatalogRepository) FetchRewardCatalog(ctx context.Context) ([]models.RewardDefinition, error) {
	query := `
		SELECT id, type, criteria_value, pillar_id, icon, title, description
		FROM reward_definitions
		ORDER BY position ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var rewards []models.RewardDefinition
	for rows.Next() {
		var rd models.RewardDefinition
		var pillarID sql.NullInt64
		if err := rows.Scan(&rd.ID, &rd.Type, &rd.CriteriaValue, &pillarID, &rd.Icon, &rd.Title, &rd.Description); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		if pillarID.Valid {
			p := int(pillarID.Int64)
			rd.PillarID = &p
		}
		rewards = append(rewards, rd)
	}
	return rewards, rows.Err()
}

func (r *CatalogRepository) upsert(ctx context.Context, u database.Upsert, args ...interface{}) error {
	_, err := r.db.ExecContext(ctx, r.db.GetDialect().UpsertQuery(u), args...)
	return err
}

// UpsertPillar inserts or renames a pillar
func (r *CatalogRepository) UpsertPillar(ctx context.Context, p models.Pillar) error {
	err := r.upsert(ctx, database.Upsert{
		Table:    "pillars",
		Columns:  []string{"id", "name"},
		Conflict: []string{"id"},
		Update:   []string{"name"},
	}, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert pillar %d: %w", p.ID, err)
	}
	return nil
}

// UpsertTrait inserts or updates a trait
func (r *CatalogRepository) UpsertTrait(ctx context.Context, t models.Trait) error {
	err := r.upsert(ctx, database.Upsert{
		Table:    "traits",
		Columns:  []string{"id", "name", "pillar_id"},
		Conflict: []string{"id"},
		Update:   []string{"name", "pillar_id"},
	}, t.ID, t.Name, t.PillarID)
	if err != nil {
		return fmt.Errorf("failed to upsert trait %d: %w", t.ID, err)
	}
	return nil
}

// UpsertChallenge inserts or updates a challenge
func (r *CatalogRepository) UpsertChallenge(ctx context.Context, c models.Challenge) error {
	err := r.upsert(ctx, database.Upsert{
		Table:    "challenges",
		Columns:  []string{"id", "pillar_id", "title", "description", "age_range", "steps"},
		Conflict: []string{"id"},
		Update:   []string{"pillar_id", "title", "description", "age_range", "steps"},
	}, c.ID, c.PillarID, c.Title, c.Description, c.AgeRange, c.Steps)
	if err != nil {
		return fmt.Errorf("failed to upsert challenge %d: %w", c.ID, err)
	}
	return nil
}

// ReplaceTraitWeights swaps the full weight set of a challenge
func (r *CatalogRepository) ReplaceTraitWeights(ctx context.Context, challengeID int64, weights []models.ChallengeTraitWeight) error {
	for _, w := range weights {
		if err := w.Validate(); err != nil {
			return progress.InvalidInput("replace trait weights", "%v", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM challenge_trait_weights WHERE challenge_id = ?", challengeID); err != nil {
		return fmt.Errorf("failed to clear trait weights for challenge %d: %w", challengeID, err)
	}
	for _, w := range weights {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO challenge_trait_weights (challenge_id, trait_id, weight) VALUES (?, ?, ?)",
			challengeID, w.TraitID, w.Weight)
		if err != nil {
			return fmt.Errorf("failed to insert trait weight %d/%d: %w", challengeID, w.TraitID, err)
		}
	}
	return nil
}

// UpsertReward inserts or updates a reward definition at a catalog position
func (r *CatalogRepository) UpsertReward(ctx context.Context, rd models.RewardDefinition, position int) error {
	var pillarID sql.NullInt64
	if rd.PillarID != nil {
		pillarID = sql.NullInt64{Int64: int64(*rd.PillarID), Valid: true}
	}
	err := r.upsert(ctx, database.Upsert{
		Table:    "reward_definitions",
		Columns:  []string{"id", "type", "criteria_value", "pillar_id", "icon", "title", "description", "position"},
		Conflict: []string{"id"},
		Update:   []string{"type", "criteria_value", "pillar_id", "icon", "title", "description", "position"},
	}, rd.ID, string(rd.Type), rd.CriteriaValue, pillarID, rd.Icon, rd.Title, rd.Description, position)
	if err != nil {
		return fmt.Errorf("failed to upsert reward %d: %w", rd.ID, err)
	}
	return nil
}
