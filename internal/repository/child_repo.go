package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brightsteps/internal/database"
	"brightsteps/internal/models"
	"brightsteps/internal/progress"
)

// ChildRepository handles database operations for child profiles
type ChildRepository struct {
	db database.DBTX
}

// NewChildRepository creates a new child repository
func NewChildRepository(db database.DBTX) *ChildRepository {
	return &ChildRepository{db: db}
}

// CreateChild creates a new child profile
func (r *ChildRepository) CreateChild(ctx context.Context, name, ageRange, parentEmail string) (*models.Child, error) {
	now := time.Now().UTC()
	query := "INSERT INTO children (name, age_range, parent_email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	childID, err := r.db.ExecReturningID(ctx, query, name, ageRange, parentEmail, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}

	return &models.Child{
		ID:          childID,
		Name:        name,
		AgeRange:    ageRange,
		ParentEmail: parentEmail,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetChildByID retrieves a child by ID
func (r *ChildRepository) GetChildByID(ctx context.Context, childID int64) (*models.Child, error) {
	query := "SELECT id, name, age_range, parent_email, created_at, updated_at FROM children WHERE id = ?"
	child := &models.Child{}
	err := r.db.QueryRowContext(ctx, query, childID).Scan(
		&child.ID,
		&child.Name,
		&child.AgeRange,
		&child.ParentEmail,
		&child.CreatedAt,
		&child.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, progress.NotFound("get child", "child %d", childID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}

	return child, nil
}

// ListChildren retrieves every child profile
func (r *ChildRepository) ListChildren(ctx context.Context) ([]models.Child, error) {
	query := `
		SELECT id, name, age_range, parent_email, created_at, updated_at
		FROM children
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		var child models.Child
		if err := rows.Scan(
			&child.ID,
			&child.Name,
			&child.AgeRange,
			&child.ParentEmail,
			&child.CreatedAt,
			&child.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, child)
	}

	return children, rows.Err()
}

// RestoreChild inserts a child with a fixed ID; used when importing a backup
func (r *ChildRepository) RestoreChild(ctx context.Context, child models.Child) error {
	query := r.db.GetDialect().UpsertQuery(database.Upsert{
		Table:    "children",
		Columns:  []string{"id", "name", "age_range", "parent_email", "created_at", "updated_at"},
		Conflict: []string{"id"},
		Update:   []string{"name", "age_range", "parent_email", "updated_at"},
	})
	_, err := r.db.ExecContext(ctx, query, child.ID, child.Name, child.AgeRange, child.ParentEmail, child.CreatedAt.UTC(), child.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to restore child %d: %w", child.ID, err)
	}
	return nil
}
