package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"brightsteps/internal/database"
	"brightsteps/internal/logger"
	"brightsteps/internal/models"
	"brightsteps/internal/repository"
)

// BackupVersion is the current backup document format
const BackupVersion = "1.0"

// BackupData is the complete progress backup document. The catalog is not
// included; it is reseeded from YAML.
type BackupData struct {
	Version      string                           `json:"version"`
	ExportID     string                           `json:"export_id"`
	ExportedAt   time.Time                        `json:"exported_at"`
	DatabaseType string                           `json:"database_type"`
	Children     []ChildBackup                    `json:"children"`
	Completions  []CompletionBackup               `json:"completions"`
	TraitScores  []TraitScoreBackup               `json:"trait_scores"`
	Applications []repository.XPApplicationRecord `json:"xp_applications"`
	Awards       []AwardBackup                    `json:"xp_awards"`
}

// ChildBackup represents a child record for backup
type ChildBackup struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AgeRange    string    `json:"age_range"`
	ParentEmail string    `json:"parent_email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CompletionBackup represents a challenge completion for backup
type CompletionBackup struct {
	ChildID     int64     `json:"child_id"`
	ChallengeID int64     `json:"challenge_id"`
	CompletedAt time.Time `json:"completed_at"`
	Feeling     *int      `json:"feeling"`
}

// TraitScoreBackup represents a cumulative trait score for backup
type TraitScoreBackup struct {
	ChildID int64   `json:"child_id"`
	TraitID int64   `json:"trait_id"`
	Score   float64 `json:"score"`
}

// AwardBackup represents an XP ledger row for backup
type AwardBackup struct {
	ChildID     int64     `json:"child_id"`
	EventKey    string    `json:"event_key"`
	ChallengeID int64     `json:"challenge_id"`
	TraitID     int64     `json:"trait_id"`
	Delta       int       `json:"delta"`
	AwardedAt   time.Time `json:"awarded_at"`
}

// BackupService handles progress backup and restore operations
type BackupService struct {
	db  *database.DB
	log *logger.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log *logger.Logger) *BackupService {
	return &BackupService{db: db, log: log}
}

// ExportToFile writes a backup document to a file
func (s *BackupService) ExportToFile(ctx context.Context, outputPath string) (*BackupData, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.Export(ctx, file)
	if err != nil {
		return nil, err
	}
	s.log.Info("Database exported", "path", outputPath)
	return backup, nil
}

// Export collects every child's progress and encodes it as JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportID:     uuid.NewString(),
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
	}

	children, err := repository.NewChildRepository(s.db).ListChildren(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export children: %w", err)
	}
	for _, c := range children {
		backup.Children = append(backup.Children, ChildBackup{
			ID: c.ID, Name: c.Name, AgeRange: c.AgeRange, ParentEmail: c.ParentEmail,
			CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
		})
	}

	completions, err := repository.NewCompletionRepository(s.db).ListAllCompletions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export completions: %w", err)
	}
	for _, e := range completions {
		backup.Completions = append(backup.Completions, CompletionBackup{
			ChildID: e.ChildID, ChallengeID: e.ChallengeID, CompletedAt: e.CompletedAt, Feeling: e.Feeling,
		})
	}

	traitRepo := repository.NewTraitRepository(s.db)
	scores, err := traitRepo.ListAllTraitScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export trait scores: %w", err)
	}
	for _, sc := range scores {
		backup.TraitScores = append(backup.TraitScores, TraitScoreBackup{ChildID: sc.ChildID, TraitID: sc.TraitID, Score: sc.Score})
	}

	if backup.Applications, err = traitRepo.ListAllApplications(ctx); err != nil {
		return nil, fmt.Errorf("failed to export xp applications: %w", err)
	}

	awards, err := traitRepo.ListAllAwards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export xp awards: %w", err)
	}
	for _, a := range awards {
		backup.Awards = append(backup.Awards, AwardBackup{
			ChildID: a.ChildID, EventKey: a.EventKey, ChallengeID: a.ChallengeID,
			TraitID: a.TraitID, Delta: a.Delta, AwardedAt: a.AwardedAt,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.log.Info("Export complete", "export_id", backup.ExportID,
		"children", len(backup.Children), "completions", len(backup.Completions),
		"trait_scores", len(backup.TraitScores), "xp_awards", len(backup.Awards))
	return backup, nil
}

// ImportFromFile restores a backup file
func (s *BackupService) ImportFromFile(ctx context.Context, inputPath string) (*BackupData, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.Import(ctx, file)
}

// Import restores a backup in one transaction. Rows that already exist are
// overwritten with the backup's values, so importing twice is harmless.
// The catalog must be seeded first.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*BackupData, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	s.log.Info("Importing backup", "export_id", backup.ExportID, "exported_at", backup.ExportedAt)

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := importChildren(ctx, tx, backup.Children); err != nil {
			return fmt.Errorf("failed to import children: %w", err)
		}
		if err := importCompletions(ctx, tx, backup.Completions); err != nil {
			return fmt.Errorf("failed to import completions: %w", err)
		}
		if err := importTraitScores(ctx, tx, backup.TraitScores); err != nil {
			return fmt.Errorf("failed to import trait scores: %w", err)
		}
		if err := importLedger(ctx, tx, backup.Applications, backup.Awards); err != nil {
			return fmt.Errorf("failed to import xp ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Import complete", "children", len(backup.Children), "completions", len(backup.Completions))
	return &backup, nil
}

func importChildren(ctx context.Context, tx *database.Tx, children []ChildBackup) error {
	repo := repository.NewChildRepository(tx)
	for _, c := range children {
		err := repo.RestoreChild(ctx, models.Child{
			ID: c.ID, Name: c.Name, AgeRange: c.AgeRange, ParentEmail: c.ParentEmail,
			CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
		})
		if err != nil {
			return err
		}
	}

	// explicit IDs can leave the id sequence behind
	if query := tx.GetDialect().SyncSequenceQuery("children", "id"); query != "" && len(children) > 0 {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to sync children id sequence: %w", err)
		}
	}
	return nil
}

func importCompletions(ctx context.Context, tx *database.Tx, completions []CompletionBackup) error {
	repo := repository.NewCompletionRepository(tx)
	for _, c := range completions {
		err := repo.UpsertCompletion(ctx, models.CompletionEvent{
			ChildID: c.ChildID, ChallengeID: c.ChallengeID, CompletedAt: c.CompletedAt, Feeling: c.Feeling,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func importTraitScores(ctx context.Context, tx *database.Tx, scores []TraitScoreBackup) error {
	query := tx.GetDialect().UpsertQuery(database.Upsert{
		Table:    "trait_scores",
		Columns:  []string{"child_id", "trait_id", "score"},
		Conflict: []string{"child_id", "trait_id"},
		Update:   []string{"score"},
	})
	for _, sc := range scores {
		if sc.Score < 0 {
			return fmt.Errorf("negative score %v for child %d trait %d", sc.Score, sc.ChildID, sc.TraitID)
		}
		if _, err := tx.ExecContext(ctx, query, sc.ChildID, sc.TraitID, sc.Score); err != nil {
			return err
		}
	}
	return nil
}

func importLedger(ctx context.Context, tx *database.Tx, apps []repository.XPApplicationRecord, awards []AwardBackup) error {
	dialect := tx.GetDialect()
	appQuery := dialect.UpsertQuery(database.Upsert{
		Table:    "xp_applications",
		Columns:  []string{"child_id", "event_key", "challenge_id", "feeling", "applied_at"},
		Conflict: []string{"child_id", "event_key"},
	})
	for _, a := range apps {
		if _, err := tx.ExecContext(ctx, appQuery, a.ChildID, a.EventKey, a.ChallengeID, a.Feeling, a.AppliedAt.UTC()); err != nil {
			return err
		}
	}

	awardQuery := dialect.UpsertQuery(database.Upsert{
		Table:    "xp_awards",
		Columns:  []string{"child_id", "event_key", "challenge_id", "trait_id", "delta", "awarded_at"},
		Conflict: []string{"child_id", "event_key", "trait_id"},
	})
	for _, a := range awards {
		if _, err := tx.ExecContext(ctx, awardQuery, a.ChildID, a.EventKey, a.ChallengeID, a.TraitID, a.Delta, a.AwardedAt.UTC()); err != nil {
			return err
		}
	}
	return nil
}

// Stats counts rows in the progress tables
func (s *BackupService) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range progressTables {
		var n int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

// progressTables lists the child data tables, dependents first
var progressTables = []string{"xp_awards", "xp_applications", "trait_scores", "challenge_completions", "children"}

// Clear deletes all child progress data in one transaction. The catalog stays.
func (s *BackupService) Clear(ctx context.Context) error {
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range progressTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Warn("Progress data cleared", "tables", progressTables)
	return nil
}
