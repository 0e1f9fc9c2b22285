package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"brightsteps/internal/catalog"
	"brightsteps/internal/config"
	"brightsteps/internal/database"
	"brightsteps/internal/progress"
	"brightsteps/internal/repository"
	"brightsteps/internal/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := db.RunMigrations(cmd.Context(), cfg.MigrationsPath)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("Database is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Printf("Applied %s\n", name)
		}
		return nil
	},
}

var seedCatalogPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the challenge catalog into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		path := seedCatalogPath
		if path == "" {
			path = e.cfg.CatalogPath
		}
		c, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}
		stats, err := catalog.Seed(cmd.Context(), e.db, c)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d pillars, %d traits, %d challenges, %d trait weights, %d rewards\n",
			stats.Pillars, stats.Traits, stats.Challenges, stats.Weights, stats.Rewards)
		return nil
	},
}

var summaryAsOf string

var summaryCmd = &cobra.Command{
	Use:   "summary <child-id>",
	Short: "Print a child's dashboard as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		childID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid child id %q", args[0])
		}
		var asOf time.Time
		if summaryAsOf != "" {
			if asOf, err = time.Parse(time.RFC3339, summaryAsOf); err != nil {
				return fmt.Errorf("invalid --as-of: %w", err)
			}
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		dashboard, err := newProgressService(e).ComputeDashboard(cmd.Context(), childID, asOf)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dashboard)
	},
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export child progress to a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		outputPath := exportOutput
		if outputPath == "" {
			outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
		}
		if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		backup, err := service.NewBackupService(e.db, e.log).ExportToFile(cmd.Context(), outputPath)
		if err != nil {
			return err
		}
		info, err := os.Stat(outputPath)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d children and %d completions to %s (%.2f MB)\n",
			len(backup.Children), len(backup.Completions), outputPath, float64(info.Size())/1024/1024)
		return nil
	},
}

var (
	importInput string
	importClear bool
	importYes   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore child progress from a JSON backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(importInput); err != nil {
			return fmt.Errorf("input file %s: %w", importInput, err)
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		backups := service.NewBackupService(e.db, e.log)

		if importClear {
			if !importYes && !confirm(cmd, "WARNING: This will delete all existing progress data. Type 'yes' to confirm: ") {
				fmt.Println("Import cancelled")
				return nil
			}
			if err := backups.Clear(cmd.Context()); err != nil {
				return err
			}
		}

		backup, err := backups.ImportFromFile(cmd.Context(), importInput)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d children and %d completions from export %s\n",
			len(backup.Children), len(backup.Completions), backup.ExportID)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count rows in the progress tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := service.NewBackupService(e.db, e.log).Stats(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedCatalogPath, "catalog", "", "catalog YAML file (default: $CATALOG_PATH)")
	summaryCmd.Flags().StringVar(&summaryAsOf, "as-of", "", "evaluate at this RFC3339 time instead of now")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "input file path")
	importCmd.Flags().BoolVar(&importClear, "clear", false, "delete existing progress data before import (destructive)")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "skip the --clear confirmation prompt")
	_ = importCmd.MarkFlagRequired("input")
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func newProgressService(e *env) *service.ProgressService {
	opts := progress.Options{
		Location:    e.cfg.Location,
		WeekStart:   e.cfg.WeekStart,
		TrendWindow: e.cfg.TrendWindow,
	}
	return service.NewProgressService(
		repository.NewChildRepository(e.db),
		repository.NewCompletionRepository(e.db),
		repository.NewCatalogRepository(e.db),
		repository.NewTraitRepository(e.db),
		nil,
		opts,
		e.log,
		nil,
	)
}
