// Command admin runs maintenance tasks against the BrightSteps database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "BrightSteps database maintenance",
	Long: `admin migrates and seeds the BrightSteps database, prints a child's
progress, and exports or imports progress backups.

Connection settings come from the same environment variables as the server
(DATABASE_TYPE, DB_PATH, DATABASE_URL, MIGRATIONS_PATH, CATALOG_PATH).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, summaryCmd, exportCmd, importCmd, statsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
