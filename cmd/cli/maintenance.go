package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prisvakt/compliance-service/config"
	"github.com/prisvakt/compliance-service/internal/database"
)

var recoverStaleAfter time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune old observations and finished tasks",
	Long: `Apply the retention policy: delete observations older than the retention
window (never inside the history the rules need, never reference checkpoints or
a variant's latest observation) and finished tasks older than the task window.

Tasks stuck in processing for longer than --stale-after are requeued first.`,
	Args:        cobra.NoArgs,
	Annotations: serviceAnnotations(),
	RunE:        runCleanup,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().DurationVar(&recoverStaleAfter, "stale-after", 30*time.Minute, "Requeue tasks processing for longer than this")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg == nil {
		return fmt.Errorf("config required for migrate command but not loaded")
	}
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	ctx := cmd.Context()
	if err := database.Connect(ctx, cfg.Database.PoolConfig(dbURL, cfg.Telemetry.Enabled)); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx, database.Pool()); err != nil {
		return err
	}
	logger.Info().Msg("Schema applied")
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	recovered, failed, err := svc.Queue.RecoverOrphanedTasks(ctx, recoverStaleAfter)
	if err != nil {
		return fmt.Errorf("failed to recover orphaned tasks: %w", err)
	}

	result, err := svc.Retention.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Observations deleted: %d (cutoff %s)\n", result.ObservationsDeleted, result.Cutoff.Format(time.RFC3339))
	fmt.Printf("Tasks deleted:        %d\n", result.TasksDeleted)
	fmt.Printf("Tasks recovered:      %d (%d failed permanently)\n", recovered, failed)
	return nil
}
