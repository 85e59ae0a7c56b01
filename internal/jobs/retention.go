// Package jobs holds periodic maintenance jobs.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ObservationPruner deletes old price observations
type ObservationPruner interface {
	PruneObservations(ctx context.Context, before time.Time) (int64, error)
}

// TaskCleaner deletes finished queue tasks
type TaskCleaner interface {
	CleanupOldTasks(ctx context.Context, daysToKeep int) (int, error)
}

// RetentionConfig configures retention policies for cleanup jobs
type RetentionConfig struct {
	ObservationDays int
	TaskDays        int
	// MinHistory is the shortest history the rules need. Observations are
	// never pruned inside it even if ObservationDays is smaller.
	MinHistory time.Duration
}

// DefaultRetentionConfig returns the default retention policy
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		ObservationDays: 400,
		TaskDays:        7,
	}
}

// RetentionResult reports what a retention run removed
type RetentionResult struct {
	ObservationsDeleted int64     `json:"observationsDeleted"`
	TasksDeleted        int       `json:"tasksDeleted"`
	Cutoff              time.Time `json:"cutoff"`
}

// Retention applies the retention policy
type Retention struct {
	observations ObservationPruner
	tasks        TaskCleaner
	cfg          RetentionConfig
	logger       *zerolog.Logger
	clock        func() time.Time
}

// NewRetention creates a retention job. tasks may be nil.
func NewRetention(observations ObservationPruner, tasks TaskCleaner, cfg RetentionConfig, logger *zerolog.Logger) *Retention {
	defaults := DefaultRetentionConfig()
	if cfg.ObservationDays <= 0 {
		cfg.ObservationDays = defaults.ObservationDays
	}
	if cfg.TaskDays <= 0 {
		cfg.TaskDays = defaults.TaskDays
	}
	return &Retention{
		observations: observations,
		tasks:        tasks,
		cfg:          cfg,
		logger:       logger,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// Cutoff returns the time before which observations may be pruned
func (r *Retention) Cutoff() time.Time {
	keep := time.Duration(r.cfg.ObservationDays) * 24 * time.Hour
	if r.cfg.MinHistory > keep {
		keep = r.cfg.MinHistory
	}
	return r.clock().Add(-keep)
}

// Run prunes observations outside the retention window and old finished tasks.
// Reference checkpoints survive pruning.
func (r *Retention) Run(ctx context.Context) (*RetentionResult, error) {
	result := &RetentionResult{Cutoff: r.Cutoff()}

	deleted, err := r.observations.PruneObservations(ctx, result.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune observations: %w", err)
	}
	result.ObservationsDeleted = deleted

	if r.tasks != nil {
		n, err := r.tasks.CleanupOldTasks(ctx, r.cfg.TaskDays)
		if err != nil {
			return nil, fmt.Errorf("cleanup old tasks: %w", err)
		}
		result.TasksDeleted = n
	}

	r.logger.Info().
		Int64("observations_deleted", result.ObservationsDeleted).
		Int("tasks_deleted", result.TasksDeleted).
		Time("cutoff", result.Cutoff).
		Msg("Retention completed")
	return result, nil
}
