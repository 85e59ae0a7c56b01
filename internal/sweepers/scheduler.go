package sweepers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

// ShopLister lists shops due for a scan
type ShopLister interface {
	ActiveShops(ctx context.Context, scannedBefore time.Time) ([]database.Shop, error)
}

// Scheduler enqueues tasks
type Scheduler interface {
	ScheduleTask(ctx context.Context, input taskqueue.ScheduleTaskInput) taskqueue.ScheduleTaskResult
}

// ScanSchedulerConfig holds scan scheduling settings
type ScanSchedulerConfig struct {
	// ScanInterval is how often each active shop is scanned.
	ScanInterval time.Duration
	// Tick is how often the scheduler looks for due shops.
	Tick time.Duration
	// CleanupInterval is how often a retention task is enqueued. Zero disables it.
	CleanupInterval time.Duration
}

// ScanScheduler enqueues a scan task for every active shop whose last scan
// is older than the scan interval, plus a periodic cleanup task.
type ScanScheduler struct {
	shops       ShopLister
	queue       Scheduler
	cfg         ScanSchedulerConfig
	logger      *zerolog.Logger
	clock       func() time.Time
	lastCleanup time.Time
	loop        *loop
}

// NewScanScheduler creates a scan scheduler
func NewScanScheduler(shops ShopLister, queue Scheduler, cfg ScanSchedulerConfig, logger *zerolog.Logger) *ScanScheduler {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 6 * time.Hour
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	return &ScanScheduler{
		shops:  shops,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
		loop:   newLoop("scan_scheduler", cfg.Tick, logger),
	}
}

// Start runs a pass immediately and then on every tick. It blocks until stopped.
func (s *ScanScheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("scan_interval", s.cfg.ScanInterval).
		Dur("tick", s.cfg.Tick).
		Msg("Starting scan scheduler")

	s.loop.run(ctx, func(ctx context.Context) error {
		_, err := s.SchedulePass(ctx)
		return err
	})
}

// Stop signals the scheduler to stop
func (s *ScanScheduler) Stop() {
	s.loop.stop()
}

// SchedulePass enqueues scans for due shops and returns how many were
// enqueued. Shops that already have a pending scan are skipped.
func (s *ScanScheduler) SchedulePass(ctx context.Context) (int, error) {
	now := s.clock()
	shops, err := s.shops.ActiveShops(ctx, now.Add(-s.cfg.ScanInterval))
	if err != nil {
		return 0, fmt.Errorf("failed to list due shops: %w", err)
	}

	scheduled := 0
	for _, shop := range shops {
		result := s.queue.ScheduleTask(ctx, taskqueue.ScheduleTaskInput{
			TaskType: taskqueue.TaskTypeScanShop,
			Payload:  taskqueue.ScanShopPayload{Shop: shop.Domain},
			Dedupe:   true,
		})
		if result.Err != nil {
			s.logger.Error().Err(result.Err).Str("shop", shop.Domain).Msg("Failed to schedule scan")
			continue
		}
		if !result.Duplicate {
			scheduled++
		}
	}

	if s.cfg.CleanupInterval > 0 && now.Sub(s.lastCleanup) >= s.cfg.CleanupInterval {
		result := s.queue.ScheduleTask(ctx, taskqueue.ScheduleTaskInput{
			TaskType: taskqueue.TaskTypeCleanup,
			Payload:  taskqueue.CleanupPayload{},
			Priority: -1,
			Dedupe:   true,
		})
		if result.Err != nil {
			s.logger.Error().Err(result.Err).Msg("Failed to schedule cleanup")
		} else {
			s.lastCleanup = now
		}
	}

	if scheduled > 0 {
		s.logger.Info().Int("scheduled", scheduled).Int("due", len(shops)).Msg("Scheduled shop scans")
	}
	return scheduled, nil
}
