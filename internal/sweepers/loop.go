package sweepers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// loop calls pass immediately and then every interval until the context is
// cancelled or stop is called.
type loop struct {
	name     string
	interval time.Duration
	logger   *zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func newLoop(name string, interval time.Duration, logger *zerolog.Logger) *loop {
	return &loop{name: name, interval: interval, logger: logger, stopChan: make(chan struct{})}
}

func (l *loop) run(ctx context.Context, pass func(context.Context) error) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := pass(ctx); err != nil {
			l.logger.Error().Err(err).Str("sweeper", l.name).Msg("Sweeper pass failed")
		}

		select {
		case <-ctx.Done():
			l.logger.Info().Str("sweeper", l.name).Msg("Sweeper stopping (context cancelled)")
			return
		case <-l.stopChan:
			l.logger.Info().Str("sweeper", l.name).Msg("Sweeper stopping (stop signal)")
			return
		case <-ticker.C:
		}
	}
}

func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}
