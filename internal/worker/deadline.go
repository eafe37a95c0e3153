package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type deadlineChecker interface {
	CheckDeadlines(ctx context.Context) (int, error)
}

// DeadlineWorker runs the deadline check once at startup and then on every tick.
type DeadlineWorker struct {
	checker  deadlineChecker
	interval time.Duration
	log      zerolog.Logger
}

func NewDeadlineWorker(checker deadlineChecker, interval time.Duration, log zerolog.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		checker:  checker,
		interval: interval,
		log:      log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (w *DeadlineWorker) Run(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("deadline worker started")
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("deadline worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *DeadlineWorker) tick(ctx context.Context) {
	sent, err := w.checker.CheckDeadlines(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("deadline check failed")
		}
		return
	}
	w.log.Debug().Int("sent", sent).Msg("deadline check done")
}
