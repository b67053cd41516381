// Package autosave periodically saves the workspace to disk while the
// headless or interactive shell is running. Stdio agent mode does not use it;
// there every mutating call persists eagerly.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// DefaultSchedule is the autosave cadence when none is configured.
const DefaultSchedule = "@every 2m"

// Saver is the interface the scheduler drives. Satisfied by the workspace.
type Saver interface {
	Save() error
}

// Scheduler runs Save on a cron schedule until its context is cancelled.
type Scheduler struct {
	schedule cron.Schedule
	saver    Saver
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New parses the cron spec (standard five-field syntax or @every durations)
// and builds a scheduler.
func New(spec string, saver Saver, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid autosave schedule %q", spec).WithCause(err)
	}
	return &Scheduler{schedule: schedule, saver: saver, logger: logger}, nil
}

// Start launches the background loop. Calling Start twice is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return schema.NewError(schema.ErrCodeInvalidParams, "autosave already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for it to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := s.saver.Save(); err != nil {
			s.logger.Error("autosave failed", "error", err)
		}
	}
}
