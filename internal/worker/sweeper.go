package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Reconciler completes rooms whose participants have all finished.
type Reconciler interface {
	ReconcileActiveRooms(ctx context.Context) (int, error)
}

// Sweeper periodically re-evaluates active rooms. It backs up the completion
// check done inline after each submission, which is lost if the process dies
// between scoring the last answer and completing the room.
type Sweeper struct {
	scheduler gocron.Scheduler
	rooms     Reconciler
	interval  time.Duration
	log       *slog.Logger
}

func NewSweeper(rooms Reconciler, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{scheduler: scheduler, rooms: rooms, interval: interval, log: logger}, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.sweep(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.scheduler.Start()
	s.log.Info("completion sweeper started", "interval", s.interval)

	<-ctx.Done()
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	completed, err := s.rooms.ReconcileActiveRooms(ctx)
	if err != nil {
		s.log.Warn("completion sweep failed", "error", err)
		return
	}
	if completed > 0 {
		s.log.Info("completion sweep closed rooms", "completed", completed)
	}
}
