package app

import (
	"context"
	"time"

	"classroom-quiz-service/internal/domain"
)

// Watch streams leaderboard snapshots for a room. Bus events are the primary
// trigger; when none arrives within the poll interval the snapshot is
// re-fetched anyway, which masks dropped deliveries. Every snapshot is read
// from the store, never reconstructed from event payloads. The channel closes
// after the first snapshot of a completed room or when ctx is done.
func (s *SessionService) Watch(ctx context.Context, roomID string) (<-chan domain.Leaderboard, error) {
	if _, err := s.getRoom(ctx, roomID); err != nil {
		return nil, err
	}

	events, cancel, err := s.bus.Subscribe(ctx, roomID)
	if err != nil {
		s.log.Warn("subscribe failed, falling back to polling", "room_id", roomID, "error", err)
		events, cancel = nil, func() {}
	}

	out := make(chan domain.Leaderboard, 1)
	go func() {
		defer close(out)
		defer cancel()

		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		// emit reports whether watching should continue.
		emit := func() bool {
			lb, err := s.Leaderboard(ctx, roomID)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				s.log.Warn("leaderboard refresh failed", "room_id", roomID, "error", err)
				return true
			}
			select {
			case out <- lb:
			case <-ctx.Done():
				return false
			}
			return lb.Status != domain.StatusCompleted
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				drain(events)
				ticker.Reset(s.poll)
				if !emit() {
					return
				}
			case <-ticker.C:
				if !emit() {
					return
				}
			}
		}
	}()
	return out, nil
}

// drain discards queued events; one recomputation covers all of them.
func drain(events <-chan domain.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
