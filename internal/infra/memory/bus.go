package memory

import (
	"context"
	"sync"

	"classroom-quiz-service/internal/domain"
)

const subscriberBuffer = 8

// Bus is an in-process implementation of app.Bus keyed by room id.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[chan domain.Event]struct{})}
}

// Publish never blocks: a full subscriber loses its oldest queued event.
func (b *Bus) Publish(_ context.Context, event domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[event.RoomID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, roomID string) (<-chan domain.Event, func(), error) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[chan domain.Event]struct{})
	}
	b.subs[roomID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[roomID][ch]; ok {
			delete(b.subs[roomID], ch)
			close(ch)
			if len(b.subs[roomID]) == 0 {
				delete(b.subs, roomID)
			}
		}
	}
	return ch, cancel, nil
}

// Subscribers reports the number of live subscriptions for roomID.
func (b *Bus) Subscribers(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[roomID])
}
