package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"classroom-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const subscriberBuffer = 16

// Bus fans room events out across instances over Redis pub/sub, one channel
// per room. Pub/sub is fire-and-forget; watchers re-poll to cover gaps.
type Bus struct {
	client *redis.Client
	log    *slog.Logger
}

func NewBus(client *redis.Client, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{client: client, log: logger}
}

func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.Publish(ctx, eventsChannel(event.RoomID), raw).Err()
}

// Subscribe blocks until Redis confirms the subscription so that events
// published after it returns are not missed.
func (b *Bus) Subscribe(ctx context.Context, roomID string) (<-chan domain.Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, eventsChannel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", roomID, err)
	}

	out := make(chan domain.Event, subscriberBuffer)
	messages := pubsub.Channel()
	go func() {
		defer close(out)
		for msg := range messages {
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn("dropping malformed event", "room_id", roomID, "error", err)
				continue
			}
			select {
			case out <- event:
			default:
				// watcher is behind; it coalesces events anyway
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = pubsub.Close() })
	}
	return out, cancel, nil
}

func eventsChannel(roomID string) string {
	return "quiz:room:" + roomID + ":events"
}
