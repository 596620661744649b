package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"keyshop/internal/dto"
)

// Hub fans live events out to per-user subscribers over redis pub/sub. A
// disconnected subscriber simply misses the push; the persisted notification
// row is the source of truth it catches up from.
type Hub struct {
	rdb *redis.Client
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{rdb: rdb}
}

func channelFor(userID string) string {
	return "keyshop:notify:" + userID
}

func (h *Hub) Publish(ctx context.Context, userID string, event *dto.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if err := h.rdb.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish stream event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of events for the user and a cancel func. The
// internal send is non-blocking: a slow consumer drops events rather than
// stalling the pump.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan *dto.StreamEvent, func()) {
	sub := h.rdb.Subscribe(ctx, channelFor(userID))
	out := make(chan *dto.StreamEvent, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event dto.StreamEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Println("drop malformed stream event:", err)
				continue
			}
			select {
			case out <- &event:
			default:
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel
}
