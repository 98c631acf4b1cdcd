package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyEvents = "media:events"

// envelope carries the routing user ID across the wire, which Event itself
// never serializes.
type envelope struct {
	UserID string `json:"user_id"`
	Event  *Event `json:"event"`
}

// RedisNotifier fans events out through Redis Pub/Sub so that every server
// instance delivers them to its own connected clients.
type RedisNotifier struct {
	client *redis.Client
	local  Notifier
}

// NewRedisNotifier creates a notifier that publishes to Redis and forwards
// received events to local. local is typically the in-process Hub.
func NewRedisNotifier(client *redis.Client, local Notifier) *RedisNotifier {
	return &RedisNotifier{client: client, local: local}
}

// Publish implements Notifier. Publish failures are swallowed; event
// delivery carries no guarantee.
func (n *RedisNotifier) Publish(ctx context.Context, ev *Event) {
	data, err := json.Marshal(envelope{UserID: ev.UserID, Event: ev})
	if err != nil {
		return
	}
	channel := fmt.Sprintf("%s:%s", keyEvents, ev.UserID)
	n.client.Publish(ctx, channel, data)
}

// Run subscribes to the event channels and forwards each received event to
// the local notifier. It returns when ctx is cancelled.
func (n *RedisNotifier) Run(ctx context.Context) error {
	pubsub := n.client.PSubscribe(ctx, keyEvents+":*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Event == nil {
				continue
			}
			env.Event.UserID = env.UserID
			n.local.Publish(ctx, env.Event)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
