package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"teamboard/microservices/collab-service/logging"
)

// Broadcaster pushes events to live subscribers of a named channel. Delivery
// is fire-and-forget: the persisted record, not the push, is the durable
// trace, so implementations swallow transport failures after logging them.
type Broadcaster interface {
	Emit(channel, event string, payload interface{})
}

type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// RedisBroadcaster publishes event envelopes over Redis pub/sub. The gateway
// holding the client connections subscribes to the channels its clients have
// joined and relays the envelopes.
type RedisBroadcaster struct {
	rdb *redis.Client
}

func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb}
}

func (b *RedisBroadcaster) Emit(channel, event string, payload interface{}) {
	body, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		logging.Logger.Errorf("Event ID: BROADCAST_MARSHAL_FAILED, Description: Failed to marshal %s for channel %s: %v", event, channel, err)
		return
	}

	if err := b.rdb.Publish(context.Background(), channel, body).Err(); err != nil {
		logging.Logger.Warnf("Event ID: BROADCAST_PUBLISH_FAILED, Description: Failed to publish %s to channel %s: %v", event, channel, err)
	}
}
