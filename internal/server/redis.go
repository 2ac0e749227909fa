package server

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "linkup:conv:"

// RedisBridge fans announced messages out across server instances via
// Redis pub/sub: each instance publishes announces and rebroadcasts
// everything it receives to its local subscribers. The announcer gets
// its own echo back, which clients reconcile by correlation token.
type RedisBridge struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewRedisBridge connects to Redis at addr.
func NewRedisBridge(addr string, log *zap.Logger) *RedisBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		log: log,
	}
}

// Publish sends a delivery frame to the conversation's channel.
func (b *RedisBridge) Publish(ctx context.Context, conversationID string, frame []byte) error {
	return b.rdb.Publish(ctx, channelPrefix+conversationID, frame).Err()
}

// Run subscribes to every conversation channel and rebroadcasts
// incoming frames locally until ctx is done.
func (b *RedisBridge) Run(ctx context.Context, hub *Hub) {
	pubsub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conversationID := strings.TrimPrefix(msg.Channel, channelPrefix)
			hub.Broadcast(conversationID, []byte(msg.Payload), nil)
		}
	}
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	return b.rdb.Close()
}
