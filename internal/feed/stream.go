package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
)

// Channel is the Redis pub/sub channel carrying listing change events.
const Channel = "EVENT_LISTING_CHANGED"

// RedisStream adapts a Redis pub/sub subscription to the Stream interface.
// Redis pub/sub is at-most-once with no replay, which is exactly the contract
// the Subscriber is written against.
type RedisStream struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedisStream returns a Stream backed by the given Redis client.
func NewRedisStream(rdb *redis.Client, logger *slog.Logger) *RedisStream {
	return &RedisStream{rdb: rdb, logger: logger}
}

// Subscribe opens a pub/sub subscription on the listings channel. The
// returned channel closes on any receive error so the subscriber resyncs
// instead of assuming continuity across the gap. The release function closes
// the subscription immediately.
func (r *RedisStream) Subscribe(ctx context.Context) (<-chan model.ChangeEvent, func(), error) {
	ps := r.rdb.Subscribe(ctx, Channel)

	// Force the SUBSCRIBE round-trip so a dead Redis fails here, not on the
	// first receive.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan model.ChangeEvent)
	go func() {
		defer close(out)
		for {
			msg, err := ps.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("listing change channel receive failed", "err", err)
				}
				return
			}
			var ev model.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("dropping malformed change event", "err", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	release := func() { _ = ps.Close() }
	return out, release, nil
}
