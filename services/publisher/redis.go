package publisher

import (
	"context"
	"time"

	"sjsage522/dealbridge/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher on a single Redis stream
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	stream          string
	streamMaxLength int64
}

// Ensure RedisPublisher implements Publisher
var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, stream string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return newRedisPublisher(ctx, client, stream, streamMaxLength)
}

func newRedisPublisher(ctx context.Context, client *redis.Client, stream string, streamMaxLength int) *RedisPublisher {
	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		stream:          stream,
		streamMaxLength: int64(streamMaxLength),
	}
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping() error {
	if err := p.client.Ping(p.ctx).Err(); err != nil {
		return errors.NewPublisher("redis", "ping failed", err)
	}
	return nil
}

// Publish appends the message to the stream as a field named key.
// The stream is capped at its maximum length as part of the append.
func (p *RedisPublisher) Publish(key string, message []byte) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			key: string(message),
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = p.streamMaxLength
	}

	if err := p.client.XAdd(p.ctx, args).Err(); err != nil {
		return errors.NewPublisher("redis", "failed to add to "+p.stream, err)
	}
	return nil
}

// trimTimeout bounds TrimStreams, which usually runs during shutdown
const trimTimeout = 5 * time.Second

// TrimStreams trims the stream to exactly the configured maximum length.
// It still runs after the publisher's context has been cancelled.
func (p *RedisPublisher) TrimStreams() error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), trimTimeout)
	defer cancel()
	if err := p.client.XTrimMaxLen(ctx, p.stream, p.streamMaxLength).Err(); err != nil {
		return errors.NewPublisher("redis", "failed to trim "+p.stream, err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
