package feed

import (
	"context"

	"triage-backend/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRelay shares change events between instances over a Redis pub/sub
// channel.
type RedisRelay struct {
	client  *goredis.Client
	channel string
	log     zerolog.Logger
}

func NewRedisRelay(client *goredis.Client, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, log: logger.Component("feed-redis")}
}

func (r *RedisRelay) Forward(ctx context.Context, e Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run delivers events from the channel until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context, deliver func(Event)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info().Str("channel", r.channel).Msg("listening for change events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := decode([]byte(msg.Payload))
			if err != nil {
				r.log.Warn().Err(err).Msg("dropping undecodable message")
				continue
			}
			deliver(e)
		}
	}
}

// Close is a no-op; the shared client is closed by its owner
func (r *RedisRelay) Close() error {
	return nil
}
