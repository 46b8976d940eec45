package publish

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"netsentinel/pkg/model"
)

// RedisPublisher fans samples out on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	agentID string
}

// NewRedisPublisher connects and verifies the server with PING.
func NewRedisPublisher(ctx context.Context, addr, password string, db int, channel, agentID string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisPublisher{client: client, channel: channel, agentID: agentID}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, s model.Sample) error {
	msg, err := encode(p.agentID, s)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish sample: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
