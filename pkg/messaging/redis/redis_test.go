package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanly/booking-api/pkg/circuitbreaker"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/messaging/redis"
)

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := redis.NewRedisBroker(context.Background(), redis.Config{URL: "://nope"}, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse Redis URL")
}

func TestPublishTripsBreakerWhenRedisIsDown(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	broker := redis.NewRedisBrokerWithClient(client, logger.Nop())
	defer broker.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := broker.Publish(ctx, "cleanly.events", map[string]string{"type": "booking.created"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}

	err := broker.Publish(ctx, "cleanly.events", map[string]string{"type": "booking.created"})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestPublishRejectsUnmarshalableMessage(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	broker := redis.NewRedisBrokerWithClient(client, logger.Nop())
	defer broker.Close()

	err := broker.Publish(context.Background(), "cleanly.events", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}
