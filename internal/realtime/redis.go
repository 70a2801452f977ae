package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const DefaultChannel = "taskflow:changes"

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay shares hub events between API instances over Redis pub/sub.
// Each instance drops the messages it published itself.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	breaker *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
	pubsub  *redis.PubSub
}

func NewRedisRelay(redisURL string, hub *Hub, log logrus.FieldLogger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := &RedisRelay{
		client:  client,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		hub:     hub,
		log:     log,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-relay",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("Circuit breaker state changed")
		},
	})
	return r, nil
}

// Publish sends ev to the other instances. While the breaker is open the
// event is dropped and gobreaker.ErrOpenState is returned.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(envelope{Origin: r.origin, Event: ev})
	if err != nil {
		return err
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Publish(ctx, r.channel, payload).Err()
	})
	return err
}

// Start subscribes to the channel and delivers remote events to the hub until
// ctx is cancelled or Close is called. It returns once the subscription is live.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.pubsub = r.client.Subscribe(ctx, r.channel)
	if _, err := r.pubsub.Receive(ctx); err != nil {
		r.pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ch := r.pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.handle(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.WithError(err).Warn("Dropping malformed change event")
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.hub.Deliver(env.Event)
}

func (r *RedisRelay) Close() error {
	if r.pubsub != nil {
		r.pubsub.Close()
	}
	return r.client.Close()
}
