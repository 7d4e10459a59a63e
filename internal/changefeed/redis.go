package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nhle/registry-portal/internal/subscription"
)

// RedisFeed relays change events between client instances through a Redis
// pub/sub channel. Events published by this instance are dropped on receipt.
type RedisFeed struct {
	client  redis.UniversalClient
	channel string
	origin  string
	logger  *slog.Logger
	subs    subscription.Registry[Event]
}

var _ Feed = (*RedisFeed)(nil)

// NewRedisFeed creates a feed on channel. Call Run to start receiving.
func NewRedisFeed(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin returns this instance's identifier on the channel.
func (f *RedisFeed) Origin() string {
	return f.origin
}

func (f *RedisFeed) Publish(ctx context.Context, key string) error {
	payload, err := json.Marshal(Event{Origin: f.origin, Key: key})
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(fn func(Event)) *subscription.Subscription {
	return f.subs.Subscribe(fn)
}

// Run receives events until ctx is cancelled. go-redis reconnects the
// subscription on its own after network failures.
func (f *RedisFeed) Run(ctx context.Context) error {
	ps := f.client.Subscribe(ctx, f.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", f.channel, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.dispatch(msg.Payload)
		}
	}
}

func (f *RedisFeed) dispatch(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		f.logger.Warn("dropping malformed change event",
			slog.String("channel", f.channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if ev.Origin == f.origin {
		return
	}
	f.subs.Publish(ev)
}
