package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type envelope struct {
	Origin       string               `json:"origin"`
	UserID       int64                `json:"user_id"`
	Type         FrameType            `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
	Count        int                  `json:"count,omitempty"`
}

// RedisFanout delivers pushes to the local registry and relays them over a
// redis channel so that other instances reach channels they hold. Messages
// published by this instance are ignored on receipt.
type RedisFanout struct {
	client    *redis.Client
	channel   string
	local     domain.Pusher
	origin    string
	logger    *zerolog.Logger
	ready     chan struct{}
	readyOnce sync.Once
}

func NewRedisFanout(client *redis.Client, channel string, local domain.Pusher, logger *zerolog.Logger) *RedisFanout {
	child := logger.With().Str("component", "fanout").Logger()
	return &RedisFanout{
		client:  client,
		channel: channel,
		local:   local,
		origin:  uuid.NewString(),
		logger:  &child,
		ready:   make(chan struct{}),
	}
}

func (f *RedisFanout) PushNotification(ctx context.Context, userID int64, n *models.Notification) {
	f.local.PushNotification(ctx, userID, n)
	f.publish(ctx, envelope{UserID: userID, Type: FrameNotification, Notification: n})
}

func (f *RedisFanout) PushUnreadCount(ctx context.Context, userID int64, count int) {
	f.local.PushUnreadCount(ctx, userID, count)
	f.publish(ctx, envelope{UserID: userID, Type: FrameUnreadCount, Count: count})
}

func (f *RedisFanout) publish(ctx context.Context, env envelope) {
	env.Origin = f.origin
	payload, err := json.Marshal(env)
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to encode fanout envelope")
		return
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.logger.Warn().Err(err).Int64("user_id", env.UserID).Msg("fanout publish failed, delivered locally only")
	}
}

// Ready is closed once the subscription is active.
func (f *RedisFanout) Ready() <-chan struct{} {
	return f.ready
}

// Run relays remote pushes to the local registry until ctx is done.
func (f *RedisFanout) Run(ctx context.Context) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.readyOnce.Do(func() { close(f.ready) })
	f.logger.Info().Str("channel", f.channel).Msg("fanout subscriber started")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f.deliver(ctx, msg.Payload)
		}
	}
}

func (f *RedisFanout) deliver(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		f.logger.Warn().Err(err).Msg("dropping malformed fanout message")
		return
	}
	if env.Origin == f.origin {
		return
	}
	switch env.Type {
	case FrameNotification:
		if env.Notification != nil {
			f.local.PushNotification(ctx, env.UserID, env.Notification)
		}
	case FrameUnreadCount:
		f.local.PushUnreadCount(ctx, env.UserID, env.Count)
	default:
		f.logger.Warn().Str("type", string(env.Type)).Msg("unknown fanout frame")
	}
}
