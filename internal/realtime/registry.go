package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"realtyhub/internal/domain"
	"realtyhub/internal/metrics"
	"realtyhub/internal/models"

	"github.com/rs/zerolog"
)

// Channel is one live connection of a user. Send must never block: it
// either enqueues the frame or reports false.
type Channel interface {
	ID() string
	Send(f Frame) bool
	Close()
}

const shardCount = 32

type shard struct {
	mu    sync.RWMutex
	users map[int64]map[string]Channel
}

// Registry maps users to their live channels. A user may hold any number of
// channels at once (several tabs or devices).
type Registry struct {
	shards   [shardCount]*shard
	owners   sync.Map // channel id -> user id
	total    atomic.Int64
	verifier domain.TokenVerifier
	unread   domain.UnreadCounter
	logger   *zerolog.Logger
}

func NewRegistry(verifier domain.TokenVerifier, unread domain.UnreadCounter, logger *zerolog.Logger) *Registry {
	child := logger.With().Str("component", "realtime").Logger()
	r := &Registry{
		verifier: verifier,
		unread:   unread,
		logger:   &child,
	}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[int64]map[string]Channel)}
	}
	return r
}

func (r *Registry) shardFor(userID int64) *shard {
	idx := userID % shardCount
	if idx < 0 {
		idx = -idx
	}
	return r.shards[idx]
}

// Connect verifies token and registers ch for its user. Nothing is
// registered when verification fails.
func (r *Registry) Connect(ctx context.Context, ch Channel, token string) (int64, error) {
	userID, err := r.verifier.Verify(token)
	if err != nil {
		return 0, fmt.Errorf("connect channel: %w", err)
	}
	if _, loaded := r.owners.LoadOrStore(ch.ID(), userID); loaded {
		return 0, fmt.Errorf("channel %s is already connected: %w", ch.ID(), domain.ErrValidation)
	}

	s := r.shardFor(userID)
	s.mu.Lock()
	channels, ok := s.users[userID]
	if !ok {
		channels = make(map[string]Channel)
		s.users[userID] = channels
	}
	channels[ch.ID()] = ch
	s.mu.Unlock()

	metrics.SetLiveChannels(int(r.total.Add(1)))
	r.logger.Debug().Int64("user_id", userID).Str("channel_id", ch.ID()).Msg("channel connected")
	return userID, nil
}

// Disconnect removes ch. Unknown or already removed channels are ignored.
func (r *Registry) Disconnect(ch Channel) {
	v, ok := r.owners.LoadAndDelete(ch.ID())
	if !ok {
		return
	}
	userID := v.(int64)

	s := r.shardFor(userID)
	s.mu.Lock()
	if channels, ok := s.users[userID]; ok {
		delete(channels, ch.ID())
		if len(channels) == 0 {
			delete(s.users, userID)
		}
	}
	s.mu.Unlock()

	metrics.SetLiveChannels(int(r.total.Add(-1)))
	r.logger.Debug().Int64("user_id", userID).Str("channel_id", ch.ID()).Msg("channel disconnected")
}

func (r *Registry) channels(userID int64) []Channel {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	channels := s.users[userID]
	if len(channels) == 0 {
		return nil
	}
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, ch)
	}
	return out
}

// Push delivers f to every live channel of userID and returns how many
// accepted it. Offline users get nothing; there is no queue.
func (r *Registry) Push(_ context.Context, userID int64, f Frame) int {
	delivered := 0
	for _, ch := range r.channels(userID) {
		if ch.Send(f) {
			delivered++
			metrics.IncPushDelivered()
			continue
		}
		metrics.IncPushDropped()
		r.logger.Debug().Int64("user_id", userID).Str("channel_id", ch.ID()).Str("frame", string(f.Type)).Msg("push dropped")
	}
	return delivered
}

func (r *Registry) PushNotification(ctx context.Context, userID int64, n *models.Notification) {
	r.Push(ctx, userID, NotificationFrame(n))
}

func (r *Registry) PushUnreadCount(ctx context.Context, userID int64, count int) {
	r.Push(ctx, userID, UnreadCountFrame(count))
}

// UnreadCount reads the user's unread total and pushes it to their channels.
func (r *Registry) UnreadCount(ctx context.Context, userID int64) (int, error) {
	count, err := r.unread.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread for user %d: %w", userID, err)
	}
	r.PushUnreadCount(ctx, userID, count)
	return count, nil
}

func (r *Registry) Connections(userID int64) int {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID])
}

func (r *Registry) Total() int {
	return int(r.total.Load())
}

// CloseAll closes every registered channel. Used on shutdown.
func (r *Registry) CloseAll() {
	var all []Channel
	for _, s := range r.shards {
		s.mu.RLock()
		for _, channels := range s.users {
			for _, ch := range channels {
				all = append(all, ch)
			}
		}
		s.mu.RUnlock()
	}
	for _, ch := range all {
		ch.Close()
		r.Disconnect(ch)
	}
}
