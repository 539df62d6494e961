package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/database"
	"realtyhub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplayer struct {
	err   error
	calls []models.SideEffectFailure
}

func (f *fakeReplayer) Replay(_ context.Context, failure models.SideEffectFailure) error {
	f.calls = append(f.calls, failure)
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewSQLite(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func recordFailure(t *testing.T, db *database.DB, effect string) *models.SideEffectFailure {
	t.Helper()
	f := &models.SideEffectFailure{BookingID: 3, Effect: effect, LastError: "boom"}
	require.NoError(t, db.RecordSideEffectFailure(context.Background(), f))
	return f
}

func TestReplaySuccess(t *testing.T) {
	db := newTestDB(t)
	replayer := &fakeReplayer{}
	w := NewReplayWorker(db, replayer, nil, config.WorkerConfig{}, nil)
	f := recordFailure(t, db, "notify.owner")

	ctx := context.Background()
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, replayer.calls, 1)
	assert.Equal(t, "notify.owner", replayer.calls[0].Effect)

	got, err := db.GetSideEffectFailure(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FailureResolved, got.Status)
	assert.NotNil(t, got.ResolvedAt)

	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "resolved rows are not due")
}

func TestReplayRetry(t *testing.T) {
	db := newTestDB(t)
	replayer := &fakeReplayer{err: errors.New("still down")}
	w := NewReplayWorker(db, replayer, nil, config.WorkerConfig{MaxRetries: 3, InitialDelay: time.Minute}, nil)
	f := recordFailure(t, db, "thread.ensure")

	ctx := context.Background()
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := db.GetSideEffectFailure(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FailureRetry, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "still down", got.LastError)
	require.NotNil(t, got.NextRetryAt)
	assert.True(t, got.NextRetryAt.After(time.Now().UTC()))

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "backoff keeps the row out of the batch")
}

func TestReplayExhaustedGoesToDeadLetter(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	replayer := &fakeReplayer{err: errors.New("gone")}
	w := NewReplayWorker(db, replayer, client, config.WorkerConfig{MaxRetries: 1}, nil)
	f := recordFailure(t, db, "notify.requester")

	ctx := context.Background()
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	got, err := db.GetSideEffectFailure(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FailureFailed, got.Status)

	items, err := client.LRange(ctx, DefaultDeadLetterKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 1)

	var dead models.SideEffectFailure
	require.NoError(t, json.Unmarshal([]byte(items[0]), &dead))
	assert.Equal(t, f.ID, dead.ID)
	assert.Equal(t, "gone", dead.LastError)
}

func TestStartStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	replayer := &fakeReplayer{}
	w := NewReplayWorker(db, replayer, nil, config.WorkerConfig{PollInterval: 10 * time.Millisecond}, nil)
	recordFailure(t, db, "notify.owner")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := db.DueSideEffectFailures(context.Background(), 10)
		return err == nil && len(got) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, policy.Backoff(1))
	assert.Equal(t, 2*time.Second, policy.Backoff(2))
	assert.Equal(t, 5*time.Second, policy.Backoff(5), "capped")
	assert.Equal(t, 5*time.Second, policy.Backoff(200), "overflow is capped")
	assert.Equal(t, time.Second, RetryPolicy{}.Backoff(0))
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
	assert.False(t, RetryPolicy{}.Exhausted(100), "zero max retries never gives up")
}

func TestRetryPolicyJitter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := RetryPolicy{InitialDelay: 10 * time.Second, BackoffFactor: 2, Jitter: 0.5}

	policy.random = func() float64 { return 0 }
	assert.Equal(t, now.Add(5*time.Second), policy.NextRetryAt(now, 1))

	policy.random = func() float64 { return 1 }
	assert.Equal(t, now.Add(15*time.Second), policy.NextRetryAt(now, 1))

	policy.MaxDelay = 12 * time.Second
	assert.Equal(t, now.Add(12*time.Second), policy.NextRetryAt(now, 1), "jitter respects the cap")

	policy.Jitter = 0
	assert.Equal(t, now.Add(12*time.Second), policy.NextRetryAt(now, 3))
}
