package worker

import (
	"context"
	"encoding/json"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/domain"
	"realtyhub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultDeadLetterKey = "realtyhub:side_effects:deadletter"

// ReplayWorker polls the side-effect journal and re-runs due effects with
// exponential backoff. Rows that exhaust their retries are marked failed
// and copied to a redis dead-letter list when redis is available.
type ReplayWorker struct {
	journal       domain.FailureJournal
	replayer      domain.SideEffectReplayer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	now           func() time.Time
	logger        zerolog.Logger
}

// NewReplayWorker builds a worker with sane defaults. redisClient may be nil.
func NewReplayWorker(journal domain.FailureJournal, replayer domain.SideEffectReplayer, redisClient *redis.Client, cfg config.WorkerConfig, logger *zerolog.Logger) *ReplayWorker {
	retry := RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: cfg.BackoffFactor,
		Jitter:        cfg.Jitter,
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 20
	}

	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "replay-worker").Logger()
	}

	return &ReplayWorker{
		journal:       journal,
		replayer:      replayer,
		redis:         redisClient,
		retryPolicy:   retry,
		deadLetterKey: DefaultDeadLetterKey,
		pollInterval:  poll,
		batchSize:     batch,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        base,
	}
}

// Start runs the poll loop until ctx is done.
func (w *ReplayWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("replay worker started")
	defer w.logger.Info().Msg("replay worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch due side effects")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce replays one batch of due rows and returns how many it processed.
func (w *ReplayWorker) RunOnce(ctx context.Context) (int, error) {
	due, err := w.journal.DueSideEffectFailures(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range due {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		w.process(ctx, &due[i])
	}
	return len(due), nil
}

func (w *ReplayWorker) process(ctx context.Context, failure *models.SideEffectFailure) {
	err := w.replayer.Replay(ctx, *failure)
	if err == nil {
		if err := w.journal.UpdateSideEffectFailure(ctx, failure.ID, models.FailureResolved, "", nil); err != nil {
			w.logger.Error().Err(err).Int64("failure_id", failure.ID).Msg("mark resolved")
		}
		w.logger.Info().
			Int64("failure_id", failure.ID).
			Int64("booking_id", failure.BookingID).
			Str("effect", failure.Effect).
			Msg("side effect replayed")
		return
	}
	w.retryOrFail(ctx, failure, err)
}

func (w *ReplayWorker) retryOrFail(ctx context.Context, failure *models.SideEffectFailure, cause error) {
	log := w.logger.With().
		Int64("failure_id", failure.ID).
		Int64("booking_id", failure.BookingID).
		Str("effect", failure.Effect).
		Int("attempts", failure.Attempts).
		Logger()

	if w.retryPolicy.Exhausted(failure.Attempts) {
		if err := w.journal.UpdateSideEffectFailure(ctx, failure.ID, models.FailureFailed, cause.Error(), nil); err != nil {
			log.Error().Err(err).Msg("mark failed")
		}
		failure.Status = models.FailureFailed
		failure.LastError = cause.Error()
		w.pushDeadLetter(ctx, failure)
		log.Warn().Err(cause).Msg("side effect gave up")
		return
	}

	next := w.retryPolicy.NextRetryAt(w.now(), failure.Attempts)
	if err := w.journal.UpdateSideEffectFailure(ctx, failure.ID, models.FailureRetry, cause.Error(), &next); err != nil {
		log.Error().Err(err).Msg("mark retry")
	}
	log.Debug().Err(cause).Time("next_retry_at", next).Msg("side effect replay failed")
}

func (w *ReplayWorker) pushDeadLetter(ctx context.Context, failure *models.SideEffectFailure) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(failure)
	if err != nil {
		w.logger.Error().Err(err).Int64("failure_id", failure.ID).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("failure_id", failure.ID).Msg("dead letter push")
	}
}
