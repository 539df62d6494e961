// Package app assembles the service graph shared by the API binary and the
// admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"realtyhub/internal/api"
	"realtyhub/internal/auth"
	"realtyhub/internal/availability"
	"realtyhub/internal/config"
	"realtyhub/internal/database"
	"realtyhub/internal/domain"
	"realtyhub/internal/events"
	"realtyhub/internal/logging"
	"realtyhub/internal/notify"
	"realtyhub/internal/realtime"
	"realtyhub/internal/repository"
	"realtyhub/internal/service"
	"realtyhub/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const limiterSweepInterval = 10 * time.Minute

type App struct {
	Config        *config.Config
	DB            *database.DB
	Redis         *redis.Client
	Tokens        *auth.Manager
	Bus           *events.Bus
	Registry      *realtime.Registry
	Orchestrator  *service.Orchestrator
	Bookings      *service.BookingService
	Availability  *service.AvailabilityService
	Notifications *service.NotificationService
	Worker        *worker.ReplayWorker
	Backup        *database.BackupService
	API           *api.Server

	fanout   *realtime.RedisFanout
	memory   *repository.MemoryRateLimiter
	failover *repository.FailoverRateLimiter
	logger   *zerolog.Logger
}

// New opens the stores and wires every component. Redis and Telegram are
// optional: a failed redis ping degrades to single-instance mode.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	a := &App{Config: cfg, logger: logging.Component(logger, "app")}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = db
	a.Redis = a.initRedis(ctx)

	a.Tokens = auth.NewManager(cfg.API.Auth.JWTSecret, cfg.API.Auth.JWTIssuer, cfg.API.Auth.TokenTTL)
	a.Registry = realtime.NewRegistry(a.Tokens, db, logger)

	var pusher domain.Pusher = a.Registry
	if a.Redis != nil {
		a.fanout = realtime.NewRedisFanout(a.Redis, cfg.Realtime.FanoutChannel, a.Registry, logger)
		pusher = a.fanout
	}

	var mirror domain.NotificationMirror
	if cfg.Telegram.Enabled {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			a.logger.Warn().Err(err).Msg("telegram init failed, continuing without mirror")
		} else {
			bot.Debug = cfg.Telegram.Debug
			mirror = service.NewTelegramService(bot, db)
			a.logger.Info().Str("bot", bot.Self.UserName).Msg("telegram mirror enabled")
		}
	}

	a.Bus = events.NewBus(logger)
	if err := notify.Register(a.Bus, notify.NewService(db, pusher, mirror, logger)); err != nil {
		a.Close()
		return nil, err
	}

	a.memory = repository.NewMemoryRateLimiter()
	var limiter domain.RateLimiter = a.memory
	if a.Redis != nil {
		a.failover = repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(a.Redis), a.memory, logger)
		limiter = a.failover
	}

	a.Orchestrator = service.NewOrchestrator(db, db, db, a.Bus, db, logger)
	a.Bookings = service.NewBookingService(db, db, availability.NewChecker(db), a.Orchestrator, limiter, cfg.Booking, logger)
	a.Availability = service.NewAvailabilityService(db, db, db, logger)
	a.Notifications = service.NewNotificationService(db, pusher)
	a.Worker = worker.NewReplayWorker(db, a.Orchestrator, a.Redis, cfg.Worker, logger)
	a.Backup = database.NewBackupService(db, cfg.Backup, logger)

	a.API = api.NewServer(cfg.API, api.Deps{
		Bookings:      a.Bookings,
		Availability:  a.Availability,
		Notifications: a.Notifications,
		Events:        a.Bus,
		Tokens:        a.Tokens,
		Live:          realtime.NewHandler(a.Registry, cfg.Realtime, logger),
		Ready:         a.Ready,
	}, logger)

	return a, nil
}

func (a *App) initRedis(ctx context.Context) *redis.Client {
	if a.Config.Redis.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(a.Config.Redis)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		a.logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}
	a.logger.Info().Str("addr", a.Config.Redis.Address).Msg("redis connected")
	return client
}

// Ready reports whether the database answers.
func (a *App) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Run starts the background loops and the HTTP API, then blocks until ctx
// is cancelled and everything has drained.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	goLoop := func(name string, fn func(ctx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			a.logger.Debug().Str("loop", name).Msg("background loop stopped")
		}()
	}

	if a.fanout != nil {
		goLoop("fanout", func(ctx context.Context) {
			if err := a.fanout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("fanout stopped")
			}
		})
	}
	if a.Config.Worker.Enabled {
		goLoop("replay", a.Worker.Start)
	}
	goLoop("backup", a.Backup.Start)
	goLoop("limiter-sweep", a.sweepLimiter)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.API.Start()
	}()

	var err error
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutdown signal received")
	case err = <-serveErr:
		a.logger.Error().Err(err).Msg("http server stopped")
	}

	if shutdownErr := a.API.Shutdown(context.Background()); shutdownErr != nil {
		a.logger.Warn().Err(shutdownErr).Msg("http shutdown")
	}
	a.Registry.CloseAll()
	cancel()
	wg.Wait()
	return err
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.memory.Sweep(); n > 0 {
				a.logger.Debug().Int("removed", n).Msg("expired rate limit windows swept")
			}
			if a.failover != nil && a.failover.Degraded() {
				a.logger.Warn().Msg("rate limiter running on in-memory fallback")
			}
		}
	}
}

func (a *App) Close() {
	if err := repository.Close(a.Redis); err != nil {
		a.logger.Warn().Err(err).Msg("close redis")
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close database")
		}
	}
}
