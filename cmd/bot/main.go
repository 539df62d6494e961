package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtyhub/internal/auth"
	"realtyhub/internal/bot"
	"realtyhub/internal/config"
	"realtyhub/internal/database"
	"realtyhub/internal/domain"
	"realtyhub/internal/logging"
	"realtyhub/internal/realtime"
	"realtyhub/internal/repository"
	"realtyhub/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	if cfg.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required to run the bot")
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	tokens := auth.NewManager(cfg.API.Auth.JWTSecret, cfg.API.Auth.JWTIssuer, cfg.API.Auth.TokenTTL)

	// The bot holds no live channels; unread counts reach the API
	// instances through the redis fanout when it is configured.
	var pusher domain.Pusher = realtime.NewRegistry(tokens, db, logger)
	memory := repository.NewMemoryRateLimiter()
	var limiter domain.RateLimiter = memory
	if redisClient != nil {
		pusher = realtime.NewRedisFanout(redisClient, cfg.Realtime.FanoutChannel, pusher, logger)
		limiter = repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(redisClient), memory, logger)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("init telegram bot: %w", err)
	}
	botAPI.Debug = cfg.Telegram.Debug

	var metrics *bot.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		metrics = bot.NewMetrics(prometheus.DefaultRegisterer)
	}

	b := bot.NewBot(
		bot.NewBotWrapper(botAPI),
		cfg.Telegram,
		tokens,
		db,
		service.NewNotificationService(db, pusher),
		limiter,
		metrics,
		logger,
	)

	go sweepLimiter(ctx, memory)

	logger.Info().Msg("Telegram bot started")
	b.Start(ctx)
	logger.Info().Msg("Telegram bot stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "bot-main"), closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}
	return client
}

func sweepLimiter(ctx context.Context, memory *repository.MemoryRateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memory.Sweep()
		}
	}
}
