package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/domain"

	"github.com/rs/zerolog"
)

// Deps are the services the HTTP surface fronts. Live and Ready are optional.
type Deps struct {
	Bookings      domain.BookingLedger
	Availability  domain.AvailabilityService
	Notifications domain.NotificationService
	Events        domain.EventPublisher
	Tokens        domain.TokenVerifier
	Live          http.Handler
	Ready         func(ctx context.Context) error
}

type Server struct {
	cfg           config.APIConfig
	bookings      domain.BookingLedger
	availability  domain.AvailabilityService
	notifications domain.NotificationService
	events        domain.EventPublisher
	ready         func(ctx context.Context) error
	auth          *HTTPAuth
	logger        *zerolog.Logger
	handler       http.Handler
	server        *http.Server
}

func NewServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Server{
		cfg:           cfg,
		bookings:      deps.Bookings,
		availability:  deps.Availability,
		notifications: deps.Notifications,
		events:        deps.Events,
		ready:         deps.Ready,
		auth:          NewHTTPAuth(cfg.Auth),
		logger:        logger,
	}

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, h))
	}

	handle("POST /api/v1/bookings", s.handleSubmitBooking)
	handle("GET /api/v1/bookings", s.handleMyBookings)
	handle("GET /api/v1/bookings/{id}", s.handleGetBooking)
	handle("POST /api/v1/bookings/{id}/status", s.handleTransition)
	handle("POST /api/v1/bookings/{id}/cancel", s.handleCancel)

	handle("GET /api/v1/properties/{id}/bookings", s.handlePropertyBookings)
	handle("GET /api/v1/properties/{id}/blocks", s.handleListBlocks)
	handle("POST /api/v1/properties/{id}/blocks", s.handleCreateBlock)
	handle("DELETE /api/v1/properties/{id}/blocks/{blockID}", s.handleDeleteBlock)
	handle("GET /api/v1/properties/{id}/availability", s.handleAvailability)

	handle("GET /api/v1/notifications", s.handleListNotifications)
	handle("GET /api/v1/notifications/unread-count", s.handleUnreadCount)
	handle("POST /api/v1/notifications/{id}/read", s.handleMarkRead)
	handle("POST /api/v1/notifications/read-all", s.handleMarkAllRead)

	mux.Handle("POST /internal/v1/events",
		instrument("POST /internal/v1/events", s.auth.Require(permPublishEvents, http.HandlerFunc(s.handlePublishEvent))))

	if deps.Live != nil {
		mux.Handle("GET /ws", instrument("GET /ws", deps.Live))
	}
	handle("GET /healthz", s.handleHealth)
	handle("GET /readyz", s.handleReady)

	var handler http.Handler = mux
	handler = bearerMiddleware(deps.Tokens, handler)
	handler = newRateLimiter(cfg.RateLimit).Wrap(handler)
	handler = recoverMiddleware(logger, handler)
	handler = loggingMiddleware(logger, handler)
	s.handler = handler

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
