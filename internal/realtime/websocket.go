package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"realtyhub/internal/auth"
	"realtyhub/internal/config"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxClientFrameBytes = 4096

// wsChannel adapts a websocket connection to Channel. Frames are queued on
// send and written by a single writer goroutine.
type wsChannel struct {
	id        string
	conn      *websocket.Conn
	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn, buffer int) *wsChannel {
	return &wsChannel{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Frame, buffer),
		done: make(chan struct{}),
	}
}

func (c *wsChannel) ID() string { return c.id }

func (c *wsChannel) Send(f Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *wsChannel) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Handler upgrades GET /ws requests to live channels. The bearer token comes
// from the Authorization header, the token query parameter or a first auth
// frame sent within the handshake timeout.
type Handler struct {
	registry *Registry
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	logger   *zerolog.Logger
}

func NewHandler(registry *Registry, cfg config.RealtimeConfig, logger *zerolog.Logger) *Handler {
	child := logger.With().Str("component", "websocket").Logger()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	h := &Handler{
		registry: registry,
		cfg:      cfg,
		logger:   &child,
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxClientFrameBytes)

	if token == "" {
		token, err = h.awaitAuthFrame(conn)
		if err != nil {
			h.reject(conn, "unauthorized", err.Error())
			return
		}
	}

	ch := newWSChannel(conn, h.cfg.SendBuffer)
	ctx := r.Context()
	userID, err := h.registry.Connect(ctx, ch, token)
	if err != nil {
		h.reject(conn, "unauthorized", "invalid or expired token")
		return
	}
	defer h.registry.Disconnect(ch)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(ch)
	}()

	if _, err := h.registry.UnreadCount(ctx, userID); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", userID).Msg("initial unread count failed")
	}

	h.readPump(ctx, ch)
	ch.Close()
	wg.Wait()
}

func (h *Handler) awaitAuthFrame(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))
	var frame ClientFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return "", errors.New("expected auth frame")
	}
	_ = conn.SetReadDeadline(time.Time{})
	if frame.Type != FrameAuth || frame.Token == "" {
		return "", errors.New("first frame must be auth")
	}
	return frame.Token, nil
}

// reject writes an error frame directly. Only valid before the write pump runs.
func (h *Handler) reject(conn *websocket.Conn, code, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	_ = conn.WriteJSON(ErrorFrame(code, message))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code))
}

func (h *Handler) readPump(ctx context.Context, ch *wsChannel) {
	readWait := 2 * h.cfg.PingInterval
	_ = ch.conn.SetReadDeadline(time.Now().Add(readWait))
	ch.conn.SetPongHandler(func(string) error {
		return ch.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		var frame ClientFrame
		if err := ch.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("channel_id", ch.ID()).Msg("websocket read failed")
			}
			return
		}
		_ = ch.conn.SetReadDeadline(time.Now().Add(readWait))

		select {
		case <-ctx.Done():
			return
		default:
		}

		switch frame.Type {
		case FrameMarkAsRead:
			// advisory: persisted state changes go through the REST surface
			ch.Send(Frame{Type: FrameAck, Data: AckData{NotificationID: frame.NotificationID}})
		case FrameAuth:
			ch.Send(ErrorFrame("already_authenticated", "channel is already authenticated"))
		default:
			ch.Send(ErrorFrame("unknown_frame", "unsupported frame type "+string(frame.Type)))
		}
	}
}

func (h *Handler) writePump(ch *wsChannel) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ch.conn.Close()
	}()

	for {
		select {
		case f := <-ch.send:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := ch.conn.WriteJSON(f); err != nil {
				h.logger.Debug().Err(err).Str("channel_id", ch.ID()).Msg("websocket write failed")
				ch.Close()
				return
			}
		case <-ticker.C:
			if err := ch.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				ch.Close()
				return
			}
		case <-ch.done:
			_ = ch.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(h.cfg.WriteTimeout))
			return
		}
	}
}
