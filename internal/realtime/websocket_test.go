package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverFrame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newWSServer(t *testing.T, r *Registry) (*httptest.Server, string) {
	t.Helper()
	logger := zerolog.Nop()
	h := NewHandler(r, config.RealtimeConfig{
		HandshakeTimeout: 500 * time.Millisecond,
		SendBuffer:       8,
		PingInterval:     time.Second,
		WriteTimeout:     time.Second,
	}, &logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f serverFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebsocketHeaderAuth(t *testing.T) {
	r := newTestRegistry(staticCounter{counts: map[int64]int{7: 2}})
	_, url := newWSServer(t, r)

	header := http.Header{}
	header.Set("Authorization", "Bearer user-7")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	first := readFrame(t, conn)
	assert.Equal(t, FrameUnreadCount, first.Type)
	assert.JSONEq(t, `{"count":2}`, string(first.Data))

	require.Eventually(t, func() bool { return r.Connections(7) == 1 }, time.Second, 10*time.Millisecond)

	r.PushNotification(context.Background(), 7, &models.Notification{ID: 9, RecipientID: 7, Title: "New booking request"})
	pushed := readFrame(t, conn)
	assert.Equal(t, FrameNotification, pushed.Type)
	assert.Contains(t, string(pushed.Data), "New booking request")

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: FrameMarkAsRead, NotificationID: 9}))
	ack := readFrame(t, conn)
	assert.Equal(t, FrameAck, ack.Type)
	assert.JSONEq(t, `{"notification_id":9}`, string(ack.Data))

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: "dance"}))
	unknown := readFrame(t, conn)
	assert.Equal(t, FrameError, unknown.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return r.Connections(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketQueryAndFrameAuth(t *testing.T) {
	r := newTestRegistry(staticCounter{})
	_, url := newWSServer(t, r)

	t.Run("QueryToken", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(url+"?token=user-3", nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, FrameUnreadCount, readFrame(t, conn).Type)
	})

	t.Run("AuthFrame", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteJSON(ClientFrame{Type: FrameAuth, Token: "user-4"}))
		assert.Equal(t, FrameUnreadCount, readFrame(t, conn).Type)
		assert.Eventually(t, func() bool { return r.Connections(4) == 1 }, time.Second, 10*time.Millisecond)
	})
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	r := newTestRegistry(staticCounter{})
	_, url := newWSServer(t, r)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=forged", nil)
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, string(f.Data), "unauthorized")
	assert.Zero(t, r.Total())
}

func TestWebsocketHandshakeTimeout(t *testing.T) {
	r := newTestRegistry(staticCounter{})
	_, url := newWSServer(t, r)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// no auth frame is sent
	f := readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Zero(t, r.Total())
}
