package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agnish1611/Omniverse/internal/config"
	"github.com/Agnish1611/Omniverse/internal/protocol"
)

// newConnPair upgrades one connection and returns the server-side Conn with
// its client-side peer.
func newConnPair(t *testing.T, cfg config.WebSocketConfig) (*Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	accepted := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		accepted <- newConn(wsConn, cfg)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case conn := <-accepted:
		t.Cleanup(conn.Close)
		return conn, client
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade never completed")
		return nil, nil
	}
}

func TestConn_SendDelivers(t *testing.T) {
	conn, client := newConnPair(t, testConfig())
	go conn.writePump()

	require.NoError(t, conn.Send(protocol.NewUserLeft("u1")))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-left","payload":{"userId":"u1"}}`, string(data))
}

func TestConn_SendAfterClose(t *testing.T) {
	conn, _ := newConnPair(t, testConfig())
	conn.Close()

	err := conn.Send(protocol.NewUserLeft("u1"))
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_SendQueueFullDrops(t *testing.T) {
	cfg := testConfig()
	cfg.SendBuffer = 1
	conn, _ := newConnPair(t, cfg)
	// No write pump: the queue cannot drain.

	require.NoError(t, conn.Send(protocol.NewUserLeft("u1")))
	err := conn.Send(protocol.NewUserLeft("u2"))
	assert.ErrorIs(t, err, ErrSendQueueFull)
}

func TestConn_CloseIdempotent(t *testing.T) {
	conn, _ := newConnPair(t, testConfig())
	conn.Close()
	conn.Close()
}
