package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	xlogger "FinSignal/pkg/logger"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signals" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readSignal(t *testing.T, conn *websocket.Conn) models.Signal {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var s models.Signal
	require.NoError(t, conn.ReadJSON(&s))
	return s
}

func TestHubBroadcastFiltersBySymbol(t *testing.T) {
	hub := NewHub(xlogger.Nop())
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	all := dial(t, srv, "")
	aapl := dial(t, srv, "?symbol=aapl")
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(&models.Signal{ID: "1", Symbol: "MSFT"})
	hub.Broadcast(&models.Signal{ID: "2", Symbol: "AAPL"})

	assert.Equal(t, "1", readSignal(t, all).ID)
	assert.Equal(t, "2", readSignal(t, all).ID)
	assert.Equal(t, "2", readSignal(t, aapl).ID)
}

func TestHubCloseDisconnects(t *testing.T) {
	hub := NewHub(xlogger.Nop())
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Count())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	hub.Broadcast(&models.Signal{ID: "late"})
}

func TestHubDropsDisconnectedPeer(t *testing.T) {
	hub := NewHub(xlogger.Nop())
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
