package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lora-envmon/internal/metrics"
	"lora-envmon/internal/models"
)

func setupHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(metrics.New(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *gwebsocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gwebsocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gwebsocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsIngestEvents(t *testing.T) {
	hub, srv, _ := setupHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	battery := 10
	reading := models.Reading{NodeID: "NODE_01", Timestamp: time.Now(), Battery: &battery}
	require.NoError(t, hub.NotifyReading(ctx, reading))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageReading, msg.Type)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "NODE_01", payload["node_id"])
	assert.Contains(t, payload, "sensors")

	node := "NODE_01"
	require.NoError(t, hub.NotifyAlerts(ctx, []models.Alert{
		{ID: 1, NodeID: &node, Type: models.AlertTypeLowBattery, Message: "Low battery (10%) on NODE_01"},
	}))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageAlert, msg.Type)

	require.NoError(t, hub.NotifyGatewayStats(ctx, models.GatewayStatsSnapshot{GatewayID: 4}))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageGatewayStats, msg.Type)
	payload, ok = msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), payload["gateway_id"])
	assert.Contains(t, payload, "lora_stats")
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, srv, _ := setupHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesConnections(t *testing.T) {
	hub, srv, cancel := setupHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	// Run 未启动时广播不阻塞
	for i := 0; i < broadcastBuffer+10; i++ {
		require.NoError(t, hub.Broadcast(MessageReading, map[string]int{"i": i}))
	}
	assert.Equal(t, "websocket", hub.Name())
}
