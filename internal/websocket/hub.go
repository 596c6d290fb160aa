package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	gwebsocket "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lora-envmon/internal/metrics"
	"lora-envmon/internal/models"
)

// 推送消息类型
const (
	MessageReading      = "reading"
	MessageAlert        = "alert"
	MessageGatewayStats = "gateway_stats"
)

const broadcastBuffer = 256

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // 看板与服务不同源
}

// Message 推送给看板的消息
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub 管理看板连接并广播入库事件
// 客户端集合只由 Run 所在的 goroutine 修改
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64

	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     logger,
	}
}

// Run 阻塞运行直到 ctx 取消，退出时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.updateCount()
			h.logger.Debug("WebSocket client registered", zap.String("remote", client.remote))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Debug("WebSocket client unregistered", zap.String("remote", client.remote))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 发送缓冲已满，视为慢客户端直接断开
					h.logger.Warn("WebSocket client too slow, removing", zap.String("remote", client.remote))
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.updateCount()
}

func (h *Hub) updateCount() {
	h.count.Store(int64(len(h.clients)))
	h.metrics.SetWebsocketClients(len(h.clients))
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// ServeHTTP 升级为 WebSocket 连接（GET /ws）
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(h, conn)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// Broadcast 非阻塞广播；Hub 积压时丢弃消息
func (h *Hub) Broadcast(msgType string, payload interface{}) error {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("WebSocket broadcast buffer full, dropping message", zap.String("type", msgType))
	}
	return nil
}

// Notifier 实现

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) NotifyReading(_ context.Context, reading models.Reading) error {
	return h.Broadcast(MessageReading, reading.View())
}

func (h *Hub) NotifyAlerts(_ context.Context, alerts []models.Alert) error {
	for _, a := range alerts {
		if err := h.Broadcast(MessageAlert, a); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) NotifyGatewayStats(_ context.Context, stats models.GatewayStatsSnapshot) error {
	return h.Broadcast(MessageGatewayStats, stats.View())
}
