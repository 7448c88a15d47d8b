// Package realtime 维护 WebSocket 连接并向所有客户端广播状态变更。
//
// 广播是 fire-and-forget、至多一次：断线客户端收不到补发，
// 重连后需要整体重拉状态。
package realtime

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bynour1/projet-planni/internal/pkg/metrics"
)

// Publisher 是状态机在提交成功后调用的发布接口，
// 让传输层（WebSocket / SSE / 消息队列）可替换。
type Publisher interface {
	Publish(event string, payload interface{})
}

// Message 是推送给客户端的信封。
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// client 包住一条连接，writeMu 串行化写入：
// gorilla/websocket 每条连接同一时刻只允许一个写者。
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub 管理全部 WebSocket 连接。
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHub 创建连接管理器。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleUpgrade 升级 HTTP 连接并注册到 hub，阻塞到客户端断开。
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	cl := &client{conn: conn}
	h.add(cl)
	defer h.remove(cl)

	// 客户端不发业务消息，读循环只用于感知断开。
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish 向所有连接广播一条事件，写失败的连接直接摘除。
//
// 并发调用安全：客户端快照在读锁下取，写入由每条连接自己的
// writeMu 串行化。
func (h *Hub) Publish(event string, payload interface{}) {
	msg := Message{Event: event, Data: payload}

	h.mu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		snapshot = append(snapshot, cl)
	}
	h.mu.RUnlock()

	for _, cl := range snapshot {
		if err := cl.writeJSON(msg); err != nil {
			h.logger.Warn("ws broadcast failed", slog.String("event", event), slog.String("error", err.Error()))
			h.remove(cl)
		}
	}
}

// ClientCount 当前连接数。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	if metrics.RealtimeClients != nil {
		metrics.RealtimeClients.Set(float64(total))
	}
	h.logger.Info("ws connected", slog.Int("clients", total))
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, known := h.clients[cl]
	delete(h.clients, cl)
	total := len(h.clients)
	h.mu.Unlock()

	_ = cl.conn.Close()
	if !known {
		return
	}
	if metrics.RealtimeClients != nil {
		metrics.RealtimeClients.Set(float64(total))
	}
	h.logger.Info("ws disconnected", slog.Int("clients", total))
}
