package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"storefront/internal/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// StatsHub 维护管理后台的 WebSocket 连接，把统计快照广播给所有连接。
// 所有对 clients 的修改都在 Run 所在的 goroutine 中完成。
type StatsHub struct {
	clients    map[*statsClient]struct{}
	register   chan *statsClient
	unregister chan *statsClient
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
}

type statsClient struct {
	hub  *StatsHub
	conn *websocket.Conn
	send chan []byte
}

func NewStatsHub() *StatsHub {
	return &StatsHub{
		clients:    make(map[*statsClient]struct{}),
		register:   make(chan *statsClient),
		unregister: make(chan *statsClient),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 管理后台与 API 同源部署，简化处理允许所有来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run 阻塞直到 ctx 取消，退出时关闭所有连接。
func (h *StatsHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.StatsSubscribers.Inc()
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 慢客户端直接断开
					h.remove(c)
				}
			}
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return
		}
	}
}

func (h *StatsHub) remove(c *statsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.StatsSubscribers.Dec()
}

// Publish 非阻塞：广播队列满时丢弃本次快照，下一次变更会再推送。
func (h *StatsHub) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zlog.Error().Err(err).Msg("failed to marshal stats snapshot")
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		zlog.Warn().Msg("stats broadcast queue full, dropping snapshot")
	}
}

// ServeWS 升级连接并先推送 initial，随后接收广播。
func (h *StatsHub) ServeWS(w http.ResponseWriter, r *http.Request, initial any) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &statsClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := json.Marshal(initial); err == nil {
		c.send <- data
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump 只处理 pong 和关闭，客户端不会发送业务消息。
func (c *statsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *statsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
