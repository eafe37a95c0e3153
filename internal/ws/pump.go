package ws

import (
	"net/http"
	"time"

	"taskhub/config"

	"github.com/gorilla/websocket"
)

const maxFrameSize = 64 << 10

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WritePump copies queued frames to the connection and pings on an
// interval. It returns when the send queue is closed or a write fails.
func WritePump(conn *websocket.Conn, c *Client, cfg config.WebSocketConfig) {
	ticker := time.NewTicker(cfg.PingPeriod())
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump hands every text frame to handle until the peer goes away or
// misses the pong deadline.
func ReadPump(conn *websocket.Conn, cfg config.WebSocketConfig, handle func([]byte)) {
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})
	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		handle(raw)
	}
}
