package ws

import (
	"time"

	"dilemma_webapp/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	sendBuffer = 64
)

// наблюдатель одной сессии. Клиент только читает события,
// ходы идут через http
type Client struct {
	SessionID string
	PlayerID  string
	Conn      *websocket.Conn
	Send      chan []byte

	Hub  *Hub
	Done chan struct{}
}

func NewClient(sessionID, playerID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		SessionID: sessionID,
		PlayerID:  playerID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       hub,
		Done:      make(chan struct{}),
	}
}

// Run подписывает клиента и держит соединение до его закрытия.
// initial уходит первым сообщением, до любых событий
func (c *Client) Run(initial []byte) {
	if initial != nil {
		// хаб еще не видит клиента, буфер пуст
		c.Send <- initial
	}
	c.Hub.Subscribe(c)

	go c.writePump()
	c.readPump()
}

// read: входящие сообщения игнорируем, читаем ради pong и закрытия
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unsubscribe(c)
		_ = c.Conn.Close()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws: ошибка чтения", "session_id", c.SessionID, "error", err)
			}
			return
		}
	}
}

// write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws: ошибка записи", "session_id", c.SessionID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
