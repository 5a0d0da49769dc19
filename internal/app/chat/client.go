package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// capacity of the outbound queue of each connection.
	sendBufferSize = 256

	// eventTimeout bounds the handling of one inbound event, store writes included.
	eventTimeout = 30 * time.Second

	// frameOverhead covers the envelope and file metadata around a base64 payload.
	frameOverhead = 64 * 1024
)

// ReadLimit returns the largest inbound frame accepted when files may be maxFileBytes long.
func ReadLimit(maxFileBytes int64) int64 {
	return (maxFileBytes+2)/3*4 + frameOverhead
}

// Client is a websocket connection. It implements Conn.
type Client struct {
	id   string
	conn *websocket.Conn

	// send queues encoded frames for WritePump. It is never closed; done signals shutdown.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	readLimit int64
	logger    zerolog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(wsConn *websocket.Conn, readLimit int64) *Client {
	id := randx.ConnectionID()

	return &Client{
		id:        id,
		conn:      wsConn,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		readLimit: readLimit,
		logger:    logx.Component("ws").With().Str("conn_id", id).Logger(),
	}
}

// ID implements Conn.
func (c *Client) ID() string {
	return c.id
}

// Enqueue implements Conn.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full")
		return false
	}
}

// Close implements Conn. WritePump sends a close frame and tears the socket down.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads frames and dispatches them through m until the connection fails, then
// detaches the session. It blocks; run WritePump alongside it.
func (c *Client) ReadPump(ctx context.Context, m *Manager, s *Session) {
	defer func() {
		m.Detach(s)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readLimit)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		eventCtx, cancel := context.WithTimeout(ctx, eventTimeout)
		m.Dispatch(eventCtx, s, frame)
		cancel()
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
			return
		}
	}
}

// write sends one frame and reports whether the pump should continue.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}

	return true
}
