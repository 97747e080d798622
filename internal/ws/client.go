package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10 // must be < pongWait
)

var (
	ErrBackpressure = errors.New("send buffer full")
	ErrClosed       = errors.New("connection closed")
)

// clientConn owns one websocket. Every outbound frame goes through the
// buffered send channel; writePump is the only writer of rawConn.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte

	mu     sync.Mutex
	closed bool
}

func newClientConn(id string, raw *websocket.Conn, buffer int) *clientConn {
	return &clientConn{id: id, rawConn: raw, send: make(chan []byte, buffer)}
}

// trySend never blocks: a slow reader loses frames instead of stalling
// the sender.
func (c *clientConn) trySend(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrBackpressure
	}
}

// close stops writePump after it drains the queued frames.
func (c *clientConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.rawConn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.rawConn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("ws.write", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
