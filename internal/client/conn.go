// Package client is the member side of the classroom: it connects to the
// relay, tracks the leader seat and drives a dialogue.Node.
package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("send queue full")
	ErrClosed       = errors.New("connection closed")
)

type outFrame struct {
	binary bool
	data   []byte
}

// Conn is the member's signal connection. Writes are queued and flushed by
// WritePump so callers never block on the network.
type Conn struct {
	ws   *websocket.Conn
	send chan outFrame

	mu     sync.RWMutex
	closed bool
}

// Dial connects to the relay. token becomes the member's session id.
func Dial(ctx context.Context, url, token string) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("X-Client-Token", token)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws, send: make(chan outFrame, 256)}, nil
}

func (c *Conn) SendText(b []byte) error { return c.enqueue(outFrame{data: b}) }

func (c *Conn) SendBinary(b []byte) error { return c.enqueue(outFrame{binary: true, data: b}) }

func (c *Conn) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendText(b)
}

func (c *Conn) enqueue(f outFrame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
}

// WritePump flushes queued frames until ctx is done or the queue is closed.
func (c *Conn) WritePump(ctx context.Context, pingPeriod time.Duration) error {
	if pingPeriod <= 0 {
		pingPeriod = 30 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case f, ok := <-c.send:
			if !ok {
				return ErrClosed
			}
			typ := websocket.TextMessage
			if f.binary {
				typ = websocket.BinaryMessage
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(typ, f.data); err != nil {
				log.Error().Err(err).Str("module", "client.conn").Msg("write")
				return err
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return err
			}
		}
	}
}

// ReadPump hands every inbound frame to onText or onBinary until the
// connection fails.
func (c *Conn) ReadPump(onText, onBinary func([]byte)) error {
	defer c.Close()
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()
			if closed {
				return ErrClosed
			}
			return err
		}
		switch typ {
		case websocket.TextMessage:
			onText(data)
		case websocket.BinaryMessage:
			onBinary(data)
		}
	}
}
