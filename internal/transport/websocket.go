// Package transport is the websocket client side of the control connection.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"domo/internal/logger"
	"domo/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// The handshake snapshot carries a day of samples per sensor.
	maxMsgSize = 4 << 20
)

// Dialer opens control connections with gorilla/websocket.
type Dialer struct {
	ws  *websocket.Dialer
	log *logger.Logger
}

func NewDialer(log *logger.Logger) *Dialer {
	if log == nil {
		log = logger.Nop()
	}
	return &Dialer{
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Dial connects to url. ctx bounds the opening handshake only.
func (d *Dialer) Dial(ctx context.Context, url string) (service.Transport, error) {
	ws, resp, err := d.ws.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	ws.SetReadLimit(maxMsgSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	d.log.Infow("ws_connected", "url", url)
	return &Conn{ws: ws}, nil
}

// Conn is one open control connection. Read must be called from a single
// goroutine; Write, Ping and Close are safe for concurrent use.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

// Read returns the next text or binary frame. Any frame extends the read
// deadline, as does a pong.
func (c *Conn) Read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

func (c *Conn) Write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *Conn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a normal close frame and tears the connection down. Pending
// Read calls return an error.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}
