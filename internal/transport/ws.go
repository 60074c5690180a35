package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/protocol"
)

const (
	defaultReconnect = 3 * time.Second
	writeTimeout     = 5 * time.Second
)

// WSConfig configures a WSClient.
type WSConfig struct {
	URL       string
	PanelID   int
	Reconnect time.Duration // delay between attempts, default 3s
	Header    http.Header
}

// WSClient is a Conn to a controller over a websocket. It reconnects with a
// fixed delay and sends a READY line carrying the panel ID on every
// connect. Inbound frames are split into lines.
type WSClient struct {
	cfg     WSConfig
	dialer  *websocket.Dialer
	log     *observability.Logger
	metrics *observability.MetricsCollector

	mu        sync.Mutex
	conn      *websocket.Conn
	connected chan struct{}

	inbox  chan string
	done   chan struct{}
	closed sync.Once
}

// NewWSClient creates a client. Call Run to start connecting.
func NewWSClient(cfg WSConfig, m *observability.MetricsCollector, log *observability.Logger) *WSClient {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = defaultReconnect
	}
	if log == nil {
		log = observability.Discard()
	}
	if m == nil {
		m = observability.NewMetricsCollector(0)
	}
	return &WSClient{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:       log,
		metrics:   m,
		connected: make(chan struct{}),
		inbox:     make(chan string, 256),
		done:      make(chan struct{}),
	}
}

// Run connects and keeps reconnecting until ctx ends or Close is called.
func (c *WSClient) Run(ctx context.Context) error {
	first := true
	for {
		if !first {
			c.metrics.Increment(observability.CounterReconnects)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return ErrClosed
			case <-time.After(c.cfg.Reconnect):
			}
		}
		first = false

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err != nil {
			c.log.TransportEvent("dial_failed", c.cfg.URL, "error", err)
			continue
		}
		c.log.TransportEvent("connected", c.cfg.URL)
		c.setConn(conn)
		if err := c.Send(ctx, protocol.Ready(c.cfg.PanelID)); err != nil {
			c.log.TransportEvent("ready_failed", c.cfg.URL, "error", err)
		}

		err = c.readLoop(ctx, conn)
		c.clearConn(conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		default:
		}
		c.log.TransportEvent("disconnected", c.cfg.URL, "error", err)
	}
}

func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		case <-stop:
			return
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			select {
			case c.inbox <- line:
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return ErrClosed
			}
		}
	}
}

func (c *WSClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	close(c.connected)
}

func (c *WSClient) clearConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.connected = make(chan struct{})
	}
}

// WaitConnected blocks until a connection is up.
func (c *WSClient) WaitConnected(ctx context.Context) error {
	c.mu.Lock()
	ch := c.connected
	c.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Receive implements Conn. It waits across reconnects.
func (c *WSClient) Receive(ctx context.Context) (string, error) {
	select {
	case msg := <-c.inbox:
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", ErrClosed
	}
}

// Send implements Conn. It fails with ErrNotConnected while the link is
// down.
func (c *WSClient) Send(ctx context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("ws send: %w", err)
	}
	return nil
}

// Close implements Conn.
func (c *WSClient) Close() error {
	c.closed.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}
