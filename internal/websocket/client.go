package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrConnectionClosed is returned by Send once the connection is gone.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned by Send when the peer is not draining
	// its outbound queue fast enough.
	ErrSendBufferFull = errors.New("send buffer full")
)

// ClientOptions tunes a single connection. Zero PongWait/PingPeriod disable
// the heartbeat, leaving idle connections open until the transport fails.
type ClientOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
	ReadLimit    int64
	PongWait     time.Duration
	PingPeriod   time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4096
	}
	return o
}

// Client is one websocket connection. Reads happen on the ingest goroutine;
// writes are serialized through a buffered queue drained by writePump.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	opts      ClientOptions
	logger    *slog.Logger
}

// NewClient wraps conn and starts its writer goroutine.
func NewClient(conn *websocket.Conn, opts ClientOptions, logger *slog.Logger) *Client {
	opts = opts.withDefaults()
	id := uuid.NewString()

	c := &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
		opts:   opts,
		logger: logger.With("conn_id", id),
	}

	conn.SetReadLimit(opts.ReadLimit)
	if opts.PongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
	}

	go c.writePump()
	return c
}

func (c *Client) ID() string { return c.id }

// Send queues payload without blocking.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Receive blocks for the next inbound frame. Any error is a transport
// failure and ends the connection.
func (c *Client) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.opts.PongWait > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	}
	return data, nil
}

// Close sends a close frame on a best-effort basis and tears the connection
// down. Safe to call more than once and from any goroutine.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// writePump writes queued messages and, when enabled, heartbeat pings.
// A failed write closes the connection so the next Send reports it dead.
func (c *Client) writePump() {
	var ping <-chan time.Time
	if c.opts.PingPeriod > 0 {
		ticker := time.NewTicker(c.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer c.Close()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}

		case <-ping:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping failed", "error", err)
				return
			}

		case <-c.done:
			return
		}
	}
}
