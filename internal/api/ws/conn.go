package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	ErrOriginUnknown = errors.New("frame origin not established")
	ErrOutboxFull    = errors.New("frame outbox full")
	ErrConnClosed    = errors.New("frame connection closed")
)

// Conn is one rendered frame. It implements protocol.Frame.
type Conn struct {
	id      string
	origin  string
	socket  *websocket.Conn
	outbox  chan []byte
	logger  *logging.Logger
	metrics *monitoring.Metrics

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(connID, origin string, socket *websocket.Conn, outboxSize int, logger *logging.Logger, metrics *monitoring.Metrics) *Conn {
	return &Conn{
		id:      connID,
		origin:  origin,
		socket:  socket,
		outbox:  make(chan []byte, outboxSize),
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Origin returns the origin the connection is pinned to.
func (c *Conn) Origin() string { return c.origin }

// Send queues m for the frame without blocking.
func (c *Conn) Send(m protocol.Message) error {
	if c.origin == "" {
		return ErrOriginUnknown
	}
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.outbox <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.logger.Warn("Frame outbox full, dropping message", zap.String("type", string(m.Type)))
		return ErrOutboxFull
	}
}

// writeLoop owns all writes to the socket.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.outbox:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Frame write failed", zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
