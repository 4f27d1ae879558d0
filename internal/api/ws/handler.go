package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/session"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/protocol"
)

// Sessions hands out editor sessions by slug. release is called once the
// frame disconnects.
type Sessions interface {
	Attach(ctx context.Context, slug string) (sess *editor.Session, release func(context.Context), err error)
}

// releaseTimeout bounds the flush of a session whose last frame left.
const releaseTimeout = 5 * time.Second

// Options configures the frame endpoint.
type Options struct {
	AllowedOrigins    []string
	MessagesPerSecond int
	MessageBurst      int
	OutboxSize        int
	MaxMessageBytes   int64
	DefaultSlug       string
	Mode              reconcile.Mode
	Logger            *logging.Logger
	Metrics           *monitoring.Metrics
}

func (o *Options) defaults() {
	if o.MessagesPerSecond <= 0 {
		o.MessagesPerSecond = 50
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 100
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 32
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	if o.DefaultSlug == "" {
		o.DefaultSlug = "/demo"
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
}

// Handler manages frame WebSocket connections
type Handler struct {
	sessions Sessions
	opts     Options
	allowed  map[string]struct{}
	anyOrig  bool
	upgrader websocket.Upgrader
}

// NewHandler creates a new frame handler
func NewHandler(sessions Sessions, opts Options) *Handler {
	opts.defaults()
	h := &Handler{
		sessions: sessions,
		opts:     opts,
		allowed:  make(map[string]struct{}, len(opts.AllowedOrigins)),
	}
	for _, o := range opts.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			h.anyOrig = true
			continue
		}
		h.allowed[o] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return h.originAllowed(r.Header.Get("Origin")) },
	}
	return h
}

// originAllowed accepts only a concrete origin. "*" in the configuration
// admits any origin but the connection is still pinned to the one presented.
func (h *Handler) originAllowed(origin string) bool {
	if origin == "" || origin == "null" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if h.anyOrig {
		return true
	}
	_, ok := h.allowed[strings.TrimRight(origin, "/")]
	return ok
}

// HandleConnection upgrades the request and serves one frame until it
// disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	slug := c.DefaultQuery("slug", h.opts.DefaultSlug)
	sess, release, err := h.sessions.Attach(c.Request.Context(), slug)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrInvalidSlug) {
			status = http.StatusBadRequest
		} else if errors.Is(err, session.ErrManagerClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		release(ctx)
	}()

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.opts.Logger.Warn("Frame upgrade failed",
			zap.String("origin", c.GetHeader("Origin")),
			zap.Error(err),
		)
		return
	}
	defer socket.Close()

	origin := strings.TrimRight(c.GetHeader("Origin"), "/")
	connID := uuid.NewString()
	logger := h.opts.Logger.With(
		zap.String("conn", connID),
		zap.String("origin", origin),
		zap.String("slug", sess.Slug()),
	)

	conn := newConn(connID, origin, socket, h.opts.OutboxSize, logger, h.opts.Metrics)
	channel := protocol.NewChannel(sess, conn, protocol.Options{
		Mode:    h.opts.Mode,
		Logger:  logger,
		Metrics: h.opts.Metrics,
	})

	if h.opts.Metrics != nil {
		h.opts.Metrics.IncFrameConnections()
		defer h.opts.Metrics.DecFrameConnections()
	}
	logger.Info("Frame connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go conn.writeLoop()
	go channel.Run(ctx)
	go func() {
		// Drop the frame when its session is closed from elsewhere.
		select {
		case <-sess.Done():
			socket.Close()
		case <-ctx.Done():
		}
	}()

	h.readLoop(ctx, conn, channel, logger)
	conn.close()
	logger.Info("Frame disconnected")
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn, channel *protocol.Channel, logger *logging.Logger) {
	socket := conn.socket
	socket.SetReadLimit(h.opts.MaxMessageBytes)
	socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), h.opts.MessageBurst)

	for {
		msgType, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Frame read error", zap.Error(err))
			}
			return
		}
		socket.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		if !limiter.Allow() {
			logger.Debug("Frame message rate limited")
			if h.opts.Metrics != nil {
				h.opts.Metrics.RecordFrameMessage("in", "rate_limited")
			}
			continue
		}

		if err := channel.Handle(ctx, data); err != nil {
			// Only a closed session or cancelled context get here.
			logger.Info("Frame session ended", zap.Error(err))
			return
		}
	}
}
