package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/api/middleware"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/session"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/importer"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/storage"
)

// DocumentLister lists stored slugs.
type DocumentLister interface {
	List(ctx context.Context, pattern string) ([]string, error)
}

// PageImporter discovers the blocks a page renders.
type PageImporter interface {
	Import(ctx context.Context, slug string) (reconcile.Snapshot, error)
}

// Deps holds the collaborators of the handlers. Importer and Metrics are
// optional.
type Deps struct {
	Sessions    *session.Manager
	Documents   DocumentLister
	Importer    PageImporter
	Metrics     *monitoring.Metrics
	Logger      *logging.Logger
	DefaultSlug string
	Mode        reconcile.Mode
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions    *session.Manager
	documents   DocumentLister
	importer    PageImporter
	metrics     *monitoring.Metrics
	logger      *logging.Logger
	defaultSlug string
	mode        reconcile.Mode
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.DefaultSlug == "" {
		deps.DefaultSlug = "/demo"
	}
	if deps.Mode == "" {
		deps.Mode = reconcile.ModeFlat
	}
	return &Handlers{
		sessions:    deps.Sessions,
		documents:   deps.Documents,
		importer:    deps.Importer,
		metrics:     deps.Metrics,
		logger:      deps.Logger.Named("http"),
		defaultSlug: deps.DefaultSlug,
		mode:        deps.Mode,
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/metrics", h.Metrics)
	r.GET("/metrics/summary", h.MetricsSummary)

	editorGroup := r.Group("/editor")
	editorGroup.GET("/state", h.GetState)
	editorGroup.POST("/select", h.Select)
	editorGroup.POST("/styles", h.PatchStyles)
	editorGroup.POST("/text", h.PatchText)
	editorGroup.POST("/move", h.Move)

	r.GET("/documents", h.ListDocuments)
	r.POST("/documents/import", h.ImportDocument)

	r.GET("/sessions", h.ListSessions)
	r.DELETE("/sessions", h.CloseSession)
}

// Root handles the basic liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Visual Editor (Go)",
		"version": "0.1.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": len(h.sessions.List()),
		"importer": gin.H{"enabled": h.importer != nil},
	})
}

// ListSessions lists the open editing sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessions.List()})
}

// CloseSession stops the session for the slug query parameter, flushing it
// when configured to. Connected frames are dropped.
func (h *Handlers) CloseSession(c *gin.Context) {
	slug := c.Query("slug")
	if slug == "" {
		badRequest(c, errors.New("slug is required"))
		return
	}
	_, open := h.sessions.Lookup(slug)
	if err := h.sessions.Close(c.Request.Context(), slug); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "closed": open})
}

// session resolves the session named by the slug query parameter. It writes
// the error response itself and returns nil on failure.
func (h *Handlers) session(c *gin.Context) *editor.Session {
	slug := c.DefaultQuery("slug", h.defaultSlug)
	sess, err := h.sessions.Get(c.Request.Context(), slug)
	if err != nil {
		h.fail(c, err)
		return nil
	}
	return sess
}

// fail maps domain errors to status codes.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var se *importer.StatusError

	switch {
	case errors.Is(err, session.ErrInvalidSlug),
		errors.Is(err, storage.ErrInvalidPattern):
		status = http.StatusBadRequest
	case errors.Is(err, importer.ErrNotHTML),
		errors.Is(err, importer.ErrTooLarge):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrManagerClosed),
		errors.Is(err, editor.ErrSessionClosed),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests):
		status = http.StatusServiceUnavailable
	case errors.As(err, &se):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}
