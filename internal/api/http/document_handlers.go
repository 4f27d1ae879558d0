package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/importer"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/resilience"
)

// ListDocuments lists stored slugs, optionally filtered by a glob in "match"
func (h *Handlers) ListDocuments(c *gin.Context) {
	slugs, err := h.documents.List(c.Request.Context(), c.Query("match"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if slugs == nil {
		slugs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": slugs, "count": len(slugs)})
}

// ImportDocument discovers the blocks of the live page and merges them into
// the session document
func (h *Handlers) ImportDocument(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "error": "importer is not configured"})
		return
	}

	sess := h.session(c)
	if sess == nil {
		return
	}
	ctx := c.Request.Context()

	snap, err := h.importer.Import(ctx, sess.Slug())
	if err != nil {
		if isUpstreamError(err) {
			h.logger.Warn("Import failed", zap.String("slug", sess.Slug()), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}

	before := sess.State().Doc
	st, err := sess.MergeSnapshot(ctx, snap, h.mode)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"blocks":  len(snap),
		"changed": st.Doc != before,
		"state":   stateResponse(sess, st),
	})
}

// isUpstreamError reports errors that come from reaching the site rather
// than from the page content or the breaker.
func isUpstreamError(err error) bool {
	var se *importer.StatusError
	if errors.As(err, &se) {
		return true
	}
	return !errors.Is(err, importer.ErrNotHTML) &&
		!errors.Is(err, importer.ErrTooLarge) &&
		!errors.Is(err, resilience.ErrCircuitOpen) &&
		!errors.Is(err, resilience.ErrTooManyRequests)
}
