package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
)

// StateResponse is the panel view of a session.
type StateResponse struct {
	Session  string                `json:"session"`
	State    editor.State          `json:"state"`
	Selected *document.Block       `json:"selected,omitempty"`
	Siblings *document.SiblingInfo `json:"siblings,omitempty"`
}

func stateResponse(sess *editor.Session, st editor.State) StateResponse {
	resp := StateResponse{Session: sess.ID().String(), State: st}
	if !st.HasSelection() || st.Doc == nil {
		return resp
	}
	if b, ok := document.GetBlockByID(st.Doc.Root, st.SelectedID); ok {
		resp.Selected = b
	}
	if info, ok := document.Siblings(st.Doc.Root, st.SelectedID); ok {
		resp.Siblings = &info
	}
	return resp
}

// GetState returns the current session state
func (h *Handlers) GetState(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	c.JSON(http.StatusOK, stateResponse(sess, sess.State()))
}

// SelectRequest selects a block. An empty id clears the selection.
type SelectRequest struct {
	ID string `json:"id"`
}

// Select changes the selection
func (h *Handlers) Select(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sess := h.session(c)
	if sess == nil {
		return
	}
	st, err := sess.Select(c.Request.Context(), req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse(sess, st))
}

// StylesRequest patches inline styles. Pixels holds numeric inputs of the
// style inspector; zero removes the property.
type StylesRequest struct {
	ID     string            `json:"id" binding:"required"`
	Styles map[string]string `json:"styles"`
	Pixels map[string]int    `json:"pixels"`
}

func (r StylesRequest) delta() map[string]string {
	delta := make(map[string]string, len(r.Styles)+len(r.Pixels))
	for k, v := range r.Styles {
		delta[k] = v
	}
	for k, n := range r.Pixels {
		delta[k] = document.Pixels(n)
	}
	return delta
}

// PatchStyles sets or removes inline styles of a block
func (h *Handlers) PatchStyles(c *gin.Context) {
	var req StylesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	delta := req.delta()
	if len(delta) == 0 {
		badRequest(c, errors.New("styles or pixels required"))
		return
	}

	sess := h.session(c)
	if sess == nil {
		return
	}
	st, err := sess.PatchStyles(c.Request.Context(), req.ID, delta)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse(sess, st))
}

// TextRequest replaces the text of a block.
type TextRequest struct {
	ID   string  `json:"id" binding:"required"`
	Text *string `json:"text" binding:"required"`
}

// PatchText sets the text of a block
func (h *Handlers) PatchText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sess := h.session(c)
	if sess == nil {
		return
	}
	st, err := sess.PatchText(c.Request.Context(), req.ID, *req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse(sess, st))
}

// MoveRequest moves the selected block.
type MoveRequest struct {
	Direction document.Direction `json:"direction" binding:"required"`
}

// Move moves the selected block up or down among its siblings
func (h *Handlers) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Direction.Valid() {
		badRequest(c, errors.New(`direction must be "up" or "down"`))
		return
	}

	sess := h.session(c)
	if sess == nil {
		return
	}
	st, err := sess.MoveSelected(c.Request.Context(), req.Direction)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse(sess, st))
}
