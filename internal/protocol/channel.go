package protocol

import (
	"context"
	"errors"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
)

// MaxTextSize bounds the text an inline edit may commit.
const MaxTextSize = 64 << 10

// Frame delivers host messages to the rendered frame. Send must not block on
// the frame; delivery is best effort.
type Frame interface {
	Send(Message) error
}

// Session is the part of an editor session the channel drives.
type Session interface {
	State() editor.State
	Subscribe() (<-chan editor.State, func())
	Select(ctx context.Context, id string) (editor.State, error)
	PatchText(ctx context.Context, id, text string) (editor.State, error)
	SetRect(ctx context.Context, id string, r editor.Rect) (editor.State, error)
	MergeSnapshot(ctx context.Context, snap reconcile.Snapshot, mode reconcile.Mode) (editor.State, error)
}

// Options configures a Channel.
type Options struct {
	Mode    reconcile.Mode
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Channel connects one frame to one editor session.
type Channel struct {
	session Session
	frame   Frame
	mode    reconcile.Mode
	logger  *logging.Logger
	metrics *monitoring.Metrics

	// clicked is the id whose rect a CLICKED already requested.
	clicked atomic.Pointer[string]
}

// NewChannel creates a channel between session and frame.
func NewChannel(session Session, frame Frame, opts Options) *Channel {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = reconcile.ModeFlat
	}
	return &Channel{
		session: session,
		frame:   frame,
		mode:    opts.Mode,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Mount pushes the current document and asks the frame for its blocks. It is
// called when the host attaches to the frame and again on every READY, since
// neither side knows which happened first.
func (c *Channel) Mount() {
	c.send(Hydrate(c.session.State().Doc))
	c.send(ListBlocks())
}

// Run keeps the frame in step with the session until ctx is done. A new
// document is re-hydrated; a new document or a new selection (including one
// made outside the frame) asks for the selection rect again.
func (c *Channel) Run(ctx context.Context) {
	updates, cancel := c.session.Subscribe()
	defer cancel()

	initial := c.session.State()
	lastDoc, lastSel := initial.Doc, initial.SelectedID
	c.Mount()

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			docChanged := st.Doc != lastDoc
			selChanged := st.SelectedID != lastSel
			lastDoc, lastSel = st.Doc, st.SelectedID

			if docChanged {
				c.send(Hydrate(st.Doc))
			}
			if !st.HasSelection() {
				continue
			}
			if selChanged && !docChanged {
				if p := c.clicked.Swap(nil); p != nil && *p == st.SelectedID {
					continue
				}
			}
			if docChanged || selChanged {
				c.send(GetRect(st.SelectedID))
			}
		}
	}
}

// Handle decodes and handles one raw frame message. Unknown and malformed
// messages are dropped without error.
func (c *Channel) Handle(ctx context.Context, data []byte) error {
	m, err := Decode(data)
	if err != nil {
		c.logger.Debug("Dropping frame message", zap.Error(err))
		if c.metrics != nil {
			c.metrics.RecordFrameMessage("in", "invalid")
		}
		return nil
	}
	return c.HandleMessage(ctx, m)
}

// HandleMessage applies a decoded frame message. The only errors returned
// come from the session (closed, context cancelled).
func (c *Channel) HandleMessage(ctx context.Context, m Message) error {
	if c.metrics != nil {
		c.metrics.RecordFrameMessage("in", string(m.Type))
	}

	switch m.Type {
	case KindReady:
		c.Mount()
		return nil

	case KindBlocks:
		// The re-hydrate is sent by Run once the merged document lands.
		_, err := c.session.MergeSnapshot(ctx, m.Blocks, c.mode)
		if errors.Is(err, reconcile.ErrUnknownMode) || errors.Is(err, document.ErrNoRoot) {
			c.logger.Warn("Snapshot not merged", zap.Error(err))
			return nil
		}
		return err

	case KindClicked:
		id := m.ID
		c.clicked.Store(&id)
		if _, err := c.session.Select(ctx, m.ID); err != nil {
			return err
		}
		c.send(GetRect(m.ID))
		return nil

	case KindRect:
		if m.Rect == nil {
			return nil
		}
		// Stale replies are discarded by the session.
		_, err := c.session.SetRect(ctx, m.ID, *m.Rect)
		return err

	case KindLayoutChanged:
		if st := c.session.State(); st.HasSelection() {
			c.send(GetRect(st.SelectedID))
		}
		return nil

	case KindInlineEditCommit:
		if m.Text == nil || !utf8.ValidString(*m.Text) || len(*m.Text) > MaxTextSize {
			return nil
		}
		// props.text is plain data; the frame renders it as text.
		_, err := c.session.PatchText(ctx, m.ID, *m.Text)
		return err

	default:
		c.logger.Debug("Ignoring frame message", zap.String("type", string(m.Type)))
		return nil
	}
}

func (c *Channel) send(m Message) {
	if err := c.frame.Send(m); err != nil {
		c.logger.Debug("Frame send failed",
			zap.String("type", string(m.Type)),
			zap.Error(err),
		)
		return
	}
	if c.metrics != nil {
		c.metrics.RecordFrameMessage("out", string(m.Type))
	}
}
