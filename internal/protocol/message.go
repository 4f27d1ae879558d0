package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
)

// Kind tags a message.
type Kind string

const (
	KindReady            Kind = "READY"
	KindHydrate          Kind = "HYDRATE"
	KindListBlocks       Kind = "LIST_BLOCKS"
	KindBlocks           Kind = "BLOCKS"
	KindClicked          Kind = "CLICKED"
	KindGetRect          Kind = "GET_RECT"
	KindRect             Kind = "RECT"
	KindLayoutChanged    Kind = "LAYOUT_CHANGED"
	KindInlineEditCommit Kind = "INLINE_EDIT_COMMIT"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrMalformed   = errors.New("malformed message")
)

// FromFrame reports whether k is sent by the frame.
func (k Kind) FromFrame() bool {
	switch k {
	case KindReady, KindBlocks, KindClicked, KindRect, KindLayoutChanged, KindInlineEditCommit:
		return true
	}
	return false
}

// FromHost reports whether k is sent by the host.
func (k Kind) FromHost() bool {
	switch k {
	case KindHydrate, KindListBlocks, KindGetRect:
		return true
	}
	return false
}

// Message is the envelope for every kind. Only the fields relevant to Type
// are set.
type Message struct {
	Type   Kind               `json:"type"`
	ID     string             `json:"id,omitempty"`
	Doc    *document.Document `json:"doc,omitempty"`
	Blocks reconcile.Snapshot `json:"blocks,omitempty"`
	Rect   *editor.Rect       `json:"rect,omitempty"`
	Text   *string            `json:"text,omitempty"`
}

// Hydrate builds a HYDRATE message.
func Hydrate(doc *document.Document) Message {
	return Message{Type: KindHydrate, Doc: doc}
}

// ListBlocks builds a LIST_BLOCKS message.
func ListBlocks() Message {
	return Message{Type: KindListBlocks}
}

// GetRect builds a GET_RECT message.
func GetRect(id string) Message {
	return Message{Type: KindGetRect, ID: id}
}

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	if !m.Type.FromHost() && !m.Type.FromFrame() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, m.Type)
	}
	data, err := sonic.ConfigStd.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return data, nil
}

// Decode parses a message sent by the frame. Unknown or missing kinds yield
// ErrUnknownKind; payloads that lack the fields their kind requires yield
// ErrMalformed. Callers drop both.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := sonic.ConfigStd.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !m.Type.FromFrame() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, m.Type)
	}
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (m Message) validate() error {
	switch m.Type {
	case KindBlocks:
		if m.Blocks == nil {
			return fmt.Errorf("%w: %s without blocks", ErrMalformed, m.Type)
		}
	case KindClicked:
		if m.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrMalformed, m.Type)
		}
	case KindRect:
		if m.ID == "" || m.Rect == nil {
			return fmt.Errorf("%w: %s without id or rect", ErrMalformed, m.Type)
		}
	case KindInlineEditCommit:
		if m.ID == "" || m.Text == nil {
			return fmt.Errorf("%w: %s without id or text", ErrMalformed, m.Type)
		}
	}
	return nil
}
