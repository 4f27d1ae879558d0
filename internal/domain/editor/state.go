package editor

import (
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
)

// SaveStatus is the human-readable persistence status shown in the sidebar.
type SaveStatus string

const (
	StatusSaved      SaveStatus = "Saved"
	StatusUnsaved    SaveStatus = "Unsaved changes"
	StatusSaveFailed SaveStatus = "Save failed"
)

// Rect is the on-screen bounding box of the selected element, as reported
// by the frame.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// State is a snapshot of an editing session. The document it references is
// immutable.
type State struct {
	Slug       string             `json:"slug"`
	Doc        *document.Document `json:"doc"`
	SelectedID string             `json:"selected_id,omitempty"`
	Rect       *Rect              `json:"rect,omitempty"`
	Dirty      bool               `json:"dirty"`
	SaveStatus SaveStatus         `json:"save_status"`
	SaveError  string             `json:"save_error,omitempty"`
	Revision   uint64             `json:"revision"`
}

// NewState returns the clean initial state for a freshly loaded document.
func NewState(slug string, doc *document.Document) State {
	return State{
		Slug:       slug,
		Doc:        doc,
		SaveStatus: StatusSaved,
	}
}

// HasSelection reports whether a block is selected.
func (s State) HasSelection() bool {
	return s.SelectedID != ""
}

// Action is a state transition.
type Action interface {
	apply(State) State
	Name() string
}

// Reduce applies a to s and returns the next state. Mutating actions whose
// underlying document operation is a no-op return s unchanged.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}

// Select changes the selection. An empty ID clears it.
type Select struct {
	ID string
}

func (Select) Name() string { return "select" }

func (a Select) apply(s State) State {
	if a.ID == s.SelectedID {
		return s
	}
	s.SelectedID = a.ID
	s.Rect = nil
	return s
}

// SetDoc replaces the whole document, e.g. after reconciliation.
type SetDoc struct {
	Doc *document.Document
}

func (SetDoc) Name() string { return "set_doc" }

func (a SetDoc) apply(s State) State {
	if a.Doc == nil {
		return s
	}
	return withDoc(s, a.Doc)
}

// MergeSnapshot reconciles a frame snapshot into the current document.
// Running it inside the reducer keeps the merge atomic with respect to
// concurrent edits. Report, when set, receives the reconcile outcome.
type MergeSnapshot struct {
	Snapshot reconcile.Snapshot
	Mode     reconcile.Mode
	Report   func(reconcile.Result, error)
}

func (MergeSnapshot) Name() string { return "merge_snapshot" }

func (a MergeSnapshot) apply(s State) State {
	res, err := reconcile.Reconcile(s.Doc, a.Snapshot, a.Mode)
	if a.Report != nil {
		a.Report(res, err)
	}
	if err != nil {
		return s
	}
	return withDoc(s, res.Doc)
}

// PatchStyles sets or removes inline styles of a block.
type PatchStyles struct {
	ID    string
	Delta map[string]string
}

func (PatchStyles) Name() string { return "patch_styles" }

func (a PatchStyles) apply(s State) State {
	return withDoc(s, document.PatchStyles(s.Doc, a.ID, a.Delta))
}

// PatchText sets the text of a block.
type PatchText struct {
	ID   string
	Text string
}

func (PatchText) Name() string { return "patch_text" }

func (a PatchText) apply(s State) State {
	return withDoc(s, document.PatchText(s.Doc, a.ID, a.Text))
}

// MoveSelected moves the selected block among its siblings.
type MoveSelected struct {
	Direction document.Direction
}

func (MoveSelected) Name() string { return "move_selected" }

func (a MoveSelected) apply(s State) State {
	if !s.HasSelection() {
		return s
	}
	return withDoc(s, document.MoveSibling(s.Doc, s.SelectedID, a.Direction))
}

// SetRect records the overlay geometry for id. Replies for an id that is no
// longer selected are stale and ignored.
type SetRect struct {
	ID   string
	Rect Rect
}

func (SetRect) Name() string { return "set_rect" }

func (a SetRect) apply(s State) State {
	if !s.HasSelection() || a.ID != s.SelectedID {
		return s
	}
	r := a.Rect
	s.Rect = &r
	return s
}

// Saved marks the session clean. Only the persistence loop produces it.
type Saved struct{}

func (Saved) Name() string { return "saved" }
func (Saved) internal()    {}

func (Saved) apply(s State) State {
	s.Dirty = false
	s.SaveStatus = StatusSaved
	s.SaveError = ""
	return s
}

// SaveFailed keeps the session dirty and surfaces the failure.
type SaveFailed struct {
	Err error
}

func (SaveFailed) Name() string { return "save_failed" }
func (SaveFailed) internal()    {}

func (a SaveFailed) apply(s State) State {
	s.SaveStatus = StatusSaveFailed
	if a.Err != nil {
		s.SaveError = a.Err.Error()
	}
	return s
}

// internalAction marks actions reserved for the session itself.
type internalAction interface {
	internal()
}

func withDoc(s State, doc *document.Document) State {
	if doc == s.Doc {
		return s
	}
	s.Doc = doc
	s.Dirty = true
	s.SaveStatus = StatusUnsaved
	s.SaveError = ""
	s.Revision++
	return s
}
