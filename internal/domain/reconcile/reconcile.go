package reconcile

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
)

// Entry describes one element the frame reports as rendered. Text and Src
// are nil when the frame did not report them.
type Entry struct {
	ID   string             `json:"id"`
	Type document.BlockType `json:"type,omitempty"`
	Text *string            `json:"text,omitempty"`
	Src  *string            `json:"src,omitempty"`
}

// Snapshot is the ordered, flattened report of rendered elements.
type Snapshot []Entry

// Mode selects how surviving blocks are placed in the merged tree.
type Mode string

const (
	ModeFlat         Mode = "flat"
	ModeHierarchical Mode = "hierarchical"
)

var ErrUnknownMode = errors.New("unknown reconcile mode")

// ParseMode converts a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFlat, "":
		return ModeFlat, nil
	case ModeHierarchical:
		return ModeHierarchical, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Result is the outcome of a reconciliation.
type Result struct {
	Doc         *document.Document
	Retained    int
	Synthesized int
	Dropped     int
	Skipped     int // entries ignored: empty id, "root", or repeated id
}

// Reconcile merges snap into doc and returns the merged document. The input
// is never modified; when the merge changes nothing, Result.Doc is doc itself.
func Reconcile(doc *document.Document, snap Snapshot, mode Mode) (Result, error) {
	if doc == nil || doc.Root == nil {
		return Result{}, document.ErrNoRoot
	}
	if mode == "" {
		mode = ModeFlat
	}
	if mode != ModeFlat && mode != ModeHierarchical {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	idx := index(doc.Root)
	entries, skipped := clean(snap)

	reported := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		reported[e.ID] = struct{}{}
	}

	res := Result{Skipped: skipped}
	merged := make(map[string]*document.Block, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if existing, ok := idx.blocks[e.ID]; ok {
			merged[e.ID] = backfill(existing, e)
			res.Retained++
		} else {
			merged[e.ID] = synthesize(e)
			res.Synthesized++
		}
		order = append(order, e.ID)
	}

	root := copyBlock(doc.Root)
	switch mode {
	case ModeFlat:
		root.Children = make([]*document.Block, 0, len(order))
		for _, id := range order {
			b := merged[id]
			b.Children = pruneReported(b.Children, reported)
			root.Children = append(root.Children, b)
		}
	case ModeHierarchical:
		children := make(map[string][]*document.Block)
		for _, id := range order {
			p := idx.survivingAncestor(id, reported)
			children[p] = append(children[p], merged[id])
		}
		for id, b := range merged {
			b.Children = nonNil(children[id])
		}
		root.Children = nonNil(children[document.RootID])
	}

	kept := ids(root)
	for id := range idx.blocks {
		if _, ok := kept[id]; !ok {
			res.Dropped++
		}
	}

	if document.Equal(doc.Root, root) {
		// Nothing moved or was backfilled; keep the caller's pointer.
		res.Doc = doc
		return res, nil
	}
	next := *doc
	next.Root = root
	res.Doc = &next
	return res, nil
}

type treeIndex struct {
	blocks map[string]*document.Block
	parent map[string]string
}

// index records every block and its parent. The first occurrence of an id in
// pre-order wins.
func index(root *document.Block) treeIndex {
	ti := treeIndex{
		blocks: make(map[string]*document.Block),
		parent: make(map[string]string),
	}
	var visit func(b *document.Block, parent string)
	visit = func(b *document.Block, parent string) {
		if b == nil {
			return
		}
		if _, seen := ti.blocks[b.ID]; !seen {
			ti.blocks[b.ID] = b
			ti.parent[b.ID] = parent
		}
		for _, ch := range b.Children {
			visit(ch, b.ID)
		}
	}
	visit(root, "")
	return ti
}

// ids returns every id in the tree under root, root included.
func ids(root *document.Block) map[string]struct{} {
	out := make(map[string]struct{})
	var visit func(b *document.Block)
	visit = func(b *document.Block) {
		if b == nil {
			return
		}
		out[b.ID] = struct{}{}
		for _, ch := range b.Children {
			visit(ch)
		}
	}
	visit(root)
	return out
}

// survivingAncestor walks up from id to the nearest ancestor the snapshot
// reports, falling back to root. Unknown ids belong to root.
func (ti treeIndex) survivingAncestor(id string, reported map[string]struct{}) string {
	p, ok := ti.parent[id]
	for ok && p != "" && p != document.RootID {
		if _, alive := reported[p]; alive {
			return p
		}
		p, ok = ti.parent[p]
	}
	return document.RootID
}

// clean drops entries that cannot be adopted without breaking id uniqueness.
func clean(snap Snapshot) ([]Entry, int) {
	out := make([]Entry, 0, len(snap))
	seen := make(map[string]struct{}, len(snap))
	skipped := 0
	for _, e := range snap {
		if e.ID == "" || e.ID == document.RootID {
			skipped++
			continue
		}
		if _, dup := seen[e.ID]; dup {
			skipped++
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, skipped
}

// backfill copies an existing block and fills only data that is missing.
func backfill(existing *document.Block, e Entry) *document.Block {
	b := copyBlock(existing)
	if b.Type == "" {
		b.Type = e.Type
		if b.Type == "" {
			b.Type = document.TypeContainer
		}
	}
	if b.Props == nil {
		b.Props = map[string]string{}
	}
	if b.Styles == nil {
		b.Styles = &document.Styles{}
	}
	if b.Styles.Inline == nil {
		b.Styles.Inline = map[string]string{}
	}

	switch b.Type {
	case document.TypeText:
		if _, set := b.Props[document.PropText]; !set && e.Text != nil {
			b.Props[document.PropText] = *e.Text
		}
	case document.TypeImage:
		if b.Props[document.PropSrc] == "" && e.Src != nil && *e.Src != "" {
			b.Props[document.PropSrc] = *e.Src
		}
	}
	return b
}

// synthesize builds a block for an id the document has never seen.
func synthesize(e Entry) *document.Block {
	typ := e.Type
	if typ == "" {
		typ = document.TypeContainer
	}
	props := map[string]string{}
	switch typ {
	case document.TypeText:
		props[document.PropText] = deref(e.Text)
	case document.TypeImage:
		props[document.PropSrc] = deref(e.Src)
		props[document.PropAlt] = ""
	}
	return &document.Block{
		ID:       e.ID,
		Type:     typ,
		Props:    props,
		Styles:   &document.Styles{Inline: map[string]string{}},
		Children: []*document.Block{},
	}
}

// pruneReported removes, at any depth, blocks that were adopted elsewhere so
// that no id appears twice. Unreported descendants stay where they are.
func pruneReported(children []*document.Block, reported map[string]struct{}) []*document.Block {
	if children == nil {
		return nil
	}
	out := make([]*document.Block, 0, len(children))
	for _, ch := range children {
		if _, adopted := reported[ch.ID]; adopted {
			continue
		}
		if hasReported(ch, reported) {
			c := copyBlock(ch)
			c.Children = pruneReported(ch.Children, reported)
			ch = c
		}
		out = append(out, ch)
	}
	return out
}

func hasReported(b *document.Block, reported map[string]struct{}) bool {
	for _, ch := range b.Children {
		if _, ok := reported[ch.ID]; ok || hasReported(ch, reported) {
			return true
		}
	}
	return false
}

// copyBlock copies b with fresh maps so the result can be edited freely.
// Children are copied as a slice of shared pointers.
func copyBlock(b *document.Block) *document.Block {
	c := *b
	if b.Props != nil {
		c.Props = make(map[string]string, len(b.Props))
		for k, v := range b.Props {
			c.Props[k] = v
		}
	}
	if b.Styles != nil {
		s := document.Styles{}
		if b.Styles.Inline != nil {
			s.Inline = make(map[string]string, len(b.Styles.Inline))
			for k, v := range b.Styles.Inline {
				s.Inline[k] = v
			}
		}
		c.Styles = &s
	}
	if b.Children != nil {
		c.Children = make([]*document.Block, len(b.Children))
		copy(c.Children, b.Children)
	}
	return &c
}

func nonNil(bs []*document.Block) []*document.Block {
	if bs == nil {
		return []*document.Block{}
	}
	return bs
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
