package document

import (
	"errors"
	"fmt"
)

// RootID is the id of the single root container of every document.
const RootID = "root"

// BlockType identifies the variant of a block.
type BlockType string

const (
	TypeContainer BlockType = "container"
	TypeText      BlockType = "text"
	TypeImage     BlockType = "image"
)

// Well-known prop keys.
const (
	PropText = "text"
	PropSrc  = "src"
	PropAlt  = "alt"
)

// Styles holds the presentation of a block.
type Styles struct {
	// Inline maps CSS property names to values. A missing key means
	// "inherit/default"; empty values are never stored.
	Inline map[string]string `json:"inline"`
}

// Block is a node in the document tree.
type Block struct {
	ID       string            `json:"id"`
	Type     BlockType         `json:"type,omitempty"`
	Props    map[string]string `json:"props,omitempty"`
	Styles   *Styles           `json:"styles,omitempty"`
	Children []*Block          `json:"children"`
}

// Document is one editable page.
type Document struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Root *Block `json:"root"`
}

var (
	ErrNoRoot      = errors.New("document has no root block")
	ErrBadRoot     = errors.New("root block must be a container with id \"root\"")
	ErrDuplicateID = errors.New("duplicate block id")
	ErrEmptyID     = errors.New("block id is empty")
)

// Text returns props.text and whether it is set.
func (b *Block) Text() (string, bool) {
	if b == nil || b.Props == nil {
		return "", false
	}
	v, ok := b.Props[PropText]
	return v, ok
}

// Style returns an inline style value, or "" when unset.
func (b *Block) Style(key string) string {
	if b == nil || b.Styles == nil {
		return ""
	}
	return b.Styles.Inline[key]
}

// shallowCopy copies b, duplicating its maps and children slice so the copy
// can be modified without touching b.
func (b *Block) shallowCopy() *Block {
	c := *b
	if b.Props != nil {
		c.Props = make(map[string]string, len(b.Props))
		for k, v := range b.Props {
			c.Props[k] = v
		}
	}
	if b.Styles != nil {
		s := Styles{}
		if b.Styles.Inline != nil {
			s.Inline = make(map[string]string, len(b.Styles.Inline))
			for k, v := range b.Styles.Inline {
				s.Inline[k] = v
			}
		}
		c.Styles = &s
	}
	if b.Children != nil {
		c.Children = make([]*Block, len(b.Children))
		copy(c.Children, b.Children)
	}
	return &c
}

// Clone returns a deep copy of the block and its subtree.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := b.shallowCopy()
	for i, ch := range c.Children {
		c.Children[i] = ch.Clone()
	}
	return c
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Root = d.Root.Clone()
	return &c
}

// Walk visits every block in pre-order, children in array order. Returning
// false from fn stops the walk.
func Walk(root *Block, fn func(b *Block) bool) {
	walk(root, fn)
}

func walk(b *Block, fn func(b *Block) bool) bool {
	if b == nil {
		return true
	}
	if !fn(b) {
		return false
	}
	for _, ch := range b.Children {
		if !walk(ch, fn) {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants: a container root with id
// "root", and non-empty ids unique across the tree.
func (d *Document) Validate() error {
	if d == nil || d.Root == nil {
		return ErrNoRoot
	}
	if d.Root.ID != RootID || d.Root.Type != TypeContainer {
		return ErrBadRoot
	}

	seen := make(map[string]struct{})
	var err error
	Walk(d.Root, func(b *Block) bool {
		if b.ID == "" {
			err = ErrEmptyID
			return false
		}
		if _, dup := seen[b.ID]; dup {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
			return false
		}
		seen[b.ID] = struct{}{}
		return true
	})
	return err
}

// Equal reports whether two subtrees hold the same ids, types, props, styles
// and child order. Nil and empty maps or slices compare equal.
func Equal(a, b *Block) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.ID != b.ID || a.Type != b.Type || len(a.Children) != len(b.Children) {
		return false
	}
	if !sameMap(a.Props, b.Props) || !sameMap(inline(a), inline(b)) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func inline(b *Block) map[string]string {
	if b.Styles == nil {
		return nil
	}
	return b.Styles.Inline
}

func sameMap(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
