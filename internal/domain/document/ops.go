package document

// Direction is the way MoveSibling moves a block among its siblings.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// FindParentAndIndex returns the parent of the first block with the given id
// (pre-order, children in array order) and its index among the parent's
// children. The root has no parent and is never found.
func FindParentAndIndex(root *Block, id string) (*Block, int, bool) {
	if root == nil {
		return nil, -1, false
	}
	for i, ch := range root.Children {
		if ch.ID == id {
			return root, i, true
		}
		if p, idx, ok := FindParentAndIndex(ch, id); ok {
			return p, idx, true
		}
	}
	return nil, -1, false
}

// GetBlockByID returns the first block with the given id in pre-order.
func GetBlockByID(root *Block, id string) (*Block, bool) {
	var found *Block
	Walk(root, func(b *Block) bool {
		if b.ID == id {
			found = b
			return false
		}
		return true
	})
	return found, found != nil
}

// SiblingInfo describes a block's position among its siblings.
type SiblingInfo struct {
	Index    int  `json:"index"`
	Count    int  `json:"count"`
	AtTop    bool `json:"at_top"`
	AtBottom bool `json:"at_bottom"`
}

// Siblings reports where id sits among its siblings, used by layer controls
// to disable moves that would be no-ops.
func Siblings(root *Block, id string) (SiblingInfo, bool) {
	parent, idx, ok := FindParentAndIndex(root, id)
	if !ok {
		return SiblingInfo{Index: -1}, false
	}
	n := len(parent.Children)
	return SiblingInfo{
		Index:    idx,
		Count:    n,
		AtTop:    idx == 0,
		AtBottom: idx == n-1,
	}, true
}

// MoveSibling swaps the block with its previous (Up) or next (Down) sibling.
// It returns doc unchanged when the id is missing, the direction is unknown,
// or the move would leave the parent's bounds. Blocks never change parent.
func MoveSibling(doc *Document, id string, dir Direction) *Document {
	if doc == nil || id == "" || !dir.Valid() {
		return doc
	}
	parent, i, ok := FindParentAndIndex(doc.Root, id)
	if !ok {
		return doc
	}
	j := i + 1
	if dir == Up {
		j = i - 1
	}
	if j < 0 || j >= len(parent.Children) {
		return doc
	}

	return replaceBlock(doc, func(b *Block) bool { return b == parent }, func(b *Block) *Block {
		c := b.shallowCopy()
		c.Children[i], c.Children[j] = c.Children[j], c.Children[i]
		return c
	})
}

// PatchStyles merges delta into the block's inline styles. An empty value
// removes the key; keys absent from delta are untouched. It returns doc
// unchanged when the id is missing or the delta changes nothing.
func PatchStyles(doc *Document, id string, delta map[string]string) *Document {
	if doc == nil || len(delta) == 0 {
		return doc
	}
	target, ok := GetBlockByID(doc.Root, id)
	if !ok || !stylesChange(target, delta) {
		return doc
	}

	return replaceBlock(doc, func(b *Block) bool { return b == target }, func(b *Block) *Block {
		c := b.shallowCopy()
		if c.Styles == nil {
			c.Styles = &Styles{}
		}
		if c.Styles.Inline == nil {
			c.Styles.Inline = make(map[string]string, len(delta))
		}
		for k, v := range delta {
			if v == "" {
				delete(c.Styles.Inline, k)
			} else {
				c.Styles.Inline[k] = v
			}
		}
		return c
	})
}

func stylesChange(b *Block, delta map[string]string) bool {
	var inline map[string]string
	if b.Styles != nil {
		inline = b.Styles.Inline
	}
	for k, v := range delta {
		cur, has := inline[k]
		if v == "" && has {
			return true
		}
		if v != "" && (!has || cur != v) {
			return true
		}
	}
	return false
}

// PatchText sets props.text on the block, creating props if needed. It
// returns doc unchanged when the id is missing or the text is already set to
// the same value.
func PatchText(doc *Document, id, text string) *Document {
	if doc == nil {
		return doc
	}
	target, ok := GetBlockByID(doc.Root, id)
	if !ok {
		return doc
	}
	if cur, set := target.Text(); set && cur == text {
		return doc
	}

	return replaceBlock(doc, func(b *Block) bool { return b == target }, func(b *Block) *Block {
		c := b.shallowCopy()
		if c.Props == nil {
			c.Props = make(map[string]string, 1)
		}
		c.Props[PropText] = text
		return c
	})
}

// replaceBlock returns a new document in which the first block matching
// match (pre-order) is replaced by edit's result. Only the path from the root
// to that block is copied.
func replaceBlock(doc *Document, match func(*Block) bool, edit func(*Block) *Block) *Document {
	root, ok := replaceFirst(doc.Root, match, edit)
	if !ok {
		return doc
	}
	next := *doc
	next.Root = root
	return &next
}

func replaceFirst(b *Block, match func(*Block) bool, edit func(*Block) *Block) (*Block, bool) {
	if b == nil {
		return nil, false
	}
	if match(b) {
		return edit(b), true
	}
	for i, ch := range b.Children {
		if nb, ok := replaceFirst(ch, match, edit); ok {
			c := b.shallowCopy()
			c.Children[i] = nb
			return c, true
		}
	}
	return b, false
}
