package taxonomy

import "fmt"

// Node is one taxonomy tree node. Nodes are created root-first, so a parent
// always exists before its children and the materialized path can never cycle.
type Node struct {
	code         string
	parentCode   string
	level        int
	name         string
	displayOrder int
	active       bool
	path         []string
	itemCount    int
	fastColumn   bool
}

// NewNode validates and creates a Node under parent (nil for a root).
// The node's path is the parent's path plus its own code.
func NewNode(code, name string, displayOrder int, active, fastColumn bool, parent *Node) (Node, error) {
	if code == "" {
		return Node{}, fmt.Errorf("node code is required")
	}
	if name == "" {
		return Node{}, fmt.Errorf("node %q: name is required", code)
	}

	n := Node{
		code:         code,
		name:         name,
		displayOrder: displayOrder,
		active:       active,
		fastColumn:   fastColumn,
	}
	if parent == nil {
		n.level = 0
		n.path = []string{code}
		return n, nil
	}

	n.parentCode = parent.code
	n.level = parent.level + 1
	n.path = make([]string, 0, len(parent.path)+1)
	n.path = append(n.path, parent.path...)
	n.path = append(n.path, code)
	return n, nil
}

// Reconstruct creates a Node without validation (hydration from a snapshot).
func Reconstruct(
	code, parentCode string, level int, name string,
	displayOrder int, active bool, path []string, itemCount int, fastColumn bool,
) Node {
	return Node{
		code:         code,
		parentCode:   parentCode,
		level:        level,
		name:         name,
		displayOrder: displayOrder,
		active:       active,
		path:         path,
		itemCount:    itemCount,
		fastColumn:   fastColumn,
	}
}

// Code returns the unique node code.
func (n Node) Code() string { return n.code }

// ParentCode returns the parent code, empty for roots.
func (n Node) ParentCode() string { return n.parentCode }

// Level returns the depth level, 0 for roots.
func (n Node) Level() int { return n.level }

// Name returns the display name.
func (n Node) Name() string { return n.name }

// DisplayOrder returns the sibling ordering key.
func (n Node) DisplayOrder() int { return n.displayOrder }

// Active reports whether the node is active.
func (n Node) Active() bool { return n.active }

// Path returns the full ancestor path including the node itself.
func (n Node) Path() []string { return n.path }

// ItemCount returns the precomputed item count.
func (n Node) ItemCount() int { return n.itemCount }

// FastColumn reports whether the node has a dedicated boolean column
// on the index row.
func (n Node) FastColumn() bool { return n.fastColumn }

// WithItemCount returns a copy with the item count set (rebuild aggregation).
func (n Node) WithItemCount(count int) Node {
	n.itemCount = count
	return n
}
