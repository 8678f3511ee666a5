package taxonomy

import (
	"fmt"
	"sort"
)

// NodeSpec is the raw configuration shape of one node before validation.
type NodeSpec struct {
	Code         string
	ParentCode   string
	Name         string
	DisplayOrder int
	Active       bool
	FastColumn   bool
}

// Forest is an ordered set of taxonomy trees indexed by node code.
type Forest struct {
	nodes  []Node
	byCode map[string]int
}

// BuildForest validates node specs and materializes paths. Parents must be
// declared before their children, which rules out cycles by construction.
func BuildForest(specs []NodeSpec) (*Forest, error) {
	f := &Forest{
		nodes:  make([]Node, 0, len(specs)),
		byCode: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if _, dup := f.byCode[s.Code]; dup {
			return nil, fmt.Errorf("duplicate node code %q", s.Code)
		}
		var parent *Node
		if s.ParentCode != "" {
			idx, ok := f.byCode[s.ParentCode]
			if !ok {
				return nil, fmt.Errorf("node %q: parent %q not declared before child", s.Code, s.ParentCode)
			}
			parent = &f.nodes[idx]
		}
		n, err := NewNode(s.Code, s.Name, s.DisplayOrder, s.Active, s.FastColumn, parent)
		if err != nil {
			return nil, err
		}
		f.byCode[n.Code()] = len(f.nodes)
		f.nodes = append(f.nodes, n)
	}
	return f, nil
}

// ReconstructForest creates a Forest from already-validated nodes.
func ReconstructForest(nodes []Node) *Forest {
	f := &Forest{
		nodes:  nodes,
		byCode: make(map[string]int, len(nodes)),
	}
	for i, n := range nodes {
		f.byCode[n.Code()] = i
	}
	return f
}

// Node returns the node with the given code.
func (f *Forest) Node(code string) (Node, bool) {
	idx, ok := f.byCode[code]
	if !ok {
		return Node{}, false
	}
	return f.nodes[idx], true
}

// Nodes returns all nodes in declaration order.
func (f *Forest) Nodes() []Node { return f.nodes }

// Active returns the active nodes in declaration order.
func (f *Forest) Active() []Node {
	out := make([]Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		if n.Active() {
			out = append(out, n)
		}
	}
	return out
}

// Ordered returns all nodes sorted for display: level, then display order,
// then code for determinism.
func (f *Forest) Ordered() []Node {
	out := make([]Node, len(f.nodes))
	copy(out, f.nodes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level() != out[j].Level() {
			return out[i].Level() < out[j].Level()
		}
		if out[i].DisplayOrder() != out[j].DisplayOrder() {
			return out[i].DisplayOrder() < out[j].DisplayOrder()
		}
		return out[i].Code() < out[j].Code()
	})
	return out
}

// WithCounts returns a copy of the forest with per-node item counts applied.
func (f *Forest) WithCounts(counts map[string]int) *Forest {
	nodes := make([]Node, len(f.nodes))
	for i, n := range f.nodes {
		nodes[i] = n.WithItemCount(counts[n.Code()])
	}
	return ReconstructForest(nodes)
}
