package collision

import "fmt"

const (
	// octreeLeafFlag marks a node value as a leaf pointer.
	octreeLeafFlag = 0x8000_0000
	// octreeLeafSkip is added to a leaf pointer: the stored offset addresses
	// the u16 slot before the first real entry.
	octreeLeafSkip = 2
	octreeChildren = 8

	DefaultMaxOctreeDepth      = 16
	DefaultMaxOctreeNodes      = 1 << 20
	DefaultMaxOctreeReferences = 1 << 22
)

// OctreeLimits bounds octree decoding on corrupt or adversarial input.
type OctreeLimits struct {
	MaxDepth      int // deepest allowed node, root is depth 0
	MaxNodes      int // total branches + leaves
	MaxReferences int // total prism indices across all leaves, shared lists counted per leaf
}

// DefaultOctreeLimits returns limits comfortably above anything the game ships.
func DefaultOctreeLimits() OctreeLimits {
	return OctreeLimits{
		MaxDepth:      DefaultMaxOctreeDepth,
		MaxNodes:      DefaultMaxOctreeNodes,
		MaxReferences: DefaultMaxOctreeReferences,
	}
}

func (l OctreeLimits) withDefaults() OctreeLimits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxOctreeDepth
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = DefaultMaxOctreeNodes
	}
	if l.MaxReferences <= 0 {
		l.MaxReferences = DefaultMaxOctreeReferences
	}
	return l
}

// OctreeNode is a node of the KCL spatial index. A branch has Children
// (8 below the root); a leaf has the 1-based prism indices of its cell.
// Leaves pointing at the same list share one Indices slice; treat it as
// read-only.
type OctreeNode struct {
	Offset   uint32 // absolute offset of the branch base or first leaf entry
	Children []*OctreeNode
	Indices  []uint16
	leaf     bool
}

// IsLeaf reports whether the node is a leaf.
func (n *OctreeNode) IsLeaf() bool {
	return n.leaf
}

// HighestIndex returns the largest prism index referenced by any leaf,
// or 0 for an empty tree.
func (n *OctreeNode) HighestIndex() int {
	highest := 0
	n.Leaves(func(leaf *OctreeNode) {
		for _, idx := range leaf.Indices {
			if int(idx) > highest {
				highest = int(idx)
			}
		}
	})
	return highest
}

// Leaves calls fn for every leaf in depth-first child order.
func (n *OctreeNode) Leaves(fn func(leaf *OctreeNode)) {
	if n == nil {
		return
	}
	if n.leaf {
		fn(n)
		return
	}
	for _, child := range n.Children {
		child.Leaves(fn)
	}
}

// OctreeStats summarizes the shape of a decoded octree.
type OctreeStats struct {
	Branches    int
	Leaves      int
	EmptyLeaves int // leaves whose first slot was already the sentinel
	References  int // total prism references across leaves
	Depth       int
}

// Stats walks the tree and reports its shape.
func (n *OctreeNode) Stats() OctreeStats {
	var s OctreeStats
	n.stats(&s, 0)
	return s
}

func (n *OctreeNode) stats(s *OctreeStats, depth int) {
	if n == nil {
		return
	}
	if depth > s.Depth {
		s.Depth = depth
	}
	if n.leaf {
		s.Leaves++
		s.References += len(n.Indices)
		if len(n.Indices) == 0 {
			s.EmptyLeaves++
		}
		return
	}
	s.Branches++
	for _, child := range n.Children {
		child.stats(s, depth+1)
	}
}

// rootChildCount is the number of top-level grid cells described by the
// header's area masks and block shifts.
func rootChildCount(h *KCLHeader) uint32 {
	s := h.BlockShift
	return ((^h.AreaZMask >> s) << h.AreaXYBlocksShift) |
		((^h.AreaYMask >> s) << h.AreaXBlocksShift) |
		(^h.AreaXMask >> s)
}

type octreeDecoder struct {
	c      *cursor
	limits OctreeLimits
	nodes  int
	refs   int
	lists  map[uint32][]uint16 // decoded leaf lists by start offset
}

// decodeOctree decodes the spatial index rooted at the header's octree offset.
func decodeOctree(c *cursor, h *KCLHeader, limits OctreeLimits) (*OctreeNode, error) {
	d := &octreeDecoder{
		c:      c,
		limits: limits.withDefaults(),
		lists:  make(map[uint32][]uint16),
	}
	return d.node(h.OctreeOffset, rootChildCount(h), 0)
}

func (d *octreeDecoder) fail(offset uint32, depth int, format string, args ...any) error {
	return decodeErr(ErrMalformedOctree, "kcl.octree", -1, int64(offset),
		"depth %d: %s", depth, fmt.Sprintf(format, args...))
}

// node decodes one node. value is either a leaf pointer (top bit set) or the
// absolute base of a branch; children are stored relative to that base.
func (d *octreeDecoder) node(value uint32, numChildren uint32, depth int) (*OctreeNode, error) {
	if depth > d.limits.MaxDepth {
		return nil, d.fail(value, depth, "exceeds max depth %d", d.limits.MaxDepth)
	}
	d.nodes++
	if d.nodes > d.limits.MaxNodes {
		return nil, d.fail(value, depth, "exceeds max node count %d", d.limits.MaxNodes)
	}

	if value&octreeLeafFlag != 0 {
		return d.leaf(value, depth)
	}

	base := value
	if int64(base)+4*int64(numChildren) > d.c.len() {
		return nil, d.fail(base, depth, "%d child slots run past end of buffer", numChildren)
	}

	node := &OctreeNode{Offset: base, Children: make([]*OctreeNode, 0, numChildren)}
	for i := uint32(0); i < numChildren; i++ {
		if err := d.c.seek(int64(base) + 4*int64(i)); err != nil {
			return nil, d.fail(base, depth, "child slot %d out of bounds", i)
		}
		rel, err := d.c.u32()
		if err != nil {
			return nil, d.fail(base, depth, "child slot %d out of bounds", i)
		}

		next := rel + base
		if next&octreeLeafFlag == 0 && next <= base {
			return nil, d.fail(base, depth, "child %d offset 0x%X does not increase", i, next)
		}

		child, err := d.node(next, octreeChildren, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func (d *octreeDecoder) leaf(value uint32, depth int) (*OctreeNode, error) {
	start := (value &^ octreeLeafFlag) + octreeLeafSkip

	indices, seen := d.lists[start]
	if !seen {
		var err error
		if indices, err = d.readList(start, depth); err != nil {
			return nil, err
		}
		d.lists[start] = indices
	}

	d.refs += len(indices)
	if d.refs > d.limits.MaxReferences {
		return nil, d.fail(start, depth, "exceeds max reference count %d", d.limits.MaxReferences)
	}
	return &OctreeNode{Offset: start, Indices: indices, leaf: true}, nil
}

func (d *octreeDecoder) readList(start uint32, depth int) ([]uint16, error) {
	if err := d.c.seek(int64(start)); err != nil {
		return nil, d.fail(start, depth, "leaf offset out of bounds")
	}

	var indices []uint16
	for {
		idx, err := d.c.u16()
		if err != nil {
			return nil, d.fail(start, depth, "leaf has no terminating sentinel")
		}
		if idx == 0 {
			break
		}
		if d.refs+len(indices) >= d.limits.MaxReferences {
			return nil, d.fail(start, depth, "exceeds max reference count %d", d.limits.MaxReferences)
		}
		indices = append(indices, idx)
	}
	return indices, nil
}
