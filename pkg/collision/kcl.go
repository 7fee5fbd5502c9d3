// Package collision decodes Skyward Sword collision geometry (KCL, DZB) and
// the PLC attribute tables that give each triangle its gameplay semantics.
package collision

import (
	"fmt"
	"os"
	"sync"

	cmath "github.com/Faultbox/ss-collision/pkg/math"
)

const (
	kclHeaderSize = 0x38
	// prismSize is the on-disk size of one prism record. The prism table is
	// addressed 1-based, so the first record slot is skipped.
	prismSize = 0x10
)

// KCLHeader is the fixed header of a KCL file. All offsets are absolute.
type KCLHeader struct {
	PosOffset      uint32
	NormalOffset   uint32
	PrismOffset    uint32
	OctreeOffset   uint32
	PrismThickness float32
	AreaMin        cmath.Vec3

	// Octree top-level grid, see rootChildCount.
	AreaXMask         uint32
	AreaYMask         uint32
	AreaZMask         uint32
	BlockShift        uint32
	AreaXBlocksShift  uint32
	AreaXYBlocksShift uint32
}

// Prism is an analytically encoded collision triangle: a base position,
// a height, and four normals.
type Prism struct {
	Height            float32
	PosIndex          uint16
	FaceNormalIndex   uint16
	EdgeNormalIndices [3]uint16
	Attribute         uint16 // index into the paired PLC table
}

// KCL is a decoded prism-format collision file.
type KCL struct {
	Header    KCLHeader
	Octree    *OctreeNode
	Prisms    []Prism      // Prisms[i] is prism index i+1 in octree leaves
	Positions []cmath.Vec3 // indexed directly by Prism.PosIndex
	Normals   []cmath.Vec3 // indexed directly by the prism normal indices

	trisOnce sync.Once
	tris     []KCLTriangle
	trisErr  error
}

// ParseKCL parses a KCL file from raw bytes with the default octree limits.
func ParseKCL(data []byte) (*KCL, error) {
	return ParseKCLWithLimits(data, DefaultOctreeLimits())
}

// ParseKCLWithLimits parses a KCL file, bounding octree decoding by limits.
func ParseKCLWithLimits(data []byte, limits OctreeLimits) (*KCL, error) {
	if len(data) < kclHeaderSize {
		return nil, decodeErr(ErrTruncatedBuffer, "kcl.header", -1, 0,
			"file is %d bytes, header needs %d", len(data), kclHeaderSize)
	}

	c := newCursor(data)
	h, err := parseKCLHeader(c)
	if err != nil {
		return nil, at(err, "kcl.header", -1)
	}

	octree, err := decodeOctree(c, &h, limits)
	if err != nil {
		return nil, err
	}

	k := &KCL{Header: h, Octree: octree}

	if err := k.readPrisms(c, octree.HighestIndex()); err != nil {
		return nil, err
	}
	if err := k.readVectors(c); err != nil {
		return nil, err
	}
	return k, nil
}

// ParseKCLFile parses a KCL file from disk.
func ParseKCLFile(path string) (*KCL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading KCL file: %w", err)
	}
	return ParseKCL(data)
}

func parseKCLHeader(c *cursor) (KCLHeader, error) {
	var h KCLHeader
	var offsets [4]uint32
	if err := c.u32s(offsets[:]); err != nil {
		return h, err
	}
	h.PosOffset, h.NormalOffset, h.PrismOffset, h.OctreeOffset = offsets[0], offsets[1], offsets[2], offsets[3]

	var err error
	if h.PrismThickness, err = c.f32(); err != nil {
		return h, err
	}
	if h.AreaMin, err = c.vec3(); err != nil {
		return h, err
	}

	var grid [6]uint32
	if err := c.u32s(grid[:]); err != nil {
		return h, err
	}
	h.AreaXMask, h.AreaYMask, h.AreaZMask = grid[0], grid[1], grid[2]
	h.BlockShift, h.AreaXBlocksShift, h.AreaXYBlocksShift = grid[3], grid[4], grid[5]
	return h, nil
}

// readPrisms reads count prisms, skipping the reserved first record slot.
func (k *KCL) readPrisms(c *cursor, count int) error {
	if count == 0 {
		return nil
	}
	start := int64(k.Header.PrismOffset) + prismSize
	if err := c.seek(start); err != nil {
		return at(err, "kcl.prisms", 0)
	}
	if start+int64(count)*prismSize > c.len() {
		return decodeErr(ErrTruncatedBuffer, "kcl.prisms", -1, start,
			"octree references %d prisms, table holds %d", count, (c.len()-start)/prismSize)
	}

	k.Prisms = make([]Prism, count)
	for i := range k.Prisms {
		p, err := readPrism(c)
		if err != nil {
			return at(err, "kcl.prisms", i)
		}
		k.Prisms[i] = p
	}
	return nil
}

func readPrism(c *cursor) (Prism, error) {
	var p Prism
	var err error
	if p.Height, err = c.f32(); err != nil {
		return p, err
	}
	var idx [6]uint16
	if err := c.u16s(idx[:]); err != nil {
		return p, err
	}
	p.PosIndex = idx[0]
	p.FaceNormalIndex = idx[1]
	p.EdgeNormalIndices = [3]uint16{idx[2], idx[3], idx[4]}
	p.Attribute = idx[5]
	return p, nil
}

// readVectors reads the position and normal tables. Their lengths are not
// stored; they are sized by the highest index any prism references.
func (k *KCL) readVectors(c *cursor) error {
	if len(k.Prisms) == 0 {
		return nil
	}

	var maxPos, maxNrm uint16
	for _, p := range k.Prisms {
		maxPos = max(maxPos, p.PosIndex)
		maxNrm = max(maxNrm, p.FaceNormalIndex,
			p.EdgeNormalIndices[0], p.EdgeNormalIndices[1], p.EdgeNormalIndices[2])
	}

	var err error
	if k.Positions, err = readVec3Table(c, "kcl.positions", k.Header.PosOffset, int(maxPos)+1); err != nil {
		return err
	}
	if k.Normals, err = readVec3Table(c, "kcl.normals", k.Header.NormalOffset, int(maxNrm)+1); err != nil {
		return err
	}
	return nil
}

func readVec3Table(c *cursor, section string, offset uint32, count int) ([]cmath.Vec3, error) {
	if err := c.seek(int64(offset)); err != nil {
		return nil, at(err, section, 0)
	}
	out := make([]cmath.Vec3, count)
	for i := range out {
		v, err := c.vec3()
		if err != nil {
			return nil, at(err, section, i)
		}
		out[i] = v
	}
	return out, nil
}

// Triangles reconstructs explicit triangles for every prism. The result is
// computed once and cached; callers must not modify the returned slice.
func (k *KCL) Triangles() ([]KCLTriangle, error) {
	k.trisOnce.Do(func() {
		tris := make([]KCLTriangle, len(k.Prisms))
		for i, p := range k.Prisms {
			tri, err := Reconstruct(p, k.Positions, k.Normals)
			if err != nil {
				k.trisErr = at(err, "kcl.prisms", i)
				return
			}
			tris[i] = tri
		}
		k.tris = tris
	})
	return k.tris, k.trisErr
}

// Prism returns the prism for a 1-based octree leaf index.
func (k *KCL) Prism(index uint16) (Prism, bool) {
	if index == 0 || int(index) > len(k.Prisms) {
		return Prism{}, false
	}
	return k.Prisms[index-1], true
}
