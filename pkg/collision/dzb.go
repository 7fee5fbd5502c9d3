package collision

import (
	"fmt"
	"os"

	cmath "github.com/Faultbox/ss-collision/pkg/math"
)

const dzbHeaderSize = 13 * 4

// On-disk record sizes.
const (
	dzbVertexSize   = 12
	dzbTriangleSize = 10
	dzbBlockSize    = 2
	dzbNodeSize     = 20
	dzbGroupSize    = 50
	dzbPropertySize = 16
)

// DZBSection is the count and absolute offset of one DZB array.
type DZBSection struct {
	Count  uint32
	Offset uint32
}

// DZBHeader lists the six sections of a DZB file in on-disk order.
type DZBHeader struct {
	Vertices   DZBSection
	Triangles  DZBSection
	Blocks     DZBSection
	Nodes      DZBSection
	Groups     DZBSection
	Properties DZBSection
	Padding    uint32
}

// DZBTriangle indexes three vertices directly.
type DZBTriangle struct {
	VertexIndices [3]uint16
	PropertyIndex uint16 // index into the paired PLC table
	GroupIndex    uint16
}

// DZBBlock is the first triangle of an octree leaf's run.
type DZBBlock struct {
	StartTriangle uint16
}

// DZBNode is a conventional in-memory octree node.
type DZBNode struct {
	Flags    uint16
	Parent   uint16
	Branches [8]uint16
}

// DZBGroup is one entry of the local scene hierarchy, linked through
// parent/sibling/child indices.
type DZBGroup struct {
	NameOffset  uint32
	Scale       cmath.Vec3
	Rotation    [3]int16
	Unknown     uint16
	Translation cmath.Vec3
	Parent      uint16
	NextSibling uint16
	FirstChild  uint16
	RoomID      uint16
	FirstVertex uint16
	TreeIndex   uint16
	Info        uint16
}

// DZBProperty holds the packed attribute codes embedded in the DZB itself.
type DZBProperty struct {
	Info1    uint32
	Info2    uint32
	Info3    uint32
	PassFlag uint32
}

// DZB is a decoded flat-format collision file.
type DZB struct {
	Header     DZBHeader
	Vertices   []cmath.Vec3
	Triangles  []DZBTriangle
	Blocks     []DZBBlock
	Nodes      []DZBNode
	Groups     []DZBGroup
	Properties []DZBProperty
}

// ParseDZB parses a DZB file from raw bytes.
func ParseDZB(data []byte) (*DZB, error) {
	if len(data) < dzbHeaderSize {
		return nil, decodeErr(ErrTruncatedBuffer, "dzb.header", -1, 0,
			"file is %d bytes, header needs %d", len(data), dzbHeaderSize)
	}

	c := newCursor(data)
	var words [13]uint32
	if err := c.u32s(words[:]); err != nil {
		return nil, at(err, "dzb.header", -1)
	}

	d := &DZB{Header: DZBHeader{
		Vertices:   DZBSection{words[0], words[1]},
		Triangles:  DZBSection{words[2], words[3]},
		Blocks:     DZBSection{words[4], words[5]},
		Nodes:      DZBSection{words[6], words[7]},
		Groups:     DZBSection{words[8], words[9]},
		Properties: DZBSection{words[10], words[11]},
		Padding:    words[12],
	}}

	var err error
	if d.Vertices, err = readSection(c, "dzb.vertices", d.Header.Vertices, dzbVertexSize, (*cursor).vec3); err != nil {
		return nil, err
	}
	if d.Triangles, err = readSection(c, "dzb.triangles", d.Header.Triangles, dzbTriangleSize, readDZBTriangle); err != nil {
		return nil, err
	}
	if d.Blocks, err = readSection(c, "dzb.blocks", d.Header.Blocks, dzbBlockSize, readDZBBlock); err != nil {
		return nil, err
	}
	if d.Nodes, err = readSection(c, "dzb.nodes", d.Header.Nodes, dzbNodeSize, readDZBNode); err != nil {
		return nil, err
	}
	if d.Groups, err = readSection(c, "dzb.groups", d.Header.Groups, dzbGroupSize, readDZBGroup); err != nil {
		return nil, err
	}
	if d.Properties, err = readSection(c, "dzb.properties", d.Header.Properties, dzbPropertySize, readDZBProperty); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseDZBFile parses a DZB file from disk.
func ParseDZBFile(path string) (*DZB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading DZB file: %w", err)
	}
	return ParseDZB(data)
}

// readSection seeks to a section and reads exactly Count records. The whole
// section is bounds checked up front so a corrupt count cannot drive a huge
// allocation.
func readSection[T any](c *cursor, name string, s DZBSection, size int64, read func(*cursor) (T, error)) ([]T, error) {
	if s.Count == 0 {
		return nil, nil
	}
	if int64(s.Offset)+int64(s.Count)*size > c.len() {
		return nil, decodeErr(ErrTruncatedBuffer, name, -1, int64(s.Offset),
			"%d records of %d bytes run past end of buffer", s.Count, size)
	}
	if err := c.seek(int64(s.Offset)); err != nil {
		return nil, at(err, name, 0)
	}

	out := make([]T, s.Count)
	for i := range out {
		v, err := read(c)
		if err != nil {
			return nil, at(err, name, i)
		}
		out[i] = v
	}
	return out, nil
}

func readDZBTriangle(c *cursor) (DZBTriangle, error) {
	var w [5]uint16
	if err := c.u16s(w[:]); err != nil {
		return DZBTriangle{}, err
	}
	return DZBTriangle{
		VertexIndices: [3]uint16{w[0], w[1], w[2]},
		PropertyIndex: w[3],
		GroupIndex:    w[4],
	}, nil
}

func readDZBBlock(c *cursor) (DZBBlock, error) {
	v, err := c.u16()
	return DZBBlock{StartTriangle: v}, err
}

func readDZBNode(c *cursor) (DZBNode, error) {
	var w [10]uint16
	if err := c.u16s(w[:]); err != nil {
		return DZBNode{}, err
	}
	n := DZBNode{Flags: w[0], Parent: w[1]}
	copy(n.Branches[:], w[2:])
	return n, nil
}

func readDZBGroup(c *cursor) (DZBGroup, error) {
	var g DZBGroup
	var err error
	if g.NameOffset, err = c.u32(); err != nil {
		return g, err
	}
	if g.Scale, err = c.vec3(); err != nil {
		return g, err
	}
	for i := range g.Rotation {
		if g.Rotation[i], err = c.i16(); err != nil {
			return g, err
		}
	}
	if g.Unknown, err = c.u16(); err != nil {
		return g, err
	}
	if g.Translation, err = c.vec3(); err != nil {
		return g, err
	}
	var links [7]uint16
	if err := c.u16s(links[:]); err != nil {
		return g, err
	}
	g.Parent, g.NextSibling, g.FirstChild = links[0], links[1], links[2]
	g.RoomID, g.FirstVertex, g.TreeIndex, g.Info = links[3], links[4], links[5], links[6]
	return g, nil
}

func readDZBProperty(c *cursor) (DZBProperty, error) {
	var w [4]uint32
	if err := c.u32s(w[:]); err != nil {
		return DZBProperty{}, err
	}
	return DZBProperty{Info1: w[0], Info2: w[1], Info3: w[2], PassFlag: w[3]}, nil
}

// FaceNormal returns the unit normal of triangle i from its three vertices.
func (d *DZB) FaceNormal(i int) (cmath.Vec3, error) {
	v, err := d.TriangleVertices(i)
	if err != nil {
		return cmath.Vec3{}, err
	}
	return v[1].Sub(v[0]).Cross(v[2].Sub(v[0])).Normalize(), nil
}

// TriangleVertices resolves the vertex indices of triangle i.
func (d *DZB) TriangleVertices(i int) ([3]cmath.Vec3, error) {
	var out [3]cmath.Vec3
	if i < 0 || i >= len(d.Triangles) {
		return out, decodeErr(ErrIndexOutOfRange, "dzb.triangles", i, -1,
			"file has %d triangles", len(d.Triangles))
	}
	for j, idx := range d.Triangles[i].VertexIndices {
		if int(idx) >= len(d.Vertices) {
			return out, decodeErr(ErrIndexOutOfRange, "dzb.triangles", i, -1,
				"vertex index %d, file has %d vertices", idx, len(d.Vertices))
		}
		out[j] = d.Vertices[idx]
	}
	return out, nil
}

// Validate checks that every triangle references existing vertices and
// groups. Property indices are checked against the PLC when pairing.
func (d *DZB) Validate() error {
	for i, tri := range d.Triangles {
		if _, err := d.TriangleVertices(i); err != nil {
			return err
		}
		if len(d.Groups) > 0 && int(tri.GroupIndex) >= len(d.Groups) {
			return decodeErr(ErrIndexOutOfRange, "dzb.triangles", i, -1,
				"group index %d, file has %d groups", tri.GroupIndex, len(d.Groups))
		}
	}
	return nil
}
