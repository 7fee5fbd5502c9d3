package collision

import (
	"bytes"
	"encoding/binary"

	cmath "github.com/Faultbox/ss-collision/pkg/math"
)

// testNormals is a normal table whose prisms reconstruct without
// degeneracy: face (0,1,0), edges (-1,0,0), (0,0,-1), (0.6,0,0.8).
var testNormals = []cmath.Vec3{
	{X: 0, Y: 1, Z: 0},
	{X: -1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 0.6, Y: 0, Z: 0.8},
}

func testPrism(pos, attr uint16) Prism {
	return Prism{
		Height:            10,
		PosIndex:          pos,
		FaceNormalIndex:   0,
		EdgeNormalIndices: [3]uint16{1, 2, 3},
		Attribute:         attr,
	}
}

// kclFixture describes a small KCL: a root with two children, the first a
// leaf and the second a branch of eight leaves. leaves[0] is the root leaf,
// leaves[1:9] belong to the branch (missing ones are empty).
type kclFixture struct {
	positions []cmath.Vec3
	normals   []cmath.Vec3
	prisms    []Prism
	leaves    [][]uint16
}

func writeBE(buf *bytes.Buffer, vals ...any) {
	for _, v := range vals {
		binary.Write(buf, binary.BigEndian, v)
	}
}

func writeVec3(buf *bytes.Buffer, v cmath.Vec3) {
	writeBE(buf, v.X, v.Y, v.Z)
}

func writePrism(buf *bytes.Buffer, p Prism) {
	writeBE(buf, p.Height, p.PosIndex, p.FaceNormalIndex,
		p.EdgeNormalIndices[0], p.EdgeNormalIndices[1], p.EdgeNormalIndices[2], p.Attribute)
}

// createTestKCL lays the file out sequentially:
// header, positions, normals, prisms (after one reserved slot), root, branch, leaf lists.
func createTestKCL(f kclFixture) []byte {
	leaves := make([][]uint16, 9)
	copy(leaves, f.leaves)

	posOff := uint32(kclHeaderSize)
	nrmOff := posOff + 12*uint32(len(f.positions))
	prismOff := nrmOff + 12*uint32(len(f.normals))
	rootOff := prismOff + prismSize*uint32(len(f.prisms)+1)
	branchOff := rootOff + 2*4
	leafOff := branchOff + 8*4

	// Each list's pointer addresses the slot before its first entry, which
	// is the previous list's terminator (or a leading zero for the first).
	ptrs := make([]uint32, len(leaves))
	cursor := leafOff + 2
	for i, l := range leaves {
		ptrs[i] = cursor - 2
		cursor += 2 * uint32(len(l)+1)
	}

	buf := new(bytes.Buffer)

	// Header: offsets, thickness, area min, masks (x count 2, y/z 0), shifts.
	writeBE(buf, posOff, nrmOff, prismOff, rootOff)
	writeBE(buf, float32(300))
	writeVec3(buf, cmath.Vec3{X: -100, Y: -100, Z: -100})
	writeBE(buf, uint32(0xFFFFFFFD), uint32(0xFFFFFFFF), uint32(0xFFFFFFFF))
	writeBE(buf, uint32(0), uint32(1), uint32(2))

	for _, v := range f.positions {
		writeVec3(buf, v)
	}
	for _, v := range f.normals {
		writeVec3(buf, v)
	}
	buf.Write(make([]byte, prismSize))
	for _, p := range f.prisms {
		writePrism(buf, p)
	}

	// Root: leaf, then branch (relative to root base).
	writeBE(buf, uint32(octreeLeafFlag)|(ptrs[0]-rootOff), branchOff-rootOff)
	// Branch: eight leaves relative to branch base.
	for i := 1; i <= 8; i++ {
		writeBE(buf, uint32(octreeLeafFlag)|(ptrs[i]-branchOff))
	}

	writeBE(buf, uint16(0))
	for _, l := range leaves {
		for _, idx := range l {
			writeBE(buf, idx)
		}
		writeBE(buf, uint16(0))
	}
	return buf.Bytes()
}

// defaultKCLFixture has three prisms spread over two leaves.
func defaultKCLFixture() kclFixture {
	return kclFixture{
		positions: []cmath.Vec3{{X: 0, Y: 0, Z: 0}, {X: 100, Y: 5, Z: -20}},
		normals:   testNormals,
		prisms:    []Prism{testPrism(0, 0), testPrism(1, 1), testPrism(1, 2)},
		leaves:    [][]uint16{{1, 2}, {3}},
	}
}

// createSharedKCL builds a KCL whose branches all reuse one base per level:
// both root cells point at the same branch, every branch slot points at the
// next level's single branch, and every leaf points at one list of listLen
// ones. It decodes to 2*8^levels leaves from a file of a few hundred bytes.
func createSharedKCL(levels, listLen int) []byte {
	posOff := uint32(kclHeaderSize)
	nrmOff := posOff + 12
	prismOff := nrmOff + 12*uint32(len(testNormals))
	rootOff := prismOff + prismSize*2
	levelOff := func(l int) uint32 { return rootOff + 2*4 + uint32(l)*8*4 }
	listPtr := levelOff(levels)

	buf := new(bytes.Buffer)
	writeBE(buf, posOff, nrmOff, prismOff, rootOff)
	writeBE(buf, float32(300))
	writeVec3(buf, cmath.Vec3{X: -100, Y: -100, Z: -100})
	writeBE(buf, uint32(0xFFFFFFFD), uint32(0xFFFFFFFF), uint32(0xFFFFFFFF))
	writeBE(buf, uint32(0), uint32(1), uint32(2))

	writeVec3(buf, cmath.Vec3{})
	for _, v := range testNormals {
		writeVec3(buf, v)
	}
	buf.Write(make([]byte, prismSize))
	writePrism(buf, testPrism(0, 0))

	writeBE(buf, levelOff(0)-rootOff, levelOff(0)-rootOff)
	for l := 0; l < levels; l++ {
		base := levelOff(l)
		for i := 0; i < octreeChildren; i++ {
			if l == levels-1 {
				writeBE(buf, uint32(octreeLeafFlag)|(listPtr-base))
			} else {
				writeBE(buf, levelOff(l+1)-base)
			}
		}
	}

	writeBE(buf, uint16(0))
	for i := 0; i < listLen; i++ {
		writeBE(buf, uint16(1))
	}
	writeBE(buf, uint16(0))
	return buf.Bytes()
}

// createTestPLC builds an SPLC table with the given records.
func createTestPLC(entries ...[5]uint32) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("SPLC")
	writeBE(buf, uint16(plcStride), uint16(len(entries)))
	for _, e := range entries {
		writeBE(buf, e)
	}
	return buf.Bytes()
}

// dzbFixture holds the six DZB arrays.
type dzbFixture struct {
	vertices   []cmath.Vec3
	triangles  []DZBTriangle
	blocks     []DZBBlock
	nodes      []DZBNode
	groups     []DZBGroup
	properties []DZBProperty
}

// createTestDZB writes the sections back to back after the header.
func createTestDZB(f dzbFixture) []byte {
	counts := []int{len(f.vertices), len(f.triangles), len(f.blocks), len(f.nodes), len(f.groups), len(f.properties)}
	sizes := []int{dzbVertexSize, dzbTriangleSize, dzbBlockSize, dzbNodeSize, dzbGroupSize, dzbPropertySize}

	buf := new(bytes.Buffer)
	off := dzbHeaderSize
	for i := range counts {
		writeBE(buf, uint32(counts[i]), uint32(off))
		off += counts[i] * sizes[i]
	}
	writeBE(buf, uint32(0))

	for _, v := range f.vertices {
		writeVec3(buf, v)
	}
	for _, t := range f.triangles {
		writeBE(buf, t.VertexIndices, t.PropertyIndex, t.GroupIndex)
	}
	for _, b := range f.blocks {
		writeBE(buf, b.StartTriangle)
	}
	for _, n := range f.nodes {
		writeBE(buf, n.Flags, n.Parent, n.Branches)
	}
	for _, g := range f.groups {
		writeBE(buf, g.NameOffset)
		writeVec3(buf, g.Scale)
		writeBE(buf, g.Rotation, g.Unknown)
		writeVec3(buf, g.Translation)
		writeBE(buf, g.Parent, g.NextSibling, g.FirstChild, g.RoomID, g.FirstVertex, g.TreeIndex, g.Info)
	}
	for _, p := range f.properties {
		writeBE(buf, p.Info1, p.Info2, p.Info3, p.PassFlag)
	}
	return buf.Bytes()
}

func defaultDZBFixture() dzbFixture {
	return dzbFixture{
		vertices: []cmath.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: 0, Y: 0, Z: 10},
			{X: 10, Y: 0, Z: 0},
			{X: 10, Y: 0, Z: 10},
		},
		triangles: []DZBTriangle{
			{VertexIndices: [3]uint16{0, 1, 2}, PropertyIndex: 0, GroupIndex: 0},
			{VertexIndices: [3]uint16{1, 3, 2}, PropertyIndex: 1, GroupIndex: 1},
		},
		blocks: []DZBBlock{{StartTriangle: 0}, {StartTriangle: 1}},
		nodes: []DZBNode{
			{Flags: 0, Parent: 0xFFFF, Branches: [8]uint16{1, 2, 3, 4, 5, 6, 7, 8}},
			{Flags: 1, Parent: 0, Branches: [8]uint16{0, 0, 0, 0, 0, 0, 0, 0}},
		},
		groups: []DZBGroup{
			{
				NameOffset: 0x40, Scale: cmath.Vec3{X: 1, Y: 1, Z: 1}, Rotation: [3]int16{0, -0x4000, 0},
				Translation: cmath.Vec3{X: 5, Y: 0, Z: -5}, Parent: 0xFFFF, NextSibling: 0xFFFF,
				FirstChild: 1, RoomID: 0xFF, FirstVertex: 0, TreeIndex: 0, Info: 0,
			},
			{
				NameOffset: 0x48, Scale: cmath.Vec3{X: 2, Y: 2, Z: 2}, Parent: 0,
				NextSibling: 0xFFFF, FirstChild: 0xFFFF, RoomID: 3, FirstVertex: 1, TreeIndex: 1, Info: 7,
			},
		},
		properties: []DZBProperty{
			{Info1: 0x00004000, Info2: 0x01F00000, Info3: 0, PassFlag: 1},
			{Info1: 0, Info2: 0, Info3: 0x12345678, PassFlag: 0},
		},
	}
}
