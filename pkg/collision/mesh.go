package collision

import (
	cmath "github.com/Faultbox/ss-collision/pkg/math"
)

// MeshTriangle is a triangle from either geometry format, ready to be paired
// with its attribute record.
type MeshTriangle struct {
	Vertices  [3]cmath.Vec3
	Normal    cmath.Vec3
	Attribute uint16
}

// Mesh is collision geometry paired with its attribute table. Entries is
// parallel to Triangles: Entries[i] belongs to Triangles[i].
type Mesh struct {
	Triangles []MeshTriangle
	Entries   []PLCEntry
}

// PairKCL reconstructs the KCL triangles and resolves each one's attribute.
func PairKCL(k *KCL, table *PLC) (*Mesh, error) {
	tris, err := k.Triangles()
	if err != nil {
		return nil, err
	}

	m := &Mesh{
		Triangles: make([]MeshTriangle, len(tris)),
		Entries:   make([]PLCEntry, len(tris)),
	}
	for i, tri := range tris {
		entry, err := table.Entry(int(tri.Attribute))
		if err != nil {
			return nil, decodeErr(ErrIndexOutOfRange, "kcl.prisms", i, -1,
				"attribute %d, PLC has %d entries", tri.Attribute, len(table.Entries))
		}
		m.Triangles[i] = MeshTriangle{
			Vertices:  tri.Vertices,
			Normal:    tri.FaceNormal,
			Attribute: tri.Attribute,
		}
		m.Entries[i] = entry
	}
	return m, nil
}

// PairDZB resolves each DZB triangle's vertices and attribute. Normals are
// computed from the vertices.
func PairDZB(d *DZB, table *PLC) (*Mesh, error) {
	m := &Mesh{
		Triangles: make([]MeshTriangle, len(d.Triangles)),
		Entries:   make([]PLCEntry, len(d.Triangles)),
	}
	for i, tri := range d.Triangles {
		verts, err := d.TriangleVertices(i)
		if err != nil {
			return nil, err
		}
		entry, err := table.Entry(int(tri.PropertyIndex))
		if err != nil {
			return nil, decodeErr(ErrIndexOutOfRange, "dzb.triangles", i, -1,
				"property %d, PLC has %d entries", tri.PropertyIndex, len(table.Entries))
		}
		m.Triangles[i] = MeshTriangle{
			Vertices:  verts,
			Normal:    verts[1].Sub(verts[0]).Cross(verts[2].Sub(verts[0])).Normalize(),
			Attribute: tri.PropertyIndex,
		}
		m.Entries[i] = entry
	}
	return m, nil
}

// NormalColor colors a triangle by its absolute normal.
func NormalColor(n cmath.Vec3) Color {
	a := n.Abs()
	return Color{a.X, a.Y, a.Z, 1}
}

// Colors returns one color per triangle for the given descriptor, falling
// back to NormalColor where the descriptor does not classify.
func (m *Mesh) Colors(id int, selector uint32) []Color {
	out := make([]Color, len(m.Triangles))
	for i, tri := range m.Triangles {
		if c, ok := ClassifyColor(m.Entries[i], id, selector); ok {
			out[i] = c
			continue
		}
		out[i] = NormalColor(tri.Normal)
	}
	return out
}

// Bounds returns the axis-aligned bounds of the mesh. ok is false when the
// mesh is empty.
func (m *Mesh) Bounds() (lo, hi cmath.Vec3, ok bool) {
	if len(m.Triangles) == 0 {
		return lo, hi, false
	}
	lo = m.Triangles[0].Vertices[0]
	hi = lo
	for _, tri := range m.Triangles {
		for _, v := range tri.Vertices {
			lo = lo.Min(v)
			hi = hi.Max(v)
		}
	}
	return lo, hi, true
}
