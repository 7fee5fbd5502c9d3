package collision

import (
	"github.com/chewxy/math32"

	cmath "github.com/Faultbox/ss-collision/pkg/math"
)

// KCLTriangle is a prism expanded into explicit geometry.
type KCLTriangle struct {
	Vertices   [3]cmath.Vec3
	FaceNormal cmath.Vec3
	Attribute  uint16
}

// Reconstruct expands a prism into a triangle. The far vertices are where
// the planes of the first two edge normals meet the plane that lies
// Height along the third edge normal.
func Reconstruct(p Prism, positions, normals []cmath.Vec3) (KCLTriangle, error) {
	pos, err := lookup(positions, p.PosIndex, "position")
	if err != nil {
		return KCLTriangle{}, err
	}
	fnrm, err := lookup(normals, p.FaceNormalIndex, "face normal")
	if err != nil {
		return KCLTriangle{}, err
	}
	var enrm [3]cmath.Vec3
	for i, idx := range p.EdgeNormalIndices {
		if enrm[i], err = lookup(normals, idx, "edge normal"); err != nil {
			return KCLTriangle{}, err
		}
	}

	crossA := fnrm.Cross(enrm[0])
	crossB := fnrm.Cross(enrm[1])

	v1, err := farVertex(pos, crossB, enrm[2], p.Height)
	if err != nil {
		return KCLTriangle{}, err
	}
	v2, err := farVertex(pos, crossA, enrm[2], p.Height)
	if err != nil {
		return KCLTriangle{}, err
	}

	return KCLTriangle{
		Vertices:   [3]cmath.Vec3{pos, v1, v2},
		FaceNormal: fnrm,
		Attribute:  p.Attribute,
	}, nil
}

func farVertex(pos, dir, edge cmath.Vec3, height float32) (cmath.Vec3, error) {
	denom := dir.Dot(edge)
	if denom == 0 || math32.IsNaN(denom) || math32.IsInf(denom, 0) {
		return cmath.Vec3{}, decodeErr(ErrDegenerateGeometry, "", -1, -1,
			"edge direction %v is parallel to %v", dir, edge)
	}
	v := pos.Add(dir.Scale(height / denom))
	if !v.IsFinite() {
		return cmath.Vec3{}, decodeErr(ErrDegenerateGeometry, "", -1, -1,
			"vertex %v is not finite", v)
	}
	return v, nil
}

func lookup(table []cmath.Vec3, idx uint16, what string) (cmath.Vec3, error) {
	if int(idx) >= len(table) {
		return cmath.Vec3{}, decodeErr(ErrIndexOutOfRange, "", -1, -1,
			"%s index %d, table has %d entries", what, idx, len(table))
	}
	return table[idx], nil
}
