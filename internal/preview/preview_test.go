package preview

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/ss-collision/pkg/collision"
	cmath "github.com/Faultbox/ss-collision/pkg/math"
)

var (
	up        = cmath.Vec3{X: 0, Y: 1, Z: 0}
	passSet   = collision.PLCEntry{Codes: [5]uint32{1 << 14}}
	passClear = collision.PLCEntry{}
	bg        = color.NRGBA{1, 2, 3, 255}
)

func v(x, y, z float32) cmath.Vec3 { return cmath.Vec3{X: x, Y: y, Z: z} }

// floorMesh is a 10x10 quad at y=0 split along x+z=10.
func floorMesh() *collision.Mesh {
	return &collision.Mesh{
		Triangles: []collision.MeshTriangle{
			{Vertices: [3]cmath.Vec3{v(0, 0, 0), v(0, 0, 10), v(10, 0, 0)}, Normal: up},
			{Vertices: [3]cmath.Vec3{v(0, 0, 10), v(10, 0, 10), v(10, 0, 0)}, Normal: up, Attribute: 1},
		},
		Entries: []collision.PLCEntry{passSet, passClear},
	}
}

func flatOptions(id int) Options {
	return Options{Size: 64, Supersample: 1, Descriptor: id, Background: bg}
}

func TestRender_AttributeColors(t *testing.T) {
	img, err := Render(floorMesh(), flatOptions(collision.FieldIDPassObject))
	require.NoError(t, err)
	require.Equal(t, 64, img.Bounds().Dx())

	assert.Equal(t, color.NRGBA{0, 179, 0, 255}, img.NRGBAAt(14, 14))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(50, 50))
	assert.Equal(t, bg, img.NRGBAAt(0, 0))
	assert.Equal(t, bg, img.NRGBAAt(63, 63))
}

func TestRender_NormalFallback(t *testing.T) {
	img, err := Render(floorMesh(), flatOptions(collision.FieldIDNormal))
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, img.NRGBAAt(14, 14))
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, img.NRGBAAt(50, 50))
}

func TestRender_HighestSurfaceWins(t *testing.T) {
	m := floorMesh()
	// A raised copy of the first triangle, listed first so the depth test
	// has to reject the later floor triangle.
	raised := collision.MeshTriangle{
		Vertices: [3]cmath.Vec3{v(0, 5, 0), v(0, 5, 10), v(10, 5, 0)},
		Normal:   up,
	}
	m.Triangles = append([]collision.MeshTriangle{raised}, m.Triangles...)
	m.Entries = append([]collision.PLCEntry{passClear}, m.Entries...)

	img, err := Render(m, flatOptions(collision.FieldIDPassObject))
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(14, 14))
}

func TestRender_Shade(t *testing.T) {
	m := &collision.Mesh{
		Triangles: []collision.MeshTriangle{{
			Vertices: [3]cmath.Vec3{v(0, 0, 0), v(0, 0, 10), v(10, 0, 0)},
			Normal:   v(1, 0, 0),
		}},
		Entries: []collision.PLCEntry{passClear},
	}
	opts := flatOptions(collision.FieldIDPassObject)
	opts.Shade = true

	img, err := Render(m, opts)
	require.NoError(t, err)
	// Clear flag is white; a vertical normal scales it to 55%.
	assert.Equal(t, color.NRGBA{140, 140, 140, 255}, img.NRGBAAt(14, 14))
}

func TestRender_EmptyMesh(t *testing.T) {
	img, err := Render(&collision.Mesh{}, flatOptions(collision.FieldIDNormal))
	require.NoError(t, err)
	assert.Equal(t, bg, img.NRGBAAt(32, 32))
}

func TestRender_Supersample(t *testing.T) {
	opts := flatOptions(collision.FieldIDPassObject)
	opts.Size = 32
	opts.Supersample = 2

	img, err := Render(floorMesh(), opts)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
	// Deep inside the white triangle the filter sees only white.
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(25, 25))
}

func TestRender_InvalidSize(t *testing.T) {
	_, err := Render(floorMesh(), Options{})
	assert.Error(t, err)
}

func TestEncodeAndWriteFile(t *testing.T) {
	img, err := Render(floorMesh(), flatOptions(collision.FieldIDPassObject))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img))
	data := buf.Bytes()
	require.Greater(t, len(data), 12)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WEBP", string(data[8:12]))

	path := filepath.Join(t.TempDir(), "out", "r00.webp")
	require.NoError(t, WriteFile(path, floorMesh(), DefaultOptions()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(12))
}
