// Package preview renders a top-down, attribute-colored view of a collision
// mesh and encodes it as WebP.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"github.com/Faultbox/ss-collision/pkg/collision"
)

// Options controls Render.
type Options struct {
	Size        int    // output edge in pixels
	Supersample int    // render at Size*Supersample, then downscale
	Descriptor  int    // attribute field id used for coloring
	Selector    uint32 // highlighted value for range fields
	Background  color.NRGBA
	Shade       bool // darken steep faces so walls stand out from floors
}

// DefaultOptions returns a 1024px preview colored by surface normal.
func DefaultOptions() Options {
	return Options{
		Size:        1024,
		Supersample: 2,
		Descriptor:  collision.FieldIDNormal,
		Background:  color.NRGBA{24, 24, 28, 255},
		Shade:       true,
	}
}

// frameBuffer is the render target as flat slices.
type frameBuffer struct {
	size  int
	color []uint8   // RGBA interleaved
	depth []float64 // world Y per pixel, -inf when empty
}

func newFrameBuffer(size int, bg color.NRGBA) *frameBuffer {
	n := size * size
	fb := &frameBuffer{size: size, color: make([]uint8, n*4), depth: make([]float64, n)}
	for i := 0; i < n; i++ {
		fb.depth[i] = math.Inf(-1)
		fb.color[i*4+0] = bg.R
		fb.color[i*4+1] = bg.G
		fb.color[i*4+2] = bg.B
		fb.color[i*4+3] = bg.A
	}
	return fb
}

// Render projects the mesh onto the XZ plane looking down -Y. The highest
// surface wins each pixel.
func Render(m *collision.Mesh, opts Options) (*image.NRGBA, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("preview size must be positive, got %d", opts.Size)
	}
	ss := max(opts.Supersample, 1)
	renderSize := opts.Size * ss
	fb := newFrameBuffer(renderSize, opts.Background)

	lo, hi, ok := m.Bounds()
	if ok {
		origin := lo.XZ()
		ext := hi.XZ().Sub(origin)
		span := math.Max(float64(ext.X), float64(ext.Y))
		if span < 0.001 {
			span = 0.001
		}
		margin := float64(renderSize) / 32
		scale := (float64(renderSize) - 2*margin) / span
		// Center the shorter axis.
		offX := margin + (span-float64(ext.X))*scale/2
		offY := margin + (span-float64(ext.Y))*scale/2

		colors := m.Colors(opts.Descriptor, opts.Selector)
		for i, tri := range m.Triangles {
			var px, py, pz [3]float64
			for k, v := range tri.Vertices {
				p := v.XZ().Sub(origin)
				px[k] = offX + float64(p.X)*scale
				py[k] = offY + float64(p.Y)*scale
				pz[k] = float64(v.Y)
			}
			c := colors[i]
			if opts.Shade {
				s := 0.55 + 0.45*math.Abs(float64(tri.Normal.Y))
				c.R *= float32(s)
				c.G *= float32(s)
				c.B *= float32(s)
			}
			fb.rasterize(px, py, pz, toNRGBA(c))
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, renderSize, renderSize))
	copy(img.Pix, fb.color)
	if ss == 1 {
		return img, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

// rasterize fills one flat-colored triangle with a depth test.
func (fb *frameBuffer) rasterize(px, py, pz [3]float64, c color.NRGBA) {
	x0, y0, z0 := px[0], py[0], pz[0]
	x1, y1, z1 := px[1], py[1], pz[1]
	x2, y2, z2 := px[2], py[2], pz[2]

	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return // edge-on from above
	}
	invDet := 1.0 / det

	size := fb.size
	minX := max(int(math.Floor(math.Min(math.Min(x0, x1), x2))), 0)
	maxX := min(int(math.Ceil(math.Max(math.Max(x0, x1), x2))), size-1)
	minY := max(int(math.Floor(math.Min(math.Min(y0, y1), y2))), 0)
	maxY := min(int(math.Ceil(math.Max(math.Max(y0, y1), y2))), size-1)
	if minX > maxX || minY > maxY {
		return
	}

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	for sy := minY; sy <= maxY; sy++ {
		// Sample pixel centers.
		dsy := float64(sy) + 0.5 - y2
		row := sy * size
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*z0 + w1*z1 + w2*z2
			idx := row + sx
			if z <= fb.depth[idx] {
				continue
			}
			fb.depth[idx] = z
			o := idx * 4
			fb.color[o+0] = c.R
			fb.color[o+1] = c.G
			fb.color[o+2] = c.B
			fb.color[o+3] = c.A
		}
	}
}

func toNRGBA(c collision.Color) color.NRGBA {
	return color.NRGBA{clamp8(c.R), clamp8(c.G), clamp8(c.B), clamp8(c.A)}
}

func clamp8(v float32) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Encode writes img as lossless WebP.
func Encode(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

// WriteFile renders m and writes it to path, creating parent directories.
func WriteFile(path string, m *collision.Mesh, opts Options) error {
	img, err := Render(m, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
