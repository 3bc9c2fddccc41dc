package atlas

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SliceRenderer renders axial slices of reconstructed probability volumes as
// raster heat maps for the HTTP preview endpoints.
type SliceRenderer struct {
	Index *SparseIndex
	Scale int // pixels per voxel, minimum 1

	Background color.NRGBA
	Annotate   bool // draw the label name into the image
}

// NewSliceRenderer creates a renderer with a dark background and annotations
// enabled.
func NewSliceRenderer(idx *SparseIndex) *SliceRenderer {
	return &SliceRenderer{
		Index:      idx,
		Scale:      4,
		Background: color.NRGBA{16, 16, 24, 255},
		Annotate:   true,
	}
}

// heatColor maps a probability in (0, 1] onto a cold-to-warm gradient.
func heatColor(prob float32) color.NRGBA {
	if prob < 0 {
		prob = 0
	}
	if prob > 1 {
		prob = 1
	}
	return color.NRGBA{
		R: uint8(255 * prob),
		G: uint8(64 * (1 - prob)),
		B: uint8(255 * (1 - prob)),
		A: 255,
	}
}

// RenderLabel renders the label's probabilities on the axial slice z.
func (r *SliceRenderer) RenderLabel(label string, z int) (*image.RGBA, error) {
	if z < 0 || z >= r.Index.Grid.Shape[2] {
		return nil, fmt.Errorf("slice %d outside grid of depth %d", z, r.Index.Grid.Shape[2])
	}

	scale := r.Scale
	if scale < 1 {
		scale = 1
	}
	w := r.Index.Grid.Shape[0] * scale
	h := r.Index.Grid.Shape[1] * scale

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, r.Background)

	err := r.Index.scanLabel(label, func(c VoxelCoord, prob float32) {
		if c.Z != z {
			return
		}
		col := heatColor(prob)
		for dy := 0; dy < scale; dy++ {
			for dx := 0; dx < scale; dx++ {
				img.Set(c.X*scale+dx, c.Y*scale+dy, col)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	if r.Annotate {
		drawLabel(img, fmt.Sprintf("%s z=%d", label, z), 4, 14)
	}
	return img, nil
}

// WritePNG renders the label slice and encodes it as PNG.
func (r *SliceRenderer) WritePNG(w io.Writer, label string, z int) error {
	img, err := r.RenderLabel(label, z)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func fill(img *image.RGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// drawLabel renders text at the given pixel position using the builtin
// 7x13 bitmap face.
func drawLabel(img *image.RGBA, text string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
