package atlas

import (
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer draws a top-down overview of an index: each label's
// bounding-box footprint in physical x/y coordinates, optionally with
// location overlays from a qualification query.
type VectorRenderer struct {
	Index      *SparseIndex
	Overlays   []Location
	Padding    float64 // padding in physical units
	Resolution canvas.Resolution

	labelStroke canvas.Paint
	overlayFill canvas.Paint
}

// NewVectorRenderer creates a renderer with default settings.
func NewVectorRenderer(idx *SparseIndex) *VectorRenderer {
	return &VectorRenderer{
		Index:       idx,
		Padding:     5.0,
		Resolution:  canvas.DPI(150),
		labelStroke: canvas.Paint{Color: canvas.Darkblue},
		overlayFill: canvas.Paint{Color: canvas.Orangered},
	}
}

// canvasRenderer is the subset both the svg and rasterizer targets implement.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the overview as an SVG to the provided writer.
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	minX, minY, width, height := r.worldBounds()
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, minX, minY, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the overview as a PNG to the provided writer.
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	minX, minY, width, height := r.worldBounds()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, minX, minY, width, height)
	return png.Encode(w, rast)
}

// worldBounds computes the physical x/y extent of the grid plus padding.
func (r *VectorRenderer) worldBounds() (minX, minY, width, height float64) {
	g := r.Index.Grid
	corners := [][3]float64{
		g.VoxelToPhysical(0, 0, 0),
		g.VoxelToPhysical(g.Shape[0]-1, 0, 0),
		g.VoxelToPhysical(0, g.Shape[1]-1, 0),
		g.VoxelToPhysical(g.Shape[0]-1, g.Shape[1]-1, 0),
	}
	minX, minY = corners[0][0], corners[0][1]
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		if c[0] < minX {
			minX = c[0]
		}
		if c[0] > maxX {
			maxX = c[0]
		}
		if c[1] < minY {
			minY = c[1]
		}
		if c[1] > maxY {
			maxY = c[1]
		}
	}
	minX -= r.Padding
	minY -= r.Padding
	return minX, minY, (maxX - minX) + 2*r.Padding, (maxY - minY) + 2*r.Padding
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, minX, minY, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(x, y float64) (float64, float64) {
		return x - minX, y - minY
	}

	boxStyle := canvas.DefaultStyle
	boxStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	boxStyle.Stroke = r.labelStroke
	boxStyle.StrokeWidth = 0.5

	for _, label := range r.Index.Labels() {
		b := r.Index.Bounds[label]
		p0 := r.Index.Grid.VoxelToPhysical(b.Min.X, b.Min.Y, b.Min.Z)
		p1 := r.Index.Grid.VoxelToPhysical(b.Max.X, b.Max.Y, b.Max.Z)

		cp := &canvas.Path{}
		x0, y0 := toCanvas(p0[0], p0[1])
		x1, y1 := toCanvas(p1[0], p1[1])
		cp.MoveTo(x0, y0)
		cp.LineTo(x1, y0)
		cp.LineTo(x1, y1)
		cp.LineTo(x0, y1)
		cp.Close()
		renderer.RenderPath(cp, boxStyle, canvas.Identity)
	}

	ptStyle := canvas.DefaultStyle
	ptStyle.Fill = r.overlayFill
	ptStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

	for _, loc := range r.Overlays {
		switch v := loc.(type) {
		case Point:
			x, y := toCanvas(v.Coord[0], v.Coord[1])
			renderer.RenderPath(canvas.Circle(0.8).Translate(x, y), ptStyle, canvas.Identity)
		case PointCloud:
			for _, c := range v.Coords {
				x, y := toCanvas(c[0], c[1])
				renderer.RenderPath(canvas.Circle(0.8).Translate(x, y), ptStyle, canvas.Identity)
			}
		case BoundingBox:
			cp := &canvas.Path{}
			x0, y0 := toCanvas(v.Min[0], v.Min[1])
			x1, y1 := toCanvas(v.Max[0], v.Max[1])
			cp.MoveTo(x0, y0)
			cp.LineTo(x1, y0)
			cp.LineTo(x1, y1)
			cp.LineTo(x0, y1)
			cp.Close()
			overlayBox := boxStyle
			overlayBox.Stroke = r.overlayFill
			renderer.RenderPath(cp, overlayBox, canvas.Identity)
		}
	}
}
