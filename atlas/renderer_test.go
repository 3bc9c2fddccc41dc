package atlas

import (
	"bytes"
	"image/png"
	"testing"
)

func TestRenderLabel(t *testing.T) {
	idx := squareIndex(t)
	r := NewSliceRenderer(idx)
	r.Scale = 2
	r.Annotate = false

	img, err := r.RenderLabel("square", 0)
	if err != nil {
		t.Fatalf("RenderLabel error: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 10 || b.Dy() != 10 {
		t.Errorf("image is %dx%d, want 10x10 for a 5x5 slice at scale 2", b.Dx(), b.Dy())
	}

	// Occupied voxel (2,2) colors both of its scaled pixels away from the
	// background; an unoccupied corner keeps the background.
	inR, _, _, _ := img.At(4, 4).RGBA()
	bgR, bgG, bgB, _ := img.At(0, 0).RGBA()
	wantR, wantG, wantB, _ := r.Background.RGBA()
	if bgR != wantR || bgG != wantG || bgB != wantB {
		t.Errorf("corner pixel is not background: got (%d,%d,%d)", bgR, bgG, bgB)
	}
	if inR == bgR {
		t.Error("occupied voxel rendered as background")
	}
}

func TestRenderLabelOutsideGrid(t *testing.T) {
	idx := squareIndex(t)
	r := NewSliceRenderer(idx)

	if _, err := r.RenderLabel("square", 7); err == nil {
		t.Error("slice outside the grid should fail")
	}
	if _, err := r.RenderLabel("missing", 0); err == nil {
		t.Error("unknown label should fail")
	}
}

func TestWritePNG(t *testing.T) {
	idx := squareIndex(t)
	r := NewSliceRenderer(idx)

	var buf bytes.Buffer
	if err := r.WritePNG(&buf, "square", 0); err != nil {
		t.Fatalf("WritePNG error: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 5*r.Scale {
		t.Errorf("decoded width = %d", img.Bounds().Dx())
	}
}

func TestHeatColor(t *testing.T) {
	low := heatColor(0.01)
	high := heatColor(0.99)
	if low.R >= high.R {
		t.Errorf("red channel must grow with probability: %d vs %d", low.R, high.R)
	}
	if low.B <= high.B {
		t.Errorf("blue channel must shrink with probability: %d vs %d", low.B, high.B)
	}
	// Out-of-range inputs clamp instead of wrapping.
	if heatColor(-1) != heatColor(0) || heatColor(2) != heatColor(1) {
		t.Error("heatColor must clamp to [0, 1]")
	}
}

func TestVectorRendererSVG(t *testing.T) {
	idx := squareIndex(t)
	r := NewVectorRenderer(idx)
	r.Overlays = []Location{
		NewPoint("world", 2, 2, 0),
		NewBoundingBox("world", [3]float64{0.5, 0.5, 0}, [3]float64{3.5, 3.5, 1}),
	}

	var buf bytes.Buffer
	if err := r.RenderToSVG(&buf); err != nil {
		t.Fatalf("RenderToSVG error: %v", err)
	}
	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("<svg")) {
		t.Errorf("output does not look like SVG: %.80s", out)
	}
}

func TestVectorRendererPNG(t *testing.T) {
	idx := squareIndex(t)
	r := NewVectorRenderer(idx)

	var buf bytes.Buffer
	if err := r.RenderToPNG(&buf); err != nil {
		t.Fatalf("RenderToPNG error: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
}
