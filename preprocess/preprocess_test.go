package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestBoundDimensionsDownscalesWide(t *testing.T) {
	in := encodePNG(t, 400, 100)

	out, err := BoundDimensions(in, 200)
	if err != nil {
		t.Fatalf("BoundDimensions() error = %v", err)
	}
	w, h := decodeSize(t, out)
	if w != 200 || h != 50 {
		t.Fatalf("expected 200x50, got %dx%d", w, h)
	}
}

func TestBoundDimensionsDownscalesTall(t *testing.T) {
	in := encodePNG(t, 100, 400)

	out, err := BoundDimensions(in, 200)
	if err != nil {
		t.Fatalf("BoundDimensions() error = %v", err)
	}
	w, h := decodeSize(t, out)
	if w != 50 || h != 200 {
		t.Fatalf("expected 50x200, got %dx%d", w, h)
	}
}

func TestBoundDimensionsPassThrough(t *testing.T) {
	in := encodePNG(t, 100, 80)

	out, err := BoundDimensions(in, 200)
	if err != nil {
		t.Fatalf("BoundDimensions() error = %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("in-bounds image should be returned unchanged")
	}
}

func TestBoundDimensionsRejectsGarbage(t *testing.T) {
	if _, err := BoundDimensions([]byte("not an image"), 100); err == nil {
		t.Fatalf("expected decode error")
	}
}
