package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailProducesSquarePNG(t *testing.T) {
	src := encodeTestPNG(t, 300, 200)

	out, err := Thumbnail(src, 256)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 256 {
		t.Fatalf("thumbnail size: want 256x256 got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnailRejectsBadInput(t *testing.T) {
	if _, err := Thumbnail(nil, 256); err == nil {
		t.Fatal("empty input must fail")
	}
	if _, err := Thumbnail([]byte("not-an-image"), 256); err == nil {
		t.Fatal("undecodable input must fail")
	}
	if _, err := Thumbnail(encodeTestPNG(t, 10, 10), 0); err == nil {
		t.Fatal("non-positive size must fail")
	}
}
