package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func noisyImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8(x * 7 % 256),
				G: uint8(y * 13 % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestOptimizeProducesJPEGUnderCeiling(t *testing.T) {
	data := encodePNG(t, noisyImage(400, 300))
	ceiling := 100_000

	out, err := Optimize(data, ceiling)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if len(out) > ceiling {
		t.Errorf("output %d bytes, exceeds ceiling %d", len(out), ceiling)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not decodable JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 400 || decoded.Bounds().Dy() != 300 {
		t.Errorf("dimensions = %v, small image should not be resized", decoded.Bounds())
	}
}

func TestOptimizeDownscalesOversizedImages(t *testing.T) {
	data := encodePNG(t, noisyImage(3000, 1500))

	out, err := Optimize(data, DefaultMaxBytes)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if w := decoded.Bounds().Dx(); w != 2000 {
		t.Errorf("width = %d, want 2000", w)
	}
	if h := decoded.Bounds().Dy(); h != 1000 {
		t.Errorf("height = %d, want 1000 (aspect ratio preserved)", h)
	}
}

func TestOptimizeFlattensAlpha(t *testing.T) {
	// Fully transparent image: flattened output should be white, not black.
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	data := encodePNG(t, img)

	out, err := Optimize(data, DefaultMaxBytes)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}

	r, g, b, _ := decoded.At(10, 10).RGBA()
	if r < 0xf000 || g < 0xf000 || b < 0xf000 {
		t.Errorf("flattened pixel = (%d, %d, %d), want near-white", r, g, b)
	}
}

func TestOptimizeImpossibleCeiling(t *testing.T) {
	data := encodePNG(t, noisyImage(500, 500))

	_, err := Optimize(data, 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestOptimizeRejectsGarbage(t *testing.T) {
	if _, err := Optimize([]byte("not an image"), DefaultMaxBytes); err == nil {
		t.Error("expected decode error for non-image data")
	}
}

func TestFetchReturnsSmallImagesAsIs(t *testing.T) {
	original := encodePNG(t, noisyImage(50, 50))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(original)
	}))
	defer srv.Close()

	f := NewFetcher()
	got, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Error("small image should be returned unmodified")
	}
}

func TestFetchReencodesOversizedImages(t *testing.T) {
	original := encodePNG(t, noisyImage(600, 600))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(original)
	}))
	defer srv.Close()

	ceiling := len(original) - 1
	f := NewFetcher(WithMaxBytes(ceiling))
	got, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) > ceiling {
		t.Errorf("output %d bytes, exceeds ceiling %d", len(got), ceiling)
	}
	if _, err := jpeg.Decode(bytes.NewReader(got)); err != nil {
		t.Errorf("re-encoded output is not JPEG: %v", err)
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher()
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for non-OK status")
	}
}
