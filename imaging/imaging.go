// Package imaging downloads thumbnail images and re-encodes them to fit
// the delivery API's byte ceiling.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"
)

const (
	// DefaultMaxBytes is the Telegram photo upload limit.
	DefaultMaxBytes = 10_000_000

	maxDimension = 2000

	startQuality = 85
	minQuality   = 20
	qualityStep  = 5
)

// ErrTooLarge is returned when an image cannot be re-encoded under the
// byte ceiling even at minimum quality.
var ErrTooLarge = errors.New("image exceeds size limit at minimum quality")

// Fetcher downloads images and shrinks them under the configured ceiling.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.httpClient.Timeout = d
	}
}

// WithMaxBytes sets the output byte ceiling.
func WithMaxBytes(n int) Option {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// NewFetcher creates an image fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxBytes:   DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the image at url and returns bytes no larger than the
// ceiling, re-encoding when the original is too big.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NewsBot/1.0)")
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	if len(data) <= f.maxBytes {
		return data, nil
	}

	slog.Info("image over size limit, re-encoding", "url", url, "bytes", len(data))
	return Optimize(data, f.maxBytes)
}

// Optimize re-encodes an image as JPEG under the byte ceiling: alpha is
// flattened onto white, oversized images are downscaled to maxDimension,
// and quality steps down from startQuality until the output fits.
func Optimize(data []byte, ceiling int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	flat := flatten(src)
	flat = shrink(flat, maxDimension)

	var buf bytes.Buffer
	for quality := startQuality; quality >= minQuality; quality -= qualityStep {
		buf.Reset()
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		if buf.Len() <= ceiling {
			return buf.Bytes(), nil
		}
	}
	return nil, ErrTooLarge
}

// flatten composites the image over a white background, discarding alpha.
func flatten(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Over)
	return dst
}

// shrink downscales so the longest side is at most maxDim, preserving the
// aspect ratio.
func shrink(src *image.RGBA, maxDim int) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return src
	}

	ratio := float64(maxDim) / float64(longest)
	nw := int(float64(w) * ratio)
	nh := int(float64(h) * ratio)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
