package media_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/msomdec/snapgram/internal/media"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	return cfg, format
}

func TestPreview_ScalesToFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		opts         media.PreviewOptions
		wantW, wantH int
	}{
		{"wide", 400, 200, media.PreviewOptions{Width: 100, Height: 100}, 100, 50},
		{"tall", 200, 400, media.PreviewOptions{Width: 100, Height: 100}, 50, 100},
		{"no upscale", 50, 40, media.PreviewOptions{Width: 2000, Height: 2000}, 50, 40},
		{"width only", 300, 150, media.PreviewOptions{Width: 60}, 60, 30},
		{"unbounded", 30, 20, media.PreviewOptions{}, 30, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, contentType, err := media.Preview(encodePNG(t, tt.w, tt.h), tt.opts)
			if err != nil {
				t.Fatalf("Preview: %v", err)
			}
			if contentType != "image/png" {
				t.Fatalf("expected image/png, got %s", contentType)
			}
			cfg, format := decodeConfig(t, out)
			if format != "png" || cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Fatalf("got %s %dx%d, want png %dx%d", format, cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestPreview_JPEGStaysJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(120, 80), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	low, contentType, err := media.Preview(buf.Bytes(), media.PreviewOptions{Width: 60, Height: 60, Quality: 10})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", contentType)
	}
	cfg, _ := decodeConfig(t, low)
	if cfg.Width != 60 || cfg.Height != 40 {
		t.Fatalf("expected 60x40, got %dx%d", cfg.Width, cfg.Height)
	}

	high, _, err := media.Preview(buf.Bytes(), media.PreviewOptions{Width: 60, Height: 60, Quality: 100})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(high) <= len(low) {
		t.Fatalf("expected quality 100 to be larger than quality 10, got %d <= %d", len(high), len(low))
	}
}

func TestPreview_GIFBecomesPNG(t *testing.T) {
	palette := color.Palette{color.Black, color.White}
	img := image.NewPaletted(image.Rect(0, 0, 20, 10), palette)
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	out, contentType, err := media.Preview(buf.Bytes(), media.PreviewOptions{Width: 10})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("expected image/png, got %s", contentType)
	}
	if cfg, _ := decodeConfig(t, out); cfg.Width != 10 || cfg.Height != 5 {
		t.Fatalf("expected 10x5, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPreview_Unsupported(t *testing.T) {
	_, _, err := media.Preview([]byte("definitely not an image"), media.PreviewOptions{})
	if !errors.Is(err, media.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// withPNGSize rewrites the IHDR dimensions of an encoded PNG and fixes the
// chunk checksum, leaving the pixel data as it was.
func withPNGSize(data []byte, w, h uint32) []byte {
	out := bytes.Clone(data)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestCheckDimensions(t *testing.T) {
	cfg, err := media.CheckDimensions(encodePNG(t, 30, 20))
	if err != nil {
		t.Fatalf("CheckDimensions: %v", err)
	}
	if cfg.Width != 30 || cfg.Height != 20 {
		t.Fatalf("expected 30x20, got %dx%d", cfg.Width, cfg.Height)
	}

	bomb := withPNGSize(encodePNG(t, 4, 4), 40000, 40000)
	if _, err := media.CheckDimensions(bomb); !errors.Is(err, media.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := media.CheckDimensions([]byte("plain text")); !errors.Is(err, media.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPreview_RejectsOversizedHeader(t *testing.T) {
	bomb := withPNGSize(encodePNG(t, 4, 4), 40000, 40000)
	if _, _, err := media.Preview(bomb, media.PreviewOptions{Width: 10, Height: 10}); !errors.Is(err, media.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge before decoding, got %v", err)
	}
}
