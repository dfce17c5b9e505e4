// Package media renders image previews and generated avatars.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for bytes that do not decode as JPEG, PNG,
// GIF or WebP.
var ErrUnsupportedFormat = errors.New("media: unsupported image format")

// ErrTooLarge is returned for images whose header claims more than MaxPixels.
var ErrTooLarge = errors.New("media: image dimensions too large")

// MaxPixels bounds width times height of any image this package decodes.
const MaxPixels = 50_000_000

// CheckDimensions reads only the image header and returns its size. It
// fails with ErrTooLarge when a full decode would exceed MaxPixels.
func CheckDimensions(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, ErrUnsupportedFormat
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, ErrUnsupportedFormat
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return cfg, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return cfg, nil
}

// PreviewOptions bounds the preview. Zero Width or Height leaves that side
// unbounded. Quality applies to JPEG output, 1 to 100.
type PreviewOptions struct {
	Width   int
	Height  int
	Quality int
}

// Preview decodes data and scales it to fit within the requested box,
// keeping the aspect ratio and never enlarging. PNG and GIF sources are
// encoded as PNG, everything else as JPEG. It returns the encoded bytes and
// their content type.
func Preview(data []byte, opts PreviewOptions) ([]byte, string, error) {
	if _, err := CheckDimensions(data); err != nil {
		return nil, "", err
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decode %s image: %w", format, err)
	}

	img := src
	if w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), opts.Width, opts.Height); w != src.Bounds().Dx() || h != src.Bounds().Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	switch format {
	case "png", "gif":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality(opts.Quality)}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

// fit returns the largest size within maxW x maxH with the aspect ratio of
// w x h, capped at w x h.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}
	if scale == 1.0 {
		return w, h
	}
	return max(1, int(float64(w)*scale+0.5)), max(1, int(float64(h)*scale+0.5))
}

func quality(q int) int {
	if q <= 0 {
		return jpeg.DefaultQuality
	}
	return min(q, 100)
}
