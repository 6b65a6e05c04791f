package optimize

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Format is an output encoding. Its string form is also the file extension.
type Format string

const (
	PNG  Format = "png"
	JPG  Format = "jpg"
	JPEG Format = "jpeg"
	WebP Format = "webp"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIF  Format = "tif"
	TIFF Format = "tiff"
)

// DefaultQuality is used for lossy formats when no quality is given.
const DefaultQuality = 90

// Formats lists every supported output format.
var Formats = []Format{PNG, JPG, JPEG, WebP, GIF, BMP, TIF, TIFF}

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("optimize: unsupported format %q", s)
}

// Ext is the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType is the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case JPG, JPEG:
		return "image/jpeg"
	case TIF, TIFF:
		return "image/tiff"
	default:
		return "image/" + string(f)
	}
}

// Encode writes img in format f. quality applies to jpeg and webp; values
// outside 1..100 fall back to DefaultQuality.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var err error
	switch f {
	case PNG:
		err = png.Encode(w, img)
	case JPG, JPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case WebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case GIF:
		err = gif.Encode(w, img, nil)
	case BMP:
		err = bmp.Encode(w, img)
	case TIF, TIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("optimize: unsupported format %q", f)
	}
	if err != nil {
		return fmt.Errorf("optimize: encode %s: %w", f, err)
	}
	return nil
}

// Decode decodes raw image bytes, returning the image and the detected
// format name.
func Decode(data []byte) (image.Image, string, error) {
	r := bytes.NewReader(data)

	img, format, err := image.Decode(r)
	if err == nil {
		return img, format, nil
	}

	// Extended WebP files the pure-Go decoder rejects.
	r.Reset(data)
	if img, werr := webp.Decode(r); werr == nil {
		return img, "webp", nil
	}

	return nil, "", fmt.Errorf("optimize: decode: %w", err)
}
