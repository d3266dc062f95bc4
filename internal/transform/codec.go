package transform

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	// Decoders for image.Decode.
	_ "golang.org/x/image/webp"

	"github.com/gen2brain/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"edge-resizer-go/internal/negotiate"
)

// encodeFunc writes img in one output format at the given quality.
// Lossless formats ignore quality.
type encodeFunc func(w io.Writer, img image.Image, quality int) error

var encoders = map[negotiate.Format]encodeFunc{
	negotiate.FormatWebP: func(w io.Writer, img image.Image, quality int) error {
		return webp.Encode(w, img, webp.Options{Quality: quality})
	},
	negotiate.FormatJPEG: func(w io.Writer, img image.Image, quality int) error {
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: quality})
	},
	negotiate.FormatPNG: func(w io.Writer, img image.Image, _ int) error {
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	},
	negotiate.FormatGIF: func(w io.Writer, img image.Image, _ int) error {
		return gif.Encode(w, img, nil)
	},
	negotiate.FormatBMP: func(w io.Writer, img image.Image, _ int) error {
		return bmp.Encode(w, img)
	},
	negotiate.FormatTIFF: func(w io.Writer, img image.Image, _ int) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
}

// Encodable reports whether f can be produced.
func Encodable(f negotiate.Format) bool {
	_, ok := encoders[f]
	return ok
}

func encode(w io.Writer, img image.Image, f negotiate.Format, quality int) error {
	enc, ok := encoders[f]
	if !ok {
		return fmt.Errorf("no encoder for %q", f)
	}
	return enc(w, img, quality)
}

// flatten composites img onto white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
