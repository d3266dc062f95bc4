// Package negotiate decides the output encoding of a variant.
package negotiate

import (
	"fmt"
	"strings"

	"edge-resizer-go/internal/config"
	"edge-resizer-go/internal/model"
)

// Format is an output image encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// MimeType returns the media type for the format.
func (f Format) MimeType() string {
	return "image/" + string(f)
}

// modernCodec is the substring looked for in capability headers.
const modernCodec = "webp"

// Negotiator applies the output format policy.
type Negotiator struct {
	fallback  Format
	encodable func(Format) bool
}

// NewNegotiator creates a Negotiator. encodable reports which formats the
// transformer can produce; originals in other formats fall back.
func NewNegotiator(cfg *config.Config, encodable func(Format) bool) *Negotiator {
	return &Negotiator{
		fallback:  Format(cfg.Transform.FallbackFormat),
		encodable: encodable,
	}
}

// AcceptsWebP reports whether a capability header advertises the modern codec.
func AcceptsWebP(accept string) bool {
	return strings.Contains(strings.ToLower(accept), modernCodec)
}

// Negotiate picks the output format for an original of the given mime type.
// Policy, first match wins:
//  1. a webp namespace on an image original selects webp;
//  2. a client advertising webp selects webp;
//  3. otherwise the original's own format, except that webp originals (and
//     formats that cannot be encoded) are downshifted to the fallback.
func (n *Negotiator) Negotiate(d model.Descriptor, accept, mimeType string) (Format, error) {
	major, minor, err := splitMime(mimeType)
	if err != nil {
		return "", err
	}
	if major != "image" {
		return "", fmt.Errorf("%w: %s", model.ErrNotAnImage, mimeType)
	}

	if d.Namespace == model.NamespaceWebP {
		return FormatWebP, nil
	}
	if AcceptsWebP(accept) {
		return FormatWebP, nil
	}

	original := normalize(minor)
	if original == FormatWebP {
		return n.fallback, nil
	}
	if n.encodable != nil && !n.encodable(original) {
		return n.fallback, nil
	}
	return original, nil
}

func splitMime(mimeType string) (major, minor string, err error) {
	base, _, _ := strings.Cut(mimeType, ";")
	major, minor, ok := strings.Cut(strings.ToLower(strings.TrimSpace(base)), "/")
	if !ok || major == "" {
		return "", "", fmt.Errorf("%w: malformed content type %q", model.ErrNotAnImage, mimeType)
	}
	return major, minor, nil
}

// normalize maps mime subtypes onto Format values.
func normalize(minor string) Format {
	switch minor {
	case "jpg", "pjpeg":
		return FormatJPEG
	case "x-ms-bmp", "x-bmp":
		return FormatBMP
	default:
		return Format(minor)
	}
}
