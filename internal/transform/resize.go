package transform

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"edge-resizer-go/internal/model"
)

// plan is the source crop rectangle and output size of a resize.
type plan struct {
	src    image.Rectangle
	width  int
	height int
}

// planResize computes the resize for a source of the given bounds.
// A single axis preserves the aspect ratio; both axes cover the box and
// crop the overflow around the centre. ok is false when no resize is needed.
func planResize(bounds image.Rectangle, p model.Params, withoutEnlargement bool) (plan, bool) {
	sw, sh := bounds.Dx(), bounds.Dy()
	if p.IsZero() || sw == 0 || sh == 0 {
		return plan{}, false
	}

	var scale float64
	out := plan{src: bounds}
	switch {
	case p.Width != nil && p.Height != nil:
		out.width, out.height = *p.Width, *p.Height
		scale = math.Max(float64(out.width)/float64(sw), float64(out.height)/float64(sh))
		cw := int(math.Round(float64(out.width) / scale))
		ch := int(math.Round(float64(out.height) / scale))
		cw, ch = min(max(cw, 1), sw), min(max(ch, 1), sh)
		x0 := bounds.Min.X + (sw-cw)/2
		y0 := bounds.Min.Y + (sh-ch)/2
		out.src = image.Rect(x0, y0, x0+cw, y0+ch)
	case p.Width != nil:
		scale = float64(*p.Width) / float64(sw)
		out.width = *p.Width
		out.height = max(int(math.Round(float64(sh)*scale)), 1)
	default:
		scale = float64(*p.Height) / float64(sh)
		out.height = *p.Height
		out.width = max(int(math.Round(float64(sw)*scale)), 1)
	}

	if withoutEnlargement && scale > 1 {
		return plan{}, false
	}
	if out.src == bounds && out.width == sw && out.height == sh {
		return plan{}, false
	}
	return out, true
}

// resize applies p with Catmull-Rom resampling.
func resize(src image.Image, p plan) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, p.src, xdraw.Src, nil)
	return dst
}
