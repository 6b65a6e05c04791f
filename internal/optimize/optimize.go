// Package optimize crops and resizes decoded images to a chosen target
// resolution. Images are scaled to cover the target and the overhang is
// trimmed from the center; they are never enlarged. When the target is
// bigger than the source the output keeps the target's aspect ratio at the
// source's native resolution.
package optimize

import (
	"fmt"
	"image"

	"github.com/Jesssullivan/snapcrop/internal/resolution"
	"github.com/disintegration/imaging"
)

// Plan is the geometry of one crop/resize.
type Plan struct {
	Source  image.Point          // native size
	Target  resolution.Candidate // requested size
	Scale   float64              // applied scale factor, at most 1
	Clamped bool                 // the no-upscale rule shrank the output
	Resize  image.Point          // size after scaling; equals Source when Scale == 1
	Crop    image.Rectangle      // region of the resized image that is kept
}

// Output is the final pixel size.
func (p Plan) Output() image.Point { return p.Crop.Size() }

// PlanFor computes the cover-then-crop geometry for a srcW x srcH image.
func PlanFor(srcW, srcH int, target resolution.Candidate) Plan {
	sw, sh := uint64(srcW), uint64(srcH)
	cw, ch := uint64(target.Width), uint64(target.Height)

	var rw, rh, ow, oh uint64
	var scale float64
	clamped := false

	if cw*sh >= ch*sw {
		// Target is relatively wider: width is the limiting axis.
		if cw <= sw {
			rw, rh = cw, max(ch, roundDiv(sh*cw, sw))
			ow, oh = cw, ch
			scale = float64(cw) / float64(sw)
		} else {
			rw, rh = sw, sh
			ow, oh = sw, max(1, ch*sw/cw)
			scale, clamped = 1, true
		}
	} else {
		if ch <= sh {
			rw, rh = max(cw, roundDiv(sw*ch, sh)), ch
			ow, oh = cw, ch
			scale = float64(ch) / float64(sh)
		} else {
			rw, rh = sw, sh
			ow, oh = max(1, cw*sh/ch), sh
			scale, clamped = 1, true
		}
	}

	x0, y0 := int((rw-ow)/2), int((rh-oh)/2)
	return Plan{
		Source:  image.Pt(srcW, srcH),
		Target:  target,
		Scale:   scale,
		Clamped: clamped,
		Resize:  image.Pt(int(rw), int(rh)),
		Crop:    image.Rect(x0, y0, x0+int(ow), y0+int(oh)),
	}
}

func roundDiv(a, b uint64) uint64 {
	return (a + b/2) / b
}

// Apply resizes img with a Lanczos filter as the plan says and cuts out the
// crop rectangle.
func Apply(img image.Image, p Plan) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Size() != p.Source {
		return nil, fmt.Errorf("optimize: image is %dx%d, plan expects %dx%d",
			b.Dx(), b.Dy(), p.Source.X, p.Source.Y)
	}

	src := img
	if p.Resize != p.Source {
		src = imaging.Resize(img, p.Resize.X, p.Resize.Y, imaging.Lanczos)
	}
	return imaging.Crop(src, p.Crop.Add(src.Bounds().Min)), nil
}

// Transform plans and applies the crop/resize of img to target.
func Transform(img image.Image, target resolution.Candidate) (*image.NRGBA, Plan, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, Plan{}, fmt.Errorf("optimize: empty image")
	}
	p := PlanFor(b.Dx(), b.Dy(), target)
	out, err := Apply(img, p)
	if err != nil {
		return nil, p, err
	}
	return out, p, nil
}
