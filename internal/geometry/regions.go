package geometry

import (
	"image"

	"github.com/disintegration/imaging"
)

// Region tags, also used to name debug artifacts.
const (
	RegionFull  = "full"
	RegionLeft  = "left"
	RegionRight = "right"
	RegionBot1  = "bot1"
	RegionBot2  = "bot2"
)

// Edge strip proportions. The two bottom strips overlap so that at least
// one crop boundary misses the MRZ baseline.
const (
	sideStripFraction  = 0.28
	lowerStripAStart   = 0.62
	lowerStripBStart   = 0.70
	rightStripStartsAt = 1 - sideStripFraction
)

// Region is a tagged rectangle in the source image's coordinate space.
type Region struct {
	Tag    string
	Bounds image.Rectangle
}

// Empty reports whether the region has no pixels.
func (r Region) Empty() bool { return r.Bounds.Empty() }

// FullRegion returns the whole image.
func FullRegion(img image.Image) (Region, error) {
	if err := Validate(img); err != nil {
		return Region{}, err
	}
	return Region{Tag: RegionFull, Bounds: img.Bounds()}, nil
}

// EdgeRegions returns, in search order, the left strip, the right strip and
// the two bottom strips where a displaced MRZ usually sits.
func EdgeRegions(img image.Image) ([]Region, error) {
	if err := Validate(img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	x := func(f float64) int { return b.Min.X + int(float64(w)*f) }
	y := func(f float64) int { return b.Min.Y + int(float64(h)*f) }

	return []Region{
		{Tag: RegionLeft, Bounds: image.Rect(b.Min.X, b.Min.Y, x(sideStripFraction), b.Max.Y)},
		{Tag: RegionRight, Bounds: image.Rect(x(rightStripStartsAt), b.Min.Y, b.Max.X, b.Max.Y)},
		{Tag: RegionBot1, Bounds: image.Rect(b.Min.X, y(lowerStripAStart), b.Max.X, b.Max.Y)},
		{Tag: RegionBot2, Bounds: image.Rect(b.Min.X, y(lowerStripBStart), b.Max.X, b.Max.Y)},
	}, nil
}

// Crop copies a region into a new buffer whose origin is (0, 0). An empty
// region yields an empty image.
func Crop(img image.Image, r Region) image.Image {
	return imaging.Crop(img, r.Bounds)
}
