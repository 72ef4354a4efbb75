package geometry

import (
	"image"

	"github.com/disintegration/imaging"
)

// Rotation tags, also used to name debug artifacts.
const (
	Rotate0   = "r0"
	Rotate90  = "r90"
	Rotate180 = "r180"
	Rotate270 = "r270"
)

// Transform maps an image to a new, rotated buffer.
type Transform func(image.Image) image.Image

// Rotation is a tagged transform.
type Rotation struct {
	Tag   string
	Apply Transform
}

// Rotations returns the four canonical rotations in search priority order:
// identity, 90° clockwise, 180°, 90° counter-clockwise.
func Rotations() []Rotation {
	return []Rotation{
		{Tag: Rotate0, Apply: func(img image.Image) image.Image { return imaging.Clone(img) }},
		// imaging rotates counter-clockwise, so 270° CCW is 90° CW.
		{Tag: Rotate90, Apply: func(img image.Image) image.Image { return imaging.Rotate270(img) }},
		{Tag: Rotate180, Apply: func(img image.Image) image.Image { return imaging.Rotate180(img) }},
		{Tag: Rotate270, Apply: func(img image.Image) image.Image { return imaging.Rotate90(img) }},
	}
}

// AttemptTag names one (region, rotation) combination, e.g. "left_r90".
func AttemptTag(region, rotation string) string {
	return region + "_" + rotation
}
