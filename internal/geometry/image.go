// Package geometry decodes document images and produces the regions and
// rotations the MRZ search walks through. Every operation returns a new
// buffer; the caller's image is never modified.
package geometry

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	// imaging registers jpeg, png, gif, tiff and bmp; webp comes from x/image.
	_ "golang.org/x/image/webp"

	"github.com/adverant/nexus/passport-worker/internal/errors"
)

// LoadFile opens and decodes an image file, applying EXIF orientation.
func LoadFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.NewInvalidImageError(path, err)
	}
	if err := checkDimensions(img); err != nil {
		return nil, errors.NewInvalidImageError(path, err)
	}
	return img, nil
}

// Decode decodes an image from r, applying EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.NewInvalidImageError("<stream>", err)
	}
	if err := checkDimensions(img); err != nil {
		return nil, errors.NewInvalidImageError("<stream>", err)
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.NewInvalidImageError("<buffer>", fmt.Errorf("empty buffer"))
	}
	return Decode(bytes.NewReader(data))
}

// Validate reports an InvalidImage error for nil or zero-sized images.
func Validate(img image.Image) error {
	if img == nil {
		return errors.NewInvalidImageError("<image>", fmt.Errorf("nil image"))
	}
	if err := checkDimensions(img); err != nil {
		return errors.NewInvalidImageError("<image>", err)
	}
	return nil
}

func checkDimensions(img image.Image) error {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("image has zero dimension (%dx%d)", b.Dx(), b.Dy())
	}
	return nil
}
