package extractor

import (
	"context"
	"image"

	"github.com/adverant/nexus/passport-worker/internal/geometry"
	"github.com/adverant/nexus/passport-worker/internal/logging"
	"github.com/adverant/nexus/passport-worker/internal/mrz"
	"github.com/adverant/nexus/passport-worker/internal/passport"
	"github.com/adverant/nexus/passport-worker/internal/recognizer"
)

// State of a search.
type State int

const (
	Searching State = iota
	Found
	Exhausted
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MaxAttempts is the size of the search space: the full image and four
// edge strips, each under four rotations.
const MaxAttempts = 5 * 4

// Recognizer is the per-attempt recognition step the controller drives.
type Recognizer interface {
	Recognize(ctx context.Context, tag string, img image.Image) recognizer.Recognition
}

// Outcome is the terminal state of a search. Bundle is set only when State is Found.
type Outcome struct {
	State    State
	Bundle   *mrz.RawBundle
	Attempts []passport.Attempt
}

// Controller enumerates (region x rotation) combinations in priority order
// and stops at the first recognized MRZ.
type Controller struct {
	recognizer Recognizer
	logger     *logging.Logger
	rotations  []geometry.Rotation
}

// NewController creates a search controller
func NewController(rec Recognizer, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Controller{
		recognizer: rec,
		logger:     logger,
		rotations:  geometry.Rotations(),
	}
}

// Search tries the full image under every rotation, then each edge strip
// under every rotation. Edge strips are only cropped once the full image
// has failed. The search is not cancellable: ctx is detached before it
// reaches the recognizer. An error is returned only for an invalid image,
// before any attempt is made.
func (c *Controller) Search(ctx context.Context, img image.Image) (*Outcome, error) {
	full, err := geometry.FullRegion(img)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	out := &Outcome{
		State:    Searching,
		Attempts: make([]passport.Attempt, 0, MaxAttempts),
	}

	if c.tryRegion(ctx, full.Tag, img, out) {
		return out, nil
	}

	edges, err := geometry.EdgeRegions(img)
	if err != nil {
		return nil, err
	}
	for _, region := range edges {
		if c.tryRegion(ctx, region.Tag, geometry.Crop(img, region), out) {
			return out, nil
		}
	}

	out.State = Exhausted
	return out, nil
}

func (c *Controller) tryRegion(ctx context.Context, regionTag string, roi image.Image, out *Outcome) bool {
	for _, rot := range c.rotations {
		tag := geometry.AttemptTag(regionTag, rot.Tag)
		rec := c.recognizer.Recognize(ctx, tag, rot.Apply(roi))

		out.Attempts = append(out.Attempts, passport.Attempt{
			Region:   regionTag,
			Rotation: rot.Tag,
			Found:    rec.Found(),
			Artifact: rec.Artifact,
		})

		if rec.Found() {
			c.logger.Debug("MRZ found", "tag", tag, "attempts", len(out.Attempts))
			out.State = Found
			out.Bundle = rec.Bundle
			return true
		}
	}
	return false
}
