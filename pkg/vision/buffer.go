package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when a stage receives a Mat without pixels.
var ErrEmptyImage = errors.New("empty image")

// Circle is a detected meter face in original-image pixel coordinates.
type Circle struct {
	X, Y, R int
}

// Rect is a candidate digit window in original-image pixel coordinates.
type Rect struct {
	X, Y, Width, Height int
}

// Area returns Width*Height.
func (r Rect) Area() int { return r.Width * r.Height }

// Bounds converts r to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Crop copies the part of img inside r (clamped to the image) into a new
// Mat. The copy never aliases img, so later thresholding of the crop cannot
// touch sibling regions. ok is false when the clamped region is empty.
func Crop(img gocv.Mat, r image.Rectangle) (gocv.Mat, bool) {
	r = r.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if img.Empty() || r.Empty() {
		return gocv.NewMat(), false
	}
	region := img.Region(r)
	defer region.Close()
	return region.Clone(), true
}

// toGray returns a single-channel copy of src.
func toGray(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}
	switch src.Channels() {
	case 1:
		return src.Clone(), nil
	case 3, 4:
		code := gocv.ColorBGRToGray
		if src.Channels() == 4 {
			code = gocv.ColorBGRAToGray
		}
		gray := gocv.NewMat()
		if err := gocv.CvtColor(src, &gray, code); err != nil {
			gray.Close()
			return gocv.NewMat(), fmt.Errorf("convert to grayscale: %w", err)
		}
		return gray, nil
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported channel count %d", src.Channels())
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
