package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Variant is one preprocessing hypothesis for a crop.
type Variant struct {
	Tag string
	Mat gocv.Mat
}

// Variants returns up to four hypotheses for crop: the original, its
// inversion, the binarized "prep" image and its inversion. No single
// binarization survives every lighting/polarity combination, so the
// recognizer sees all of them. A variant that cannot be built is skipped.
// The caller owns the returned Mats; release them with CloseVariants.
func Variants(crop gocv.Mat, p Params) []Variant {
	if crop.Empty() {
		return nil
	}
	out := []Variant{{Tag: "orig", Mat: crop.Clone()}}
	if inv, err := invert(crop); err == nil {
		out = append(out, Variant{Tag: "inv", Mat: inv})
	}
	prep, err := Preprocess(crop, p.PrepUpscale, p)
	if err != nil {
		return out
	}
	out = append(out, Variant{Tag: "prep", Mat: prep})
	if inv, err := invert(prep); err == nil {
		out = append(out, Variant{Tag: "prep_inv", Mat: inv})
	}
	return out
}

// CloseVariants releases every Mat in vs.
func CloseVariants(vs []Variant) {
	for _, v := range vs {
		v.Mat.Close()
	}
}

func invert(src gocv.Mat) (dst gocv.Mat, err error) {
	defer recoverStage("invert", &err)
	dst = gocv.NewMat()
	gocv.BitwiseNot(src, &dst)
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), ErrEmptyImage
	}
	return dst, nil
}

// Preprocess builds the binarized image used by the "prep" variant:
// grayscale, optional upscale for small crops, histogram equalization, a
// light Gaussian blur, adaptive OR Otsu thresholding and one closing pass to
// re-join broken strokes. upscale <= 0 disables resizing.
func Preprocess(img gocv.Mat, upscale float64, p Params) (out gocv.Mat, err error) {
	defer recoverStage("preprocess", &err)

	gray, err := toGray(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	if upscale > 0 && max(gray.Rows(), gray.Cols()) < p.PrepUpscaleBelow {
		scaled := gocv.NewMat()
		gocv.Resize(gray, &scaled, image.Point{}, upscale, upscale, gocv.InterpolationCubic)
		if scaled.Empty() {
			scaled.Close()
			return gocv.NewMat(), fmt.Errorf("upscale: %w", ErrEmptyImage)
		}
		gray.Close()
		gray = scaled
	}

	eq := gocv.NewMat()
	defer eq.Close()
	gocv.EqualizeHist(gray, &eq)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := p.GaussianKsize
	gocv.GaussianBlur(eq, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	th1 := adaptiveOrOtsu(blurred, p)
	defer th1.Close()
	th2 := otsu(blurred)
	defer th2.Close()

	combined := gocv.NewMat()
	gocv.BitwiseOr(th1, th2, &combined)
	if combined.Empty() {
		combined.Close()
		return gocv.NewMat(), fmt.Errorf("combine thresholds: %w", ErrEmptyImage)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.CloseKsize, p.CloseKsize))
	defer kernel.Close()
	gocv.MorphologyEx(combined, &combined, gocv.MorphClose, kernel)
	return combined, nil
}

func otsu(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Threshold(src, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return dst
}

// adaptiveOrOtsu runs a Gaussian adaptive threshold and falls back to Otsu
// when the block size is unusable, OpenCV panics, or the output is empty.
func adaptiveOrOtsu(src gocv.Mat, p Params) (dst gocv.Mat) {
	block := p.AdaptiveBlock
	if block < 3 || block%2 == 0 {
		return otsu(src)
	}
	defer func() {
		if r := recover(); r != nil {
			dst = otsu(src)
		}
	}()
	dst = gocv.NewMat()
	gocv.AdaptiveThreshold(src, &dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, block, p.AdaptiveC)
	if dst.Empty() {
		dst.Close()
		return otsu(src)
	}
	return dst
}

func recoverStage(stage string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %v", stage, r)
	}
}
