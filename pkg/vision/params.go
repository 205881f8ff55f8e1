// Package vision locates the meter face and digit window in a photo and
// builds the preprocessing variants handed to the recognizer. All pixel
// buffers are gocv Mats; every function returns Mats the caller owns.
package vision

import "image"

// Params holds the empirical thresholds used by the locators and the
// preprocessing chain. They are tuned on photos of round analog water
// meters; tests override them for synthetic fixtures.
type Params struct {
	// Face locator.
	FaceMaxDim      int     // downscale so the larger side is at most this
	FaceMedianKsize int     // median blur aperture (odd)
	HoughDP         float64 // inverse accumulator resolution
	HoughMinDist    float64 // minimum distance between circle centres
	HoughParam1     float64 // Canny high threshold
	HoughParam2     float64 // accumulator threshold
	MinRadiusDiv    float64 // minRadius = minDim / MinRadiusDiv
	MaxRadiusDiv    float64 // maxRadius = minDim / MaxRadiusDiv

	// Window locator.
	WindowKernel     image.Point // closing kernel, wider than tall
	WindowCloseIters int
	WindowMinArea    int
	WindowMinAspect  float64

	// Preprocessing.
	PrepUpscaleBelow int     // upscale when the larger side is below this
	PrepUpscale      float64 // scale factor used for the "prep" variant
	GaussianKsize    int
	AdaptiveBlock    int
	AdaptiveC        float32
	CloseKsize       int
}

// DefaultParams returns the production thresholds.
func DefaultParams() Params {
	return Params{
		FaceMaxDim:      600,
		FaceMedianKsize: 5,
		HoughDP:         1.2,
		HoughMinDist:    100,
		HoughParam1:     80,
		HoughParam2:     30,
		MinRadiusDiv:    6,
		MaxRadiusDiv:    1.8,

		WindowKernel:     image.Pt(7, 3),
		WindowCloseIters: 2,
		WindowMinArea:    800,
		WindowMinAspect:  2.5,

		PrepUpscaleBelow: 1500,
		PrepUpscale:      2.0,
		GaussianKsize:    3,
		AdaptiveBlock:    15,
		AdaptiveC:        9,
		CloseKsize:       3,
	}
}
