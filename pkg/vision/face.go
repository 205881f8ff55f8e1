package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// DetectFace searches img for the circular meter face. It returns nil (and
// no error) when no circle is found; an error only for a Mat that cannot be
// processed at all, which callers should treat the same as "no face".
func DetectFace(img gocv.Mat, p Params) (*Circle, error) {
	gray, err := toGray(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	h, w := gray.Rows(), gray.Cols()
	scale := 1.0
	if m := max(h, w); p.FaceMaxDim > 0 && m > p.FaceMaxDim {
		scale = float64(p.FaceMaxDim) / float64(m)
	}
	small := gocv.NewMat()
	defer small.Close()
	if scale != 1.0 {
		gocv.Resize(gray, &small, image.Point{}, scale, scale, gocv.InterpolationArea)
	} else {
		gray.CopyTo(&small)
	}
	if small.Empty() {
		return nil, ErrEmptyImage
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(small, &blurred, p.FaceMedianKsize)

	minDim := float64(min(small.Rows(), small.Cols()))
	minR := int(minDim / p.MinRadiusDiv)
	maxR := int(minDim / p.MaxRadiusDiv)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient, p.HoughDP, p.HoughMinDist,
		p.HoughParam1, p.HoughParam2, minR, maxR)

	if circles.Empty() || circles.Cols() == 0 {
		return nil, nil
	}

	// The face is the dominant circle; smaller hits are screws, dials or noise.
	bestIdx, bestR := -1, float32(0)
	for i := 0; i < circles.Cols(); i++ {
		if r := circles.GetFloatAt(0, i*3+2); r > bestR {
			bestIdx, bestR = i, r
		}
	}
	if bestIdx < 0 {
		return nil, nil
	}

	cx := int(float64(circles.GetFloatAt(0, bestIdx*3)) / scale)
	cy := int(float64(circles.GetFloatAt(0, bestIdx*3+1)) / scale)
	cr := int(float64(bestR) / scale)
	return &Circle{
		X: clamp(cx, 0, w-1),
		Y: clamp(cy, 0, h-1),
		R: clamp(cr, 1, max(h, w)),
	}, nil
}
