package vision

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// FindWindows looks inside the square bounding c for bright, wide
// rectangles (the mechanical digit window). The result is in original-image
// coordinates, largest area first, and may be empty.
func FindWindows(img gocv.Mat, c Circle, p Params) ([]Rect, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	x1 := max(0, c.X-c.R)
	y1 := max(0, c.Y-c.R)
	bounds := image.Rect(x1, y1, min(img.Cols(), c.X+c.R), min(img.Rows(), c.Y+c.R))
	face, ok := Crop(img, bounds)
	if !ok {
		return nil, nil
	}
	defer face.Close()

	gray, err := toGray(face)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	eq := gocv.NewMat()
	defer eq.Close()
	gocv.EqualizeHist(gray, &eq)

	th := gocv.NewMat()
	defer th.Close()
	gocv.Threshold(eq, &th, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, p.WindowKernel)
	defer kernel.Close()
	for i := 0; i < p.WindowCloseIters; i++ {
		gocv.MorphologyEx(th, &th, gocv.MorphClose, kernel)
	}

	contours := gocv.FindContours(th, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var rects []Rect
	for i := 0; i < contours.Size(); i++ {
		br := gocv.BoundingRect(contours.At(i))
		w, h := br.Dx(), br.Dy()
		if w*h < p.WindowMinArea {
			continue
		}
		if float64(w)/(float64(h)+1e-6) < p.WindowMinAspect {
			continue
		}
		rects = append(rects, Rect{X: x1 + br.Min.X, Y: y1 + br.Min.Y, Width: w, Height: h})
	}
	sort.SliceStable(rects, func(i, j int) bool { return rects[i].Area() > rects[j].Area() })
	return rects, nil
}
