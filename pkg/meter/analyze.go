package meter

import (
	"fmt"
	"image"

	"meterscan/pkg/logger"
	"meterscan/pkg/ocr"
	"meterscan/pkg/vision"

	"gocv.io/x/gocv"
)

// Analyzer runs the region strategy over one decoded photo.
type Analyzer struct {
	adapter *ocr.Adapter
	params  vision.Params
	regions Regions
	sink    Sink
	log     *logger.Logger

	detectFace  func(gocv.Mat, vision.Params) (*vision.Circle, error)
	findWindows func(gocv.Mat, vision.Circle, vision.Params) ([]vision.Rect, error)
}

// Analyze collects reading and serial candidates from img. Every step is
// attempted regardless of what earlier steps found; a failing step only
// loses its own candidates.
func (a *Analyzer) Analyze(img gocv.Mat) (reading, id ocr.Candidates) {
	reading, id = ocr.Candidates{}, ocr.Candidates{}
	a.save("input_full", img)

	a.faceStage(img, reading)

	h, w := img.Rows(), img.Cols()
	y0, y1 := a.regions.Body.span(h)
	a.recognizeRegion(img, "bottom", image.Rect(0, y0, w, y1), id)
	y0, y1 = a.regions.Top.span(h)
	a.recognizeRegion(img, "top", image.Rect(0, y0, w, y1), id)
	y0, y1 = a.regions.CenterY.span(h)
	x0, x1 := a.regions.CenterX.span(w)
	a.recognizeRegion(img, "center", image.Rect(x0, y0, x1, y1), reading)

	if a.log.DebugEnabled() {
		a.log.Debug("candidates reading=%v id=%v", reading.Sorted(), id.Sorted())
	}
	return reading, id
}

func (a *Analyzer) faceStage(img gocv.Mat, reading ocr.Candidates) {
	defer a.recoverStage("face")

	c, err := a.detectFace(img, a.params)
	if err != nil {
		a.log.Warning("face detection: %v", err)
		return
	}
	if c == nil {
		a.log.Debug("no meter face found")
		return
	}
	a.log.Debug("meter face at (%d,%d) r=%d", c.X, c.Y, c.R)
	if face, ok := vision.Crop(img, image.Rect(c.X-c.R, c.Y-c.R, c.X+c.R, c.Y+c.R)); ok {
		a.save("face", face)
		face.Close()
	}

	a.windowStage(img, *c, reading)

	strip := image.Rect(
		c.X-c.R, c.Y-int(float64(c.R)*a.regions.StripAbove),
		c.X+c.R, c.Y+int(float64(c.R)*a.regions.StripBelow),
	)
	a.recognizeRegion(img, "face_strip", strip, reading)
}

func (a *Analyzer) windowStage(img gocv.Mat, c vision.Circle, reading ocr.Candidates) {
	defer a.recoverStage("window")

	rects, err := a.findWindows(img, c, a.params)
	if err != nil {
		a.log.Warning("window detection: %v", err)
		return
	}
	if len(rects) > a.regions.MaxWindows {
		rects = rects[:a.regions.MaxWindows]
	}
	for i, r := range rects {
		a.recognizeRegion(img, fmt.Sprintf("window_%d", i), r.Bounds(), reading)
	}
}

func (a *Analyzer) recognizeRegion(img gocv.Mat, tag string, r image.Rectangle, into ocr.Candidates) {
	defer a.recoverStage(tag)

	crop, ok := vision.Crop(img, r)
	if !ok {
		return
	}
	defer crop.Close()
	a.save(tag, crop)
	into.Merge(a.adapter.Recognize(crop, tag))
}

func (a *Analyzer) save(name string, m gocv.Mat) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warning("debug sink %s: %v", name, r)
		}
	}()
	a.sink.Save(name, m)
}

func (a *Analyzer) recoverStage(stage string) {
	if r := recover(); r != nil {
		a.log.Warning("%s stage failed: %v", stage, r)
	}
}
