package ocr

import (
	"fmt"
	"strings"

	"meterscan/pkg/logger"
	"meterscan/pkg/vision"

	"gocv.io/x/gocv"
)

// Recognizer is the external OCR engine. It is created once at startup and
// shared by every request, so implementations must be safe for concurrent use.
type Recognizer interface {
	Name() string
	Run(img gocv.Mat) (Node, error)
}

// Adapter runs a Recognizer over every preprocessing variant of a crop and
// turns the raw output into candidate strings.
type Adapter struct {
	engine Recognizer
	params vision.Params
	log    *logger.Logger
}

// NewAdapter wires an engine with the preprocessing thresholds.
func NewAdapter(engine Recognizer, params vision.Params, log *logger.Logger) (*Adapter, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Adapter{engine: engine, params: params, log: log}, nil
}

// Recognize returns the deduplicated candidates found in crop. A variant
// whose recognition fails is logged and skipped; the set is unordered.
func (a *Adapter) Recognize(crop gocv.Mat, tag string) Candidates {
	out := Candidates{}
	variants := vision.Variants(crop, a.params)
	defer vision.CloseVariants(variants)

	for _, v := range variants {
		res, err := a.run(v.Mat)
		if err != nil {
			a.log.Warning("ocr %s-%s: %v", tag, v.Tag, err)
			continue
		}
		texts := Flatten(res)
		a.log.Debug("[OCR RAW] %s-%s: %q", tag, v.Tag, snippet(strings.Join(texts, " | "), 240))
		for _, t := range texts {
			out.Add(t)
		}
	}
	return out
}

func (a *Adapter) run(m gocv.Mat) (n Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s engine panic: %v", a.engine.Name(), r)
		}
	}()
	return a.engine.Run(m)
}
