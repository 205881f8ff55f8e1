package meter

import (
	"os"
	"path/filepath"

	"meterscan/pkg/logger"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// Sink receives intermediate crops for operator inspection. Saving is best
// effort and never influences the result.
type Sink interface {
	Save(name string, img gocv.Mat)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Save(string, gocv.Mat) {}

// DirSink writes each crop to <dir>/<name>.png, overwriting the previous
// request's file of the same name.
type DirSink struct {
	dir string
	log *logger.Logger
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string, log *logger.Logger) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &DirSink{dir: dir, log: log}, nil
}

func (s *DirSink) Save(name string, m gocv.Mat) {
	if m.Empty() {
		return
	}
	img, err := m.ToImage()
	if err != nil {
		s.log.Warning("debug dump %s: %v", name, err)
		return
	}
	path := filepath.Join(s.dir, name+".png")
	if err := imaging.Save(img, path); err != nil {
		s.log.Warning("debug dump %s: %v", name, err)
	}
}
