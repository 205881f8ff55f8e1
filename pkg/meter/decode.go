package meter

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	// extra formats accepted on upload
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when the uploaded bytes are not an image.
var ErrDecode = errors.New("cannot decode image")

// Decode turns uploaded bytes into a BGR Mat. Phone photos carry their
// rotation in EXIF, so the image/* decoders run first with auto-orientation;
// formats only OpenCV understands fall through to IMDecode.
func Decode(raw []byte) (gocv.Mat, error) {
	if len(raw) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty input", ErrDecode)
	}

	img, derr := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if derr == nil {
		m, err := gocv.ImageToMatRGB(img)
		if err == nil {
			if !m.Empty() {
				return m, nil
			}
			m.Close()
		}
	}

	m, err := gocv.IMDecode(raw, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if m.Empty() {
		m.Close()
		if derr == nil {
			derr = errors.New("empty pixel buffer")
		}
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrDecode, derr)
	}
	return m, nil
}
