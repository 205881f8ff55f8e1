package vision

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	light = color.RGBA{R: 210, G: 210, B: 210, A: 255}
)

func blank(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestDetectFaceBlankImage(t *testing.T) {
	img := blank(480, 640)
	defer img.Close()
	c, err := DetectFace(img, DefaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Fatalf("expected no face on a blank image, got %+v", *c)
	}
}

func TestDetectFaceFindsDominantCircle(t *testing.T) {
	img := blank(900, 1200)
	defer img.Close()
	gocv.Circle(&img, image.Pt(600, 450), 300, light, -1)
	gocv.Circle(&img, image.Pt(100, 100), 40, white, -1)

	c, err := DetectFace(img, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatalf("no face found")
	}
	if abs(c.X-600) > 30 || abs(c.Y-450) > 30 || abs(c.R-300) > 40 {
		t.Fatalf("face off target: %+v", *c)
	}
	if c.X < 0 || c.X >= img.Cols() || c.Y < 0 || c.Y >= img.Rows() || c.R < 1 || c.R > max(img.Rows(), img.Cols()) {
		t.Fatalf("face outside image bounds: %+v", *c)
	}
}

func TestDetectFaceEmptyMat(t *testing.T) {
	m := gocv.NewMat()
	defer m.Close()
	if _, err := DetectFace(m, DefaultParams()); err == nil {
		t.Fatalf("expected error for empty mat")
	}
}

func TestFindWindowsFiltersShapes(t *testing.T) {
	img := blank(400, 400)
	defer img.Close()
	// digit window: 200x40, aspect 5
	gocv.Rectangle(&img, image.Rect(100, 180, 300, 220), white, -1)
	// square: big enough but not wide
	gocv.Rectangle(&img, image.Rect(40, 40, 100, 100), white, -1)
	// wide sliver under the area floor
	gocv.Rectangle(&img, image.Rect(200, 320, 260, 330), white, -1)

	p := DefaultParams()
	rects, err := FindWindows(img, Circle{X: 200, Y: 200, R: 190}, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(rects) == 0 {
		t.Fatalf("digit window not found")
	}
	for _, r := range rects {
		if r.Area() < p.WindowMinArea {
			t.Fatalf("rect below area floor: %+v", r)
		}
		if float64(r.Width)/float64(r.Height) < p.WindowMinAspect {
			t.Fatalf("rect below aspect floor: %+v", r)
		}
	}
	for i := 1; i < len(rects); i++ {
		if rects[i].Area() > rects[i-1].Area() {
			t.Fatalf("rects not sorted by area: %+v", rects)
		}
	}
	top := rects[0]
	if abs(top.X-100) > 6 || abs(top.Y-180) > 6 || abs(top.Width-200) > 12 {
		t.Fatalf("window off target: %+v", top)
	}
}

func TestFindWindowsFaceOutsideImage(t *testing.T) {
	img := blank(100, 100)
	defer img.Close()
	rects, err := FindWindows(img, Circle{X: 500, Y: 500, R: 20}, DefaultParams())
	if err != nil || len(rects) != 0 {
		t.Fatalf("expected empty result, got %v %v", rects, err)
	}
}

func TestVariants(t *testing.T) {
	crop := blank(60, 200)
	defer crop.Close()
	gocv.Rectangle(&crop, image.Rect(20, 15, 180, 45), white, -1)

	vs := Variants(crop, DefaultParams())
	defer CloseVariants(vs)
	want := []string{"orig", "inv", "prep", "prep_inv"}
	if len(vs) != len(want) {
		t.Fatalf("expected %d variants, got %d", len(want), len(vs))
	}
	for i, v := range vs {
		if v.Tag != want[i] {
			t.Fatalf("variant %d tag %q, want %q", i, v.Tag, want[i])
		}
		if v.Mat.Empty() {
			t.Fatalf("variant %s is empty", v.Tag)
		}
	}
	if empty := Variants(gocv.NewMat(), DefaultParams()); empty != nil {
		t.Fatalf("expected no variants for an empty crop")
	}
}

func TestPreprocessUpscalesSmallCrops(t *testing.T) {
	crop := blank(50, 100)
	defer crop.Close()
	p := DefaultParams()
	out, err := Preprocess(crop, p.PrepUpscale, p)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if out.Rows() != 100 || out.Cols() != 200 || out.Channels() != 1 {
		t.Fatalf("unexpected output %dx%d c=%d", out.Rows(), out.Cols(), out.Channels())
	}
}

func TestPreprocessFallsBackOnBadBlock(t *testing.T) {
	crop := blank(50, 100)
	defer crop.Close()
	p := DefaultParams()
	p.AdaptiveBlock = 4
	out, err := Preprocess(crop, 0, p)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if out.Rows() != 50 || out.Cols() != 100 {
		t.Fatalf("unexpected output %dx%d", out.Rows(), out.Cols())
	}
}

func TestCropClamps(t *testing.T) {
	img := blank(100, 100)
	defer img.Close()
	c, ok := Crop(img, image.Rect(-10, 90, 50, 200))
	if !ok {
		t.Fatalf("expected partial crop")
	}
	defer c.Close()
	if c.Rows() != 10 || c.Cols() != 50 {
		t.Fatalf("got %dx%d", c.Rows(), c.Cols())
	}
	if _, ok := Crop(img, image.Rect(200, 200, 300, 300)); ok {
		t.Fatalf("expected no crop outside bounds")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
