package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"gocv.io/x/gocv"

	"meterscan/pkg/meter"
	"meterscan/pkg/ocr"
)

func TestIsSupportedExt(t *testing.T) {
	cases := map[string]bool{
		"a.JPG": true, "b.png": true, "c.webp": true, "d.tiff": true,
		"e.txt": false, ".hidden.png": false, "noext": false,
	}
	for name, want := range cases {
		if got := isSupportedExt(name); got != want {
			t.Fatalf("isSupportedExt(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestListImageFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.jpg", "a.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}
	got := listImageFiles(dir)
	if !reflect.DeepEqual(got, []string{"a.png", "b.jpg"}) {
		t.Fatalf("got %v", got)
	}
}

func TestMoveToProcessedSmallFile(t *testing.T) {
	dir := t.TempDir()
	processedDir = filepath.Join(dir, "done")
	src := filepath.Join(dir, "m.jpg")
	if err := os.WriteFile(src, []byte("photo"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := moveToProcessed(src, "m.jpg"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still present: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(processedDir, "m.jpg"))
	if err != nil || string(b) != "photo" {
		t.Fatalf("moved content %q err=%v", b, err)
	}
}

func TestSeenClaimOnce(t *testing.T) {
	s := newSeen()
	if !s.claim("a.jpg") || s.claim("a.jpg") {
		t.Fatalf("claim should succeed exactly once")
	}
	s.release("a.jpg")
	if !s.claim("a.jpg") {
		t.Fatalf("released name should be claimable again")
	}
}

// fixedEngine reports the same text for every crop.
type fixedEngine string

func (e fixedEngine) Name() string { return "fixed" }

func (e fixedEngine) Run(gocv.Mat) (ocr.Node, error) {
	return ocr.Sequence{ocr.Scalar(string(e))}, nil
}

func TestUnreadableFileIsRetried(t *testing.T) {
	svc, err := meter.NewService(meter.DefaultConfig(fixedEngine("123456")))
	if err != nil {
		t.Fatal(err)
	}
	p := &processor{dir: t.TempDir(), svc: svc, seen: newSeen()}
	p.processSingleFile("missing.jpg")
	if !p.seen.claim("missing.jpg") {
		t.Fatalf("failed read kept its claim")
	}
}

func TestDebounceForwardsSettledFiles(t *testing.T) {
	events := make(chan fsnotify.Event, 4)
	errs := make(chan error)
	out := make(chan string, 4)
	go debounce(events, errs, out, 20*time.Millisecond)

	events <- fsnotify.Event{Name: "/in/a.jpg", Op: fsnotify.Create}
	events <- fsnotify.Event{Name: "/in/a.jpg", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "/in/readme.txt", Op: fsnotify.Create}

	select {
	case name := <-out:
		if name != "a.jpg" {
			t.Fatalf("got %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing forwarded")
	}
	close(events)
	for range out {
		t.Fatalf("unexpected extra file")
	}
}
