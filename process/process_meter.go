package main

import (
	"flag"
	"io"
	"log"
	"math"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meterscan/models"
	"meterscan/pkg/logger"
	"meterscan/pkg/meter"
	"meterscan/pkg/ocr"
)

const sourceBatch = "batch"

// Global DB handle for helper funcs
var db *gorm.DB

// global flags (parsed in main)
var (
	verbose      bool
	processedDir string
)

// seen tracks file names that already have a batch reading.
type seen struct {
	mu    sync.RWMutex
	files map[string]struct{}
}

func newSeen() *seen { return &seen{files: make(map[string]struct{}, 1024)} }


// claim marks name as taken and reports whether it was free.
func (s *seen) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; ok {
		return false
	}
	s.files[name] = struct{}{}
	return true
}

// release frees a claim whose file could not be read, so a later event for
// the same name is retried.
func (s *seen) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

func mustService() *meter.Service {
	debug := os.Getenv("DEBUG") == "1"
	l := logger.New(os.Getenv("LOG_DIR"), debug)
	engine, err := ocr.NewEngine(os.Getenv("OCR_ENGINE"), os.Getenv("OCR_REMOTE_URL"), 30*time.Second, ocr.DefaultTesseractConfig())
	if err != nil {
		log.Fatalf("ocr engine: %v", err)
	}
	cfg := meter.DefaultConfig(engine)
	cfg.Logger = l
	s, err := meter.NewService(cfg)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	return s
}

// Main: reads every meter photo in a directory, stores one reading per file
// and moves it to the processed directory; optional watch mode.
func main() {
	dirFlag := flag.String("dir", "photos/inbox", "directory to scan for meter photos")
	flag.StringVar(&processedDir, "processed", "photos/processed", "directory processed photos are moved to")
	dryRun := flag.Bool("dry-run", false, "Skip all DB queries and writes; print what would be read")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.Parse()

	svc := mustService()
	defer svc.Close()
	files := listImageFiles(*dirFlag)

	if *dryRun {
		log.Printf("Dry-run: reading %d files in %s (no DB interaction)", len(files), *dirFlag)
		for _, f := range files {
			res, err := svc.AnalyzeFile(filepath.Join(*dirFlag, f))
			if err != nil {
				log.Printf("%s: %v", f, err)
				continue
			}
			log.Printf("%s reading=%q meterId=%q", f, res.Reading, res.MeterID)
		}
		return
	}

	db = mustInitDBFromEnv()
	done := preloadSeen()
	log.Printf("Preloaded: %d files already read", len(done.files))

	p := &processor{dir: *dirFlag, svc: svc, seen: done}
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(p, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(p, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// preloadSeen loads the file names of earlier batch readings to avoid a
// query per file.
func preloadSeen() *seen {
	s := newSeen()
	var names []string
	if err := db.Model(&models.Reading{}).Where("source = ?", sourceBatch).Pluck("file_name", &names).Error; err == nil {
		for _, n := range names {
			s.files[n] = struct{}{}
		}
	}
	return s
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(p *processor, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(p.dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", p.dir)

	fileCh := make(chan string, 256)
	go debounce(w.Events, w.Errors, fileCh, 300*time.Millisecond)
	runWorkerPool(p, nil, workers, fileCh)
	return nil
}

// debounce forwards a created file once it has been quiet for settle, so
// half-written uploads are not read. out is closed when events closes.
func debounce(events <-chan fsnotify.Event, errs <-chan error, out chan<- string, settle time.Duration) {
	defer close(out)
	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				name := filepath.Base(ev.Name)
				if isSupportedExt(name) {
					pending[name] = time.Now()
				}
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > settle {
					out <- name
					delete(pending, name)
				}
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func isSupportedExt(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// runWorkerPool processes initial and then everything arriving on extra
// until all channels are drained.
func runWorkerPool(p *processor, initial []string, workers int, extra ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				p.processSingleFile(name)
			}
		}()
	}
	var feed sync.WaitGroup
	feed.Add(1)
	go func() {
		defer feed.Done()
		for _, f := range initial {
			fileCh <- f
		}
	}()
	for _, ch := range extra {
		feed.Add(1)
		go func(c <-chan string) {
			defer feed.Done()
			for n := range c {
				fileCh <- n
			}
		}(ch)
	}
	feed.Wait()
	close(fileCh)
	wg.Wait()
}

type processor struct {
	dir  string
	svc  *meter.Service
	seen *seen
}

// processSingleFile reads one photo, records it and moves it away. A file
// that already has a batch reading is skipped.
func (p *processor) processSingleFile(name string) {
	if !p.seen.claim(name) {
		logV("SKIP already read %s", name)
		return
	}
	src := filepath.Join(p.dir, name)
	start := time.Now()
	res, err := p.svc.AnalyzeFile(src)
	if err != nil {
		log.Printf("WARN read %s: %v", name, err)
		p.seen.release(name)
		return
	}
	rec := models.Reading{
		FileName:    name,
		StorePath:   filepath.ToSlash(filepath.Join(processedDir, name)),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Source:      sourceBatch,
		DurationMs:  time.Since(start).Milliseconds(),
	}
	if res.Failed() {
		rec.Failed, rec.FailedReason = true, truncate(res.MeterID, 255)
	} else {
		rec.DetectedReading, rec.DetectedMeterID = res.Reading, res.MeterID
	}
	if err := saveReading(&rec); err != nil {
		log.Printf("ERROR record %s: %v", name, err)
		p.seen.release(name)
		return
	}
	log.Printf("READ id=%d file=%s reading=%q meterId=%q", rec.ID, name, res.Reading, res.MeterID)
	if err := moveToProcessed(src, name); err != nil {
		log.Printf("WARN failed to move processed file %s: %v", name, err)
	} else {
		logV("moved %s to %s", name, processedDir)
	}
}

func saveReading(rec *models.Reading) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if rec.Failed || rec.DetectedMeterID == "" || rec.DetectedReading == "" {
			return nil
		}
		m := models.Meter{Serial: rec.DetectedMeterID, LastReading: rec.DetectedReading, LastReadingAt: &rec.CreatedAt, LastReadingID: &rec.ID, Readings: 1}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "serial"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_reading":    rec.DetectedReading,
				"last_reading_at": rec.CreatedAt,
				"last_reading_id": rec.ID,
				"readings":        gorm.Expr("meters.readings + 1"),
			}),
		}).Create(&m).Error
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// moveToProcessed moves a photo into processedDir, downscaling it when it
// is larger than maxBytes. It attempts an atomic rename and falls back to
// copy+remove when necessary.
func moveToProcessed(srcFullPath, name string) error {
	const maxBytes = 1_000_000
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(processedDir, name)

	fi, err := os.Stat(srcFullPath)
	if err != nil {
		return err
	}
	if fi.Size() <= maxBytes {
		return moveFile(srcFullPath, dst)
	}
	img, err := imaging.Open(srcFullPath, imaging.AutoOrientation(true))
	if err != nil {
		return moveFile(srcFullPath, dst)
	}
	// size roughly scales with area
	scale := math.Sqrt(float64(maxBytes) / float64(fi.Size()))
	scale = math.Max(0.1, math.Min(scale, 0.95))
	w := int(math.Max(1, math.Round(float64(img.Bounds().Dx())*scale)))
	img = imaging.Resize(img, w, 0, imaging.Lanczos)
	if err := imaging.Save(img, dst); err != nil {
		return moveFile(srcFullPath, dst)
	}
	return os.Remove(srcFullPath)
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
