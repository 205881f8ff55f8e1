package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"meterscan/pkg/logger"
	"meterscan/pkg/meter"
	"meterscan/pkg/ocr"

	"github.com/goccy/go-json"
)

// Runs the pipeline on local photos with debug tracing and artifact dumps on.
func main() {
	out := flag.String("out", "/tmp/wm_debug", "directory for intermediate crops")
	engineName := flag.String("engine", os.Getenv("OCR_ENGINE"), "tesseract or remote")
	remoteURL := flag.String("remote-url", os.Getenv("OCR_REMOTE_URL"), "OCR sidecar URL for -engine remote")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Println("usage: meter_debug [-out dir] [-engine tesseract|remote] <photo>...")
		os.Exit(2)
	}

	l := logger.New("", true)
	engine, err := ocr.NewEngine(*engineName, *remoteURL, 30*time.Second, ocr.DefaultTesseractConfig())
	if err != nil {
		log.Fatal(err)
	}
	sink, err := meter.NewDirSink(*out, l)
	if err != nil {
		log.Fatal(err)
	}
	cfg := meter.DefaultConfig(engine)
	cfg.Debug, cfg.Sink, cfg.Logger = true, sink, l
	svc, err := meter.NewService(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	enc := json.NewEncoder(os.Stdout)
	for _, p := range flag.Args() {
		start := time.Now()
		res, err := svc.AnalyzeFile(p)
		if err != nil {
			log.Printf("%s: %v", p, err)
			continue
		}
		_ = enc.Encode(map[string]any{"file": p, "result": res, "ms": time.Since(start).Milliseconds()})
	}
}
