// Package meter is the pipeline entry: it decodes an uploaded photo, runs
// the region strategy and selects the reading and serial.
package meter

import (
	"fmt"
	"io"
	"os"

	"meterscan/pkg/logger"
	"meterscan/pkg/ocr"
	"meterscan/pkg/vision"
)

// ErrorReading is the Reading value of a request that could not be analyzed;
// the detail is carried in MeterID.
const ErrorReading = "Error"

// Result is what callers receive. Both fields are digit strings, empty when
// undetermined, except for the ErrorReading sentinel.
type Result struct {
	Reading string `json:"reading"`
	MeterID string `json:"meterId"`
}

// Failed reports whether r is the error sentinel.
func (r Result) Failed() bool { return r.Reading == ErrorReading }

// Config is built once at startup and shared by every request.
type Config struct {
	Recognizer ocr.Recognizer
	Debug      bool
	Sink       Sink
	Vision     vision.Params
	Regions    Regions
	Logger     *logger.Logger
}

// DefaultConfig returns production thresholds around r with debugging off.
func DefaultConfig(r ocr.Recognizer) Config {
	return Config{
		Recognizer: r,
		Vision:     vision.DefaultParams(),
		Regions:    DefaultRegions(),
	}
}

// Service is safe for concurrent use once constructed.
type Service struct {
	engine     string
	recognizer ocr.Recognizer
	analyzer   *Analyzer
	log        *logger.Logger
}

// NewService validates cfg and fills zero values with defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Vision == (vision.Params{}) {
		cfg.Vision = vision.DefaultParams()
	}
	if cfg.Regions == (Regions{}) {
		cfg.Regions = DefaultRegions()
	}
	if !cfg.Debug || cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	adapter, err := ocr.NewAdapter(cfg.Recognizer, cfg.Vision, cfg.Logger)
	if err != nil {
		return nil, err
	}
	a := &Analyzer{
		adapter: adapter,
		params:  cfg.Vision,
		regions: cfg.Regions,
		sink:    cfg.Sink,
		log:     cfg.Logger,

		detectFace:  vision.DetectFace,
		findWindows: vision.FindWindows,
	}
	return &Service{engine: cfg.Recognizer.Name(), recognizer: cfg.Recognizer, analyzer: a, log: cfg.Logger}, nil
}

// EngineName names the configured recognizer.
func (s *Service) EngineName() string { return s.engine }

// Close releases recognizer resources when the engine holds any.
func (s *Service) Close() error {
	if c, ok := s.recognizer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// AnalyzeMeterImage never panics: undecodable input and any failure escaping
// the pipeline both come back as the ErrorReading sentinel.
func (s *Service) AnalyzeMeterImage(raw []byte) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("analyze: %v", r)
			res = Result{Reading: ErrorReading, MeterID: fmt.Sprint(r)}
		}
	}()

	img, err := Decode(raw)
	if err != nil {
		s.log.Warning("analyze: %v", err)
		return Result{Reading: ErrorReading, MeterID: err.Error()}
	}
	defer img.Close()

	reading, id := s.analyzer.Analyze(img)
	return Result{Reading: ocr.SelectReading(reading), MeterID: ocr.SelectID(id)}
}

// AnalyzeFile reads path and analyzes its contents.
func (s *Service) AnalyzeFile(path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return s.AnalyzeMeterImage(raw), nil
}
