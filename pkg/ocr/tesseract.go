package ocr

import (
	"fmt"
	"runtime"
	"strings"

	"meterscan/pkg/vision"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// DigitWhitelist restricts Tesseract to digits and the letters Correct maps to digits.
const DigitWhitelist = "0123456789OQDUILBSAGZ"

// TesseractConfig is the immutable client setup applied on every run.
type TesseractConfig struct {
	Languages   []string
	Whitelist   string
	PageSegMode gosseract.PageSegMode
	Variables   map[string]string
}

// DefaultTesseractConfig targets sparse digit text.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Languages:   []string{"eng"},
		Whitelist:   DigitWhitelist,
		PageSegMode: gosseract.PSM_SPARSE_TEXT,
		Variables: map[string]string{
			"load_system_dawg": "false",
			"load_freq_dawg":   "false",
		},
	}
}

// TesseractEngine runs gosseract. A client is not goroutine-safe, so each
// Run borrows one configured client from idle and returns it afterwards;
// the traineddata is loaded once per client, not once per call.
type TesseractEngine struct {
	cfg           TesseractConfig
	clientFactory func() *gosseract.Client
	idle          chan *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed Recognizer that keeps up
// to GOMAXPROCS idle clients.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	return &TesseractEngine{
		cfg:           cfg,
		clientFactory: gosseract.NewClient,
		idle:          make(chan *gosseract.Client, runtime.GOMAXPROCS(0)),
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Run recognizes img and returns
// {"lines": [line...], "words": [{"text": word}...]}.
func (e *TesseractEngine) Run(img gocv.Mat) (Node, error) {
	if img.Empty() {
		return nil, vision.ErrEmptyImage
	}
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	c, err := e.acquire()
	if err != nil {
		return nil, err
	}
	if err := c.SetImageFromBytes(buf.GetBytes()); err != nil {
		c.Close()
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	defer e.release(c)

	lines := Sequence{}
	for _, l := range strings.Split(text, "\n") {
		if l = normalizeOCRText(l); l != "" {
			lines = append(lines, Scalar(l))
		}
	}
	words := Sequence{}
	if boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD); err == nil {
		for _, b := range boxes {
			if w := strings.TrimSpace(b.Word); w != "" {
				words = append(words, Mapping{{Key: "text", Value: Scalar(w)}})
			}
		}
	}
	return Mapping{{Key: "lines", Value: lines}, {Key: "words", Value: words}}, nil
}

// Close releases the idle clients. Runs after Close still work but start
// from fresh clients.
func (e *TesseractEngine) Close() error {
	for {
		select {
		case c := <-e.idle:
			c.Close()
		default:
			return nil
		}
	}
}

func (e *TesseractEngine) acquire() (*gosseract.Client, error) {
	select {
	case c := <-e.idle:
		return c, nil
	default:
	}
	c := e.clientFactory()
	if err := e.configure(c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// release parks c for reuse, or closes it when enough clients are idle.
func (e *TesseractEngine) release(c *gosseract.Client) {
	select {
	case e.idle <- c:
	default:
		c.Close()
	}
}

func (e *TesseractEngine) configure(c *gosseract.Client) error {
	if len(e.cfg.Languages) > 0 {
		if err := c.SetLanguage(e.cfg.Languages...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}
	if e.cfg.Whitelist != "" {
		if err := c.SetWhitelist(e.cfg.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetPageSegMode(e.cfg.PageSegMode); err != nil {
		return fmt.Errorf("set page seg mode: %w", err)
	}
	for k, v := range e.cfg.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return nil
}
