package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"meterscan/pkg/vision"

	"github.com/goccy/go-json"
	"gocv.io/x/gocv"
)

// RemoteEngine posts each crop as a PNG to an OCR sidecar and accepts any
// JSON document in reply; its string leaves become the fragments.
type RemoteEngine struct {
	url    string
	client *http.Client
}

// NewRemoteEngine builds a Recognizer backed by the sidecar at url.
func NewRemoteEngine(url string, timeout time.Duration) *RemoteEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteEngine{url: url, client: &http.Client{Timeout: timeout}}
}

func (e *RemoteEngine) Name() string { return "remote" }

func (e *RemoteEngine) Run(img gocv.Mat) (Node, error) {
	if img.Empty() {
		return nil, vision.ErrEmptyImage
	}
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "crop.png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(buf.GetBytes()); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := e.client.Post(e.url, mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", e.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr sidecar status %d: %s", resp.StatusCode, snippet(string(msg), 200))
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoText
		}
		return nil, fmt.Errorf("decode sidecar reply: %w", err)
	}
	return FromJSON(doc), nil
}
