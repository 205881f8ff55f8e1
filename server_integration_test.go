package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"meterscan/pkg/logger"
	"meterscan/pkg/meter"
	"meterscan/pkg/ocr"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"
)

// constEngine reports the same text for every crop.
type constEngine string

func (e constEngine) Name() string { return "const" }

func (e constEngine) Run(gocv.Mat) (ocr.Node, error) {
	return ocr.Sequence{ocr.Scalar(string(e))}, nil
}

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupPipelineServer(t *testing.T, engine ocr.Recognizer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg = appConfig{MaxUploadMB: 1, JWTSecret: "test-secret"}
	jwtSecret = []byte(cfg.JWTSecret)
	appLog = logger.Discard()
	db = nil
	s, err := meter.NewService(meter.DefaultConfig(engine))
	if err != nil {
		t.Fatal(err)
	}
	svc = s
	r := gin.New()
	setupRoutes(r)
	return r
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(320, 240, color.Black), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) meter.Result {
	t.Helper()
	var res meter.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad body %s: %v", rec.Body.String(), err)
	}
	return res
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, _ := mw.CreateFormFile(field, name)
	_, _ = w.Write(content)
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func TestReadMeterUpload(t *testing.T) {
	r := setupPipelineServer(t, constEngine("O12345"))
	body, ct := multipartBody(t, "file", "meter.png", pngBytes(t))
	resp := performRequest(r, http.MethodPost, "/read_meter", body, "", ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	res := decodeResult(t, resp)
	if res.Reading != "012345" || res.MeterID != "012345" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestReadMeterMissingFile(t *testing.T) {
	r := setupPipelineServer(t, constEngine(""))
	body, ct := multipartBody(t, "other", "meter.png", []byte("x"))
	resp := performRequest(r, http.MethodPost, "/read_meter", body, "", ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestReadMeterTooLarge(t *testing.T) {
	r := setupPipelineServer(t, constEngine(""))
	body, ct := multipartBody(t, "file", "big.png", make([]byte, 2<<20))
	resp := performRequest(r, http.MethodPost, "/read_meter", body, "", ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestReadMeterGarbageIsSentinel(t *testing.T) {
	r := setupPipelineServer(t, constEngine(""))
	body, ct := multipartBody(t, "file", "meter.png", []byte("not an image"))
	resp := performRequest(r, http.MethodPost, "/read_meter", body, "", ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if res := decodeResult(t, resp); res.Reading != meter.ErrorReading || res.MeterID == "" {
		t.Fatalf("expected sentinel, got %+v", res)
	}
}

func TestScanBase64(t *testing.T) {
	r := setupPipelineServer(t, constEngine("555555"))
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
	body, _ := json.Marshal(map[string]string{"imageBase64": payload})
	resp := performRequest(r, http.MethodPost, "/api/meter-scan/scan", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	if res := decodeResult(t, resp); res.Reading != "555555" || res.MeterID != "555555" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestScanRejectsBadInput(t *testing.T) {
	r := setupPipelineServer(t, constEngine(""))
	cases := map[string]string{
		`{}`:                       "No image provided",
		`{"imageBase64":""}`:       "No image provided",
		`{"imageBase64":"%%%%"}`:   "Invalid base64 format",
		`{"imageBase64":"a,b,c?"}`: "Invalid base64 format",
	}
	for in, want := range cases {
		resp := performRequest(r, http.MethodPost, "/api/meter-scan/scan", bytes.NewBufferString(in), "", "application/json")
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", in, resp.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(resp.Body.Bytes(), &body)
		if body["error"] != want {
			t.Fatalf("%s: expected %q got %q", in, want, body["error"])
		}
	}
}

func TestHealthAndDBGuard(t *testing.T) {
	r := setupPipelineServer(t, constEngine(""))
	resp := performRequest(r, http.MethodGet, "/healthz", nil, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz status %d", resp.Code)
	}
	var h map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &h)
	if h["engine"] != "const" {
		t.Fatalf("unexpected health body %v", h)
	}
	resp = performRequest(r, http.MethodGet, "/readings", nil, "", "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database got %d", resp.Code)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	jwtSecret = []byte("test-secret")
	tok, err := issueAccessToken("op", "operator", accessTokenTTL)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := parseAccessToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims["username"] != "op" || claims["role"] != "operator" {
		t.Fatalf("unexpected claims %v", claims)
	}
	if _, err := parseAccessToken(tok + "x"); err == nil {
		t.Fatalf("tampered token accepted")
	}
}

// Database-backed flow; opt-in with DB_DSN_TEST=1 and DB_DSN.
func TestFullFlow(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	r := setupPipelineServer(t, constEngine("O12345"))
	if err := initDB(os.Getenv("DB_DSN"), true); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db = nil })

	loginBody, _ := json.Marshal(map[string]string{"username": "admin", "password": "admin123"})
	resp := performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	body, ct := multipartBody(t, "file", "meter.png", pngBytes(t))
	resp = performRequest(r, http.MethodPost, "/read_meter", body, "", ct)
	if resp.Code != 200 {
		t.Fatalf("read_meter status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodGet, "/readings?meterId=012345&limit=5", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list readings status=%d body=%s", resp.Code, resp.Body.String())
	}
	var rows []map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &rows)
	if len(rows) == 0 {
		t.Fatalf("reading not recorded")
	}
	id := rows[0]["ID"]

	fix, _ := json.Marshal(map[string]string{"reading": "012346"})
	resp = performRequest(r, http.MethodPatch, "/readings/"+jsonNumber(id), bytes.NewBuffer(fix), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("correct reading status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodGet, "/meters/012345", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("get meter status=%d body=%s", resp.Code, resp.Body.String())
	}

	unauth := performRequest(r, http.MethodGet, "/readings", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list readings got %d", unauth.Code)
	}
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestOperatorsRouteRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	r := gin.New()
	r.POST("/operators", jwtAuthMiddleware(), requireRole("administrator"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	opTok, _ := issueAccessToken("op", "operator", accessTokenTTL)
	if resp := performRequest(r, http.MethodPost, "/operators", nil, opTok, ""); resp.Code != http.StatusForbidden {
		t.Fatalf("operator should be forbidden, got %d", resp.Code)
	}
	adminTok, _ := issueAccessToken("admin", "administrator", accessTokenTTL)
	if resp := performRequest(r, http.MethodPost, "/operators", nil, adminTok, ""); resp.Code != http.StatusCreated {
		t.Fatalf("administrator should pass, got %d", resp.Code)
	}
}
