package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"meterscan/models"
	"meterscan/pkg/meter"

	"github.com/gin-gonic/gin"
)

const (
	sourceUpload = "upload"
	sourceScan   = "scan"
)

func setupRoutes(r *gin.Engine) {
	r.GET("/healthz", healthHandler)
	r.POST("/read_meter", readMeterHandler)
	r.POST("/api/meter-scan/scan", scanHandler)

	withDB := r.Group("")
	withDB.Use(requireDB())
	withDB.POST("/login", loginHandler)
	withDB.POST("/refresh", refreshHandler)
	withDB.POST("/revoke_refresh", revokeRefreshHandler)

	authGroup := withDB.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.GET("/readings", listReadingsHandler)
	authGroup.GET("/readings/:id", getReadingHandler)
	authGroup.PATCH("/readings/:id", correctReadingHandler)
	authGroup.GET("/meters", listMetersHandler)
	authGroup.GET("/meters/:serial", getMeterHandler)
	authGroup.POST("/operators", requireRole(models.RoleAdministrator), createOperatorHandler)
}

func requireDB() gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		claims, err := parseAccessToken(authHeader[7:])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, _ := c.Get("role"); got != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine": svc.EngineName(), "database": db != nil})
}

// readMeterHandler analyzes a multipart upload in field "file". Analysis
// failures still answer 200 with the error sentinel.
func readMeterHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	limit := cfg.maxUploadBytes()
	if file.Size > limit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large (max %dMB)", limit>>20)})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	res := analyzeAndRecord(raw, models.Reading{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Source:      sourceUpload,
	})
	c.JSON(http.StatusOK, res)
}

// scanHandler accepts {"imageBase64": "..."}; a data URL prefix up to the
// first comma is dropped.
func scanHandler(c *gin.Context) {
	var req struct {
		ImageBase64 string `json:"imageBase64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageBase64 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}
	payload := req.ImageBase64
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 format"})
		return
	}
	if int64(len(raw)) > cfg.maxUploadBytes() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image too large"})
		return
	}
	res := analyzeAndRecord(raw, models.Reading{FileName: "scan.jpg", Source: sourceScan})
	c.JSON(http.StatusOK, res)
}

// analyzeAndRecord runs the pipeline and, when a database is configured,
// keeps a history row. Storage problems never change the result.
func analyzeAndRecord(raw []byte, rec models.Reading) meter.Result {
	start := time.Now()
	res := svc.AnalyzeMeterImage(raw)
	rec.DurationMs = time.Since(start).Milliseconds()
	if res.Failed() {
		rec.Failed = true
		rec.FailedReason = truncate(res.MeterID, 255)
	} else {
		rec.DetectedReading, rec.DetectedMeterID = res.Reading, res.MeterID
	}
	appLog.Info("analyzed %s source=%s reading=%q meterId=%q in %dms", rec.FileName, rec.Source, res.Reading, res.MeterID, rec.DurationMs)
	if db == nil {
		return res
	}
	if cfg.UploadDir != "" {
		if p, err := storeUpload(cfg.UploadDir, rec.FileName, raw); err != nil {
			appLog.Warning("store upload %s: %v", rec.FileName, err)
		} else {
			rec.StorePath = p
		}
	}
	recordReading(rec)
	return res
}

// storeUpload writes raw under base/<yyyy-mm-dd>/ and returns the relative path.
func storeUpload(base, name string, raw []byte) (string, error) {
	day := time.Now().Format("2006-01-02")
	if err := os.MkdirAll(filepath.Join(base, day), 0o755); err != nil {
		return "", err
	}
	rel := filepath.Join(day, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(name)))
	if err := os.WriteFile(filepath.Join(base, rel), raw, 0o644); err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func meHandler(c *gin.Context) {
	username, _ := c.Get("username")
	role, _ := c.Get("role")
	c.JSON(http.StatusOK, gin.H{"username": username, "role": role})
}

// getUserFromContext fetches the operator named by jwtAuthMiddleware.
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	uname, _ := c.Get("username")
	s, _ := uname.(string)
	if s == "" {
		return nil, false
	}
	var user models.User
	if err := db.Where("username = ?", s).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	tokenString, err := issueAccessToken(user.Username, roleName(user), accessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// refreshHandler exchanges a refresh token for a short-lived access token
// and rotates the refresh token.
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || !rt.Usable(time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	tokenString, err := issueAccessToken(user.Username, roleName(user), 15*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// listReadingsHandler returns the latest rows, optionally filtered by
// ?meterId= and ?failed=true|false.
func listReadingsHandler(c *gin.Context) {
	q := db.Model(&models.Reading{})
	if id := c.Query("meterId"); id != "" {
		q = q.Where("detected_meter_id = ? OR corrected_meter_id = ?", id, id)
	}
	if f := c.Query("failed"); f != "" {
		failed, err := strconv.ParseBool(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed must be true or false"})
			return
		}
		q = q.Where("failed = ?", failed)
	}
	limit := 200
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v < limit {
		limit = v
	}
	var items []models.Reading
	if err := q.Order("id desc").Limit(limit).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func getReadingHandler(c *gin.Context) {
	var rec models.Reading
	if err := db.First(&rec, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// correctReadingHandler stores an operator's confirmed values next to the
// detected ones. Operators may only correct rows nobody else corrected.
func correctReadingHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Reading *string `json:"reading"`
		MeterID *string `json:"meterId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reading == nil && req.MeterID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading or meterId required"})
		return
	}
	for _, v := range []*string{req.Reading, req.MeterID} {
		if v != nil && !isDigits(*v) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "values must be digits only"})
			return
		}
	}
	var rec models.Reading
	if err := db.First(&rec, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	role, _ := c.Get("role")
	if role != models.RoleAdministrator && rec.CorrectedByID != nil && *rec.CorrectedByID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if req.Reading != nil {
		rec.CorrectedReading = req.Reading
	}
	if req.MeterID != nil {
		rec.CorrectedMeterID = req.MeterID
	}
	rec.CorrectedByID = &user.ID
	if err := db.Save(&rec).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func listMetersHandler(c *gin.Context) {
	var items []models.Meter
	if err := db.Order("updated_at desc").Limit(200).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// getMeterHandler returns a meter with its ten latest readings.
func getMeterHandler(c *gin.Context) {
	serial := c.Param("serial")
	var m models.Meter
	if err := db.Where("serial = ?", serial).First(&m).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var recent []models.Reading
	db.Where("detected_meter_id = ? OR corrected_meter_id = ?", serial, serial).Order("id desc").Limit(10).Find(&recent)
	c.JSON(http.StatusOK, gin.H{"meter": m, "readings": recent})
}

func createOperatorHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := RegisterOperator(req.Username, req.Password, req.Role)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}
