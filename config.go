package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type appConfig struct {
	Port          int
	DBDSN         string
	DBAutoMigrate bool
	JWTSecret     string
	Debug         bool
	DebugDir      string
	LogDir        string
	UploadDir     string // keep uploaded photos here; empty disables
	MaxUploadMB   int64

	OCREngine        string // tesseract or remote
	OCRRemoteURL     string
	OCRRemoteTimeout time.Duration
	TessLang         []string
	TessWhitelist    string

	FaceMaxDim      int
	WindowMinArea   int
	WindowMinAspect float64
	PrepUpscale     float64
	MaxWindows      int
}

// loadConfig reads ./.env (without overriding variables already set) and
// then the environment.
func loadConfig() appConfig {
	_ = godotenv.Load()
	return appConfig{
		Port:          getEnvAsInt("PORT", 8000),
		DBDSN:         getEnv("DB_DSN", ""),
		DBAutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		JWTSecret:     getEnv("JWT_SECRET", "dev-insecure-secret-change"),
		Debug:         getEnvAsBool("DEBUG", false),
		DebugDir:      getEnv("DEBUG_DIR", "/tmp/wm_debug"),
		LogDir:        getEnv("LOG_DIR", ""),
		UploadDir:     getEnv("UPLOAD_DIR", ""),
		MaxUploadMB:   getEnvAsInt64("MAX_UPLOAD_MB", 10),

		OCREngine:        strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
		OCRRemoteURL:     getEnv("OCR_REMOTE_URL", "http://127.0.0.1:8868/ocr"),
		OCRRemoteTimeout: time.Duration(getEnvAsInt("OCR_REMOTE_TIMEOUT_SEC", 30)) * time.Second,
		TessLang:         strings.Split(getEnv("TESS_LANG", "eng"), "+"),
		TessWhitelist:    getEnv("TESS_WHITELIST", ""),

		FaceMaxDim:      getEnvAsInt("FACE_MAX_DIM", 0),
		WindowMinArea:   getEnvAsInt("WINDOW_MIN_AREA", 0),
		WindowMinAspect: getEnvAsFloat("WINDOW_MIN_ASPECT", 0),
		PrepUpscale:     getEnvAsFloat("PREP_UPSCALE", 0),
		MaxWindows:      getEnvAsInt("MAX_WINDOWS", 0),
	}
}

func (c appConfig) maxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 10 * 1024 * 1024
	}
	return c.MaxUploadMB * 1024 * 1024
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsBool accepts 1/true/yes and 0/false/no, case-insensitively.
func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}
