package main

import (
	"fmt"
	"os"

	"meterscan/pkg/logger"
	"meterscan/pkg/meter"
	"meterscan/pkg/ocr"
	"meterscan/pkg/vision"

	"github.com/gin-gonic/gin"
)

var (
	jwtSecret []byte
	svc       *meter.Service
	appLog    *logger.Logger
	cfg       appConfig
)

func main() {
	cfg = loadConfig()
	jwtSecret = []byte(cfg.JWTSecret)
	appLog = logger.New(cfg.LogDir, cfg.Debug)

	// `meterscan migrate` runs AutoMigrate and seeding, then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := initDB(cfg.DBDSN, true); err != nil {
			appLog.Error("%v", err)
			os.Exit(1)
		}
		fmt.Println("migration and seeding completed")
		return
	}

	var err error
	svc, err = newService(cfg, appLog)
	if err != nil {
		appLog.Error("pipeline: %v", err)
		os.Exit(1)
	}

	if cfg.DBDSN != "" {
		if err := initDB(cfg.DBDSN, cfg.DBAutoMigrate); err != nil {
			appLog.Error("%v", err)
			os.Exit(1)
		}
	} else {
		appLog.Warning("DB_DSN not set: scan history and operator login are disabled")
	}

	r := gin.Default()
	setupRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	appLog.Info("listening on %s (engine=%s, debug=%v)", addr, svc.EngineName(), cfg.Debug)
	if err := r.Run(addr); err != nil {
		appLog.Error("server: %v", err)
		os.Exit(1)
	}
}

func newEngine(c appConfig) (ocr.Recognizer, error) {
	tc := ocr.DefaultTesseractConfig()
	if len(c.TessLang) > 0 && c.TessLang[0] != "" {
		tc.Languages = c.TessLang
	}
	if c.TessWhitelist != "" {
		tc.Whitelist = c.TessWhitelist
	}
	return ocr.NewEngine(c.OCREngine, c.OCRRemoteURL, c.OCRRemoteTimeout, tc)
}

// newService builds the immutable pipeline configuration from c.
func newService(c appConfig, log *logger.Logger) (*meter.Service, error) {
	engine, err := newEngine(c)
	if err != nil {
		return nil, err
	}
	mc := meter.DefaultConfig(engine)
	mc.Logger = log
	mc.Debug = c.Debug
	if c.Debug {
		sink, err := meter.NewDirSink(c.DebugDir, log)
		if err != nil {
			log.Warning("debug dir %s: %v", c.DebugDir, err)
		} else {
			mc.Sink = sink
		}
	}
	applyOverrides(&mc.Vision, &mc.Regions, c)
	return meter.NewService(mc)
}

func applyOverrides(p *vision.Params, r *meter.Regions, c appConfig) {
	if c.FaceMaxDim > 0 {
		p.FaceMaxDim = c.FaceMaxDim
	}
	if c.WindowMinArea > 0 {
		p.WindowMinArea = c.WindowMinArea
	}
	if c.WindowMinAspect > 0 {
		p.WindowMinAspect = c.WindowMinAspect
	}
	if c.PrepUpscale > 0 {
		p.PrepUpscale = c.PrepUpscale
	}
	if c.MaxWindows > 0 {
		r.MaxWindows = c.MaxWindows
	}
}
