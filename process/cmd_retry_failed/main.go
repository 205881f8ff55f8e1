package main

import (
	"bytes"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"meterscan/pkg/logger"
	"meterscan/pkg/meter"
	"meterscan/pkg/ocr"

	"github.com/disintegration/imaging"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Re-reads photos whose earlier reading failed or came back empty, after a
// sharpen/contrast pass, and updates the row when something is found.
func main() {
	dir := flag.String("dir", ".", "base dir that store_path is relative to")
	limit := flag.Int("limit", 100, "max rows to retry")
	dry := flag.Bool("dry-run", false, "print results without updating")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	engine, err := ocr.NewEngine(os.Getenv("OCR_ENGINE"), os.Getenv("OCR_REMOTE_URL"), 30*time.Second, ocr.DefaultTesseractConfig())
	if err != nil {
		log.Fatalf("ocr engine: %v", err)
	}
	cfg := meter.DefaultConfig(engine)
	cfg.Logger = logger.New("", os.Getenv("DEBUG") == "1")
	svc, err := meter.NewService(cfg)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	defer svc.Close()

	rows, err := db.Query(`SELECT id, file_name, store_path FROM readings
		WHERE (failed OR detected_reading = '') AND corrected_reading IS NULL AND store_path <> ''
		ORDER BY id DESC LIMIT $1`, *limit)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var fname string
		var store sql.NullString
		if err := rows.Scan(&id, &fname, &store); err != nil {
			log.Printf("scan: %v", err)
			continue
		}
		path := filepath.Join(*dir, filepath.FromSlash(store.String))
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			log.Printf("open %s: %v", path, err)
			continue
		}
		proc := imaging.Sharpen(img, 2.0)
		proc = imaging.AdjustContrast(proc, 30)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, proc, imaging.PNG); err != nil {
			log.Printf("encode %s: %v", path, err)
			continue
		}

		res := svc.AnalyzeMeterImage(buf.Bytes())
		if res.Failed() || res.Reading == "" {
			log.Printf("still nothing for id=%d file=%s (%s)", id, fname, res.MeterID)
			continue
		}
		if *dry {
			fmt.Printf("would update id=%d file=%s reading=%s meterId=%s\n", id, fname, res.Reading, res.MeterID)
			continue
		}
		if err := applyRetry(db, id, res); err != nil {
			log.Printf("update id=%d: %v", id, err)
			continue
		}
		fmt.Printf("updated id=%d file=%s reading=%s meterId=%s\n", id, fname, res.Reading, res.MeterID)
	}
	if err := rows.Err(); err != nil {
		log.Printf("rows: %v", err)
	}
}

// applyRetry stores a recovered result on reading id and, when a serial was
// read, bumps the meter the same way the HTTP service does on a new scan.
func applyRetry(db *sql.DB, id int64, res meter.Result) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE readings SET detected_reading=$1, detected_meter_id=$2, failed=false, failed_reason='', updated_at=now() WHERE id=$3`,
		res.Reading, res.MeterID, id); err != nil {
		return fmt.Errorf("update reading: %w", err)
	}
	if res.MeterID != "" {
		if _, err := tx.Exec(`INSERT INTO meters (serial, last_reading, last_reading_at, last_reading_id, readings, created_at, updated_at)
			VALUES ($1, $2, now(), $3, 1, now(), now())
			ON CONFLICT (serial) DO UPDATE SET
				last_reading = EXCLUDED.last_reading,
				last_reading_at = EXCLUDED.last_reading_at,
				last_reading_id = EXCLUDED.last_reading_id,
				readings = meters.readings + 1,
				updated_at = now()`,
			res.MeterID, res.Reading, id); err != nil {
			return fmt.Errorf("upsert meter: %w", err)
		}
	}
	return tx.Commit()
}
