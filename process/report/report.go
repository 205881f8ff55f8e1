// Package report prints monthly scan statistics from the readings table.
package report

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"meterscan/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// Summary aggregates one month of readings.
type Summary struct {
	Month     string
	Total     int64
	Failed    int64
	NoReading int64
	NoMeterID int64
	Corrected int64
	AvgMillis float64
	PerMeter  []MeterCount
}

// MeterCount is the number of readings for one serial in the month.
type MeterCount struct {
	Serial string
	Count  int64
	Last   string
}

// MonthBounds returns [start, end) in UTC for a YYYY-MM month.
func MonthBounds(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month format, expected YYYY-MM: %w", err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Build computes the summary for month.
func Build(gdb *gorm.DB, month string) (Summary, error) {
	start, end, err := MonthBounds(month)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Month: month}
	row := gdb.Raw(`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE failed),
			COUNT(*) FILTER (WHERE NOT failed AND detected_reading = ''),
			COUNT(*) FILTER (WHERE NOT failed AND detected_meter_id = ''),
			COUNT(*) FILTER (WHERE corrected_reading IS NOT NULL OR corrected_meter_id IS NOT NULL),
			COALESCE(AVG(duration_ms), 0)
		FROM readings WHERE created_at >= ? AND created_at < ?`, start, end).Row()
	if err := row.Scan(&s.Total, &s.Failed, &s.NoReading, &s.NoMeterID, &s.Corrected, &s.AvgMillis); err != nil {
		return Summary{}, fmt.Errorf("query failed: %w", err)
	}
	err = gdb.Model(&models.Reading{}).
		Select("detected_meter_id AS serial, COUNT(*) AS count, MAX(detected_reading) AS last").
		Where("created_at >= ? AND created_at < ? AND NOT failed AND detected_meter_id <> ''", start, end).
		Group("detected_meter_id").Order("count DESC, serial").
		Scan(&s.PerMeter).Error
	if err != nil {
		return Summary{}, fmt.Errorf("per-meter query failed: %w", err)
	}
	return s, nil
}

// Print writes s in the plain format the CLI shows.
func Print(w io.Writer, s Summary, perMeter bool) {
	fmt.Fprintf(w, "Readings for month=%s (UTC):\n", s.Month)
	fmt.Fprintf(w, "  total=%d failed=%d no_reading=%d no_meter_id=%d corrected=%d avg_ms=%.0f\n",
		s.Total, s.Failed, s.NoReading, s.NoMeterID, s.Corrected, s.AvgMillis)
	if !perMeter {
		return
	}
	for _, m := range s.PerMeter {
		fmt.Fprintf(w, "%s|%d|%s\n", m.Serial, m.Count, m.Last)
	}
}

// RunReport prints the report for month (YYYY-MM) using DB_DSN.
func RunReport(month string, perMeter bool) {
	s, err := Build(mustDBFromEnv(), month)
	if err != nil {
		log.Fatal(err)
	}
	Print(os.Stdout, s, perMeter)
}
