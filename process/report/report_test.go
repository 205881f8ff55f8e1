package report

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMonthBounds(t *testing.T) {
	start, end, err := MonthBounds("2024-12")
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v..%v", start, end)
	}
	if _, _, err := MonthBounds("12/2024"); err == nil {
		t.Fatalf("expected error for bad month")
	}
}

func TestPrint(t *testing.T) {
	s := Summary{Month: "2024-05", Total: 3, Failed: 1, PerMeter: []MeterCount{{Serial: "555555", Count: 2, Last: "000123"}}}
	var buf bytes.Buffer
	Print(&buf, s, true)
	out := buf.String()
	if !strings.Contains(out, "total=3 failed=1") || !strings.Contains(out, "555555|2|000123") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	buf.Reset()
	Print(&buf, s, false)
	if strings.Contains(buf.String(), "555555") {
		t.Fatalf("per-meter lines printed when disabled")
	}
}
