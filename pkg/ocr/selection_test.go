package ocr

import "testing"

func TestSelectReadingPrefersSixWithLeadingZero(t *testing.T) {
	pool := NewCandidates("012345", "12345", "00012345")
	if got := SelectReading(pool); got != "012345" {
		t.Fatalf("expected 012345 got %q", got)
	}
}

func TestSelectReadingPadsLongest(t *testing.T) {
	pool := NewCandidates("123", "4567")
	if got := SelectReading(pool); got != "004567" {
		t.Fatalf("expected 004567 got %q", got)
	}
}

func TestSelectReadingZeroCountBreaksTies(t *testing.T) {
	// 100200 has three zeros; 012345 has one plus the leading bonus.
	pool := NewCandidates("100200", "012345", "987654")
	if got := SelectReading(pool); got != "100200" {
		t.Fatalf("expected 100200 got %q", got)
	}
	pool = NewCandidates("100234", "012345")
	if got := SelectReading(pool); got != "012345" {
		t.Fatalf("expected leading zero to win, got %q", got)
	}
}

func TestSelectReadingTruncatesZeroRun(t *testing.T) {
	pool := NewCandidates("99000123456")
	if got := SelectReading(pool); got != "000123" {
		t.Fatalf("expected 000123 got %q", got)
	}
}

func TestSelectReadingPrefersZeroPrefixWithoutSix(t *testing.T) {
	pool := NewCandidates("98765432", "0123")
	if got := SelectReading(pool); got != "000123" {
		t.Fatalf("expected 000123 got %q", got)
	}
}

func TestSelectEmpty(t *testing.T) {
	if got := SelectReading(Candidates{}); got != "" {
		t.Fatalf("reading from empty pool: %q", got)
	}
	if got := SelectID(nil); got != "" {
		t.Fatalf("id from empty pool: %q", got)
	}
}

func TestSelectIDPrefersExactSix(t *testing.T) {
	pool := NewCandidates("555555", "5555555")
	if got := SelectID(pool); got != "555555" {
		t.Fatalf("expected 555555 got %q", got)
	}
}

func TestSelectIDLengthFloor(t *testing.T) {
	if got := SelectID(NewCandidates("12345678")); got != "12345678" {
		t.Fatalf("expected longest got %q", got)
	}
	if got := SelectID(NewCandidates("1234", "999")); got != "" {
		t.Fatalf("expected empty for short ids, got %q", got)
	}
}
