package ocr

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// TargetDigits is the digit count of a mechanical reading window and of
	// the printed serial on the supported meters.
	TargetDigits = 6
	// LeadingZeroBonus is added to a reading's zero count when it starts
	// with '0'. Low readings show leading zeros, so they are a positive signal.
	LeadingZeroBonus = 2
	// MinIDLength is the shortest serial accepted when no exact-length one exists.
	MinIDLength = 5
)

var zeroRunRE = regexp.MustCompile(`0+\d{3,}`)

// SelectReading picks the final reading from the pool. Exact six-digit
// candidates win (most zeros first, leading zero weighted); otherwise one
// starting with '0'; otherwise the longest. The choice is then cut down to
// a zero-led run or left-padded to six digits.
func SelectReading(pool Candidates) string {
	if len(pool) == 0 {
		return ""
	}
	sorted := pool.Sorted()

	scoreFor := func(s string) int {
		sc := strings.Count(s, "0")
		if strings.HasPrefix(s, "0") {
			sc += LeadingZeroBonus
		}
		return sc
	}

	var chosen string
	var six []string
	for _, c := range sorted {
		if len(c) == TargetDigits {
			six = append(six, c)
		}
	}
	if len(six) > 0 {
		sort.SliceStable(six, func(i, j int) bool { return scoreFor(six[i]) > scoreFor(six[j]) })
		chosen = six[0]
	} else {
		chosen = sorted[0]
		for _, c := range sorted {
			if strings.HasPrefix(c, "0") {
				chosen = c
				break
			}
		}
	}

	if len(chosen) > TargetDigits {
		if m := zeroRunRE.FindString(chosen); m != "" {
			if len(m) > TargetDigits {
				m = m[:TargetDigits]
			}
			chosen = m
		}
	}
	if len(chosen) < TargetDigits && len(chosen) >= MinCandidateLength {
		chosen = strings.Repeat("0", TargetDigits-len(chosen)) + chosen
	}
	return onlyDigits(chosen)
}

// SelectID picks the meter serial: the first exact six-digit candidate,
// else the longest one if it has at least MinIDLength digits, else "".
func SelectID(pool Candidates) string {
	if len(pool) == 0 {
		return ""
	}
	sorted := pool.Sorted()
	for _, c := range sorted {
		if len(c) == TargetDigits {
			return onlyDigits(c)
		}
	}
	if len(sorted[0]) >= MinIDLength {
		return onlyDigits(sorted[0])
	}
	return ""
}
