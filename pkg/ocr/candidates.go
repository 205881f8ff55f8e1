package ocr

import "sort"

// MinCandidateLength is the shortest corrected string admitted into a pool.
const MinCandidateLength = 3

// Candidates is a deduplicated pool of digit-only strings. Members only
// enter through Add, so every entry is cleaned, corrected and at least
// MinCandidateLength long.
type Candidates map[string]struct{}

// NewCandidates builds a pool from raw OCR fragments.
func NewCandidates(fragments ...string) Candidates {
	c := Candidates{}
	for _, f := range fragments {
		c.Add(f)
	}
	return c
}

// Add cleans and corrects a raw fragment and admits it when long enough.
// It reports whether the fragment produced a member.
func (c Candidates) Add(fragment string) bool {
	s := Correct(CleanFragment(fragment))
	if len(s) < MinCandidateLength {
		return false
	}
	c[s] = struct{}{}
	return true
}

// Merge adds every member of other to c.
func (c Candidates) Merge(other Candidates) {
	for s := range other {
		c[s] = struct{}{}
	}
}

// Sorted returns the members longest first, ties broken lexicographically.
func (c Candidates) Sorted() []string {
	out := make([]string, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}
