package ocr

import "strings"

// confusables maps characters OCR commonly returns in place of digits.
var confusables = map[rune]rune{
	'O': '0', 'Q': '0', 'D': '0', 'U': '0',
	'I': '1', 'L': '1', '|': '1', ']': '1',
	'B': '8',
	'S': '5',
	'A': '4',
	'G': '6',
	'Z': '2',
}

// Correct turns OCR text into digits: digits are kept, confusable letters
// are mapped (O→0, I→1, B→8, ...) and everything else is dropped.
// It is total and idempotent.
func Correct(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToUpper(text) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if d, ok := confusables[r]; ok {
			b.WriteRune(d)
		}
	}
	return b.String()
}

// CleanFragment strips every rune that is not an ASCII letter or digit.
func CleanFragment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			return r
		}
		return -1
	}, s)
}
