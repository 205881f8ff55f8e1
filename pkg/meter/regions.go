package meter

// Band is a fractional span [From, To] of an image dimension.
type Band struct {
	From, To float64
}

// Regions are the fractional crops tried on every photo, plus the strip
// taken around a detected face. Strip offsets are fractions of the face
// radius relative to its centre; negative is above.
type Regions struct {
	MaxWindows int

	StripAbove float64
	StripBelow float64

	Body    Band // meter body, usually holds the printed serial
	Top     Band // sticker band
	CenterY Band
	CenterX Band
}

// DefaultRegions returns the layout of the supported round meters.
func DefaultRegions() Regions {
	return Regions{
		MaxWindows: 4,
		StripAbove: 0.25,
		StripBelow: 0.05,
		Body:       Band{0.48, 0.92},
		Top:        Band{0, 0.28},
		CenterY:    Band{0.30, 0.60},
		CenterX:    Band{0.10, 0.90},
	}
}

func (b Band) span(n int) (int, int) {
	return int(float64(n) * b.From), int(float64(n) * b.To)
}
