package models

import "time"

// Meter is a physical meter keyed by its printed serial. LastReading tracks
// the most recent successful reading seen for it.
type Meter struct {
	ID            uint `gorm:"primaryKey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Serial        string `gorm:"size:50;uniqueIndex;not null"`
	LastReading   string `gorm:"size:50"`
	LastReadingAt *time.Time
	LastReadingID *uint `gorm:"index"`
	Readings      int64 `gorm:"default:0;not null"`
}
