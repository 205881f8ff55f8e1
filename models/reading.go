package models

import "time"

// Reading is one analyzed photo. The detected values are kept as returned by
// the pipeline; an operator may later confirm or correct them.
type Reading struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FileName    string `gorm:"size:255"`
	StorePath   string `gorm:"column:store_path;size:512"`
	ContentType string `gorm:"size:128"`
	Source      string `gorm:"size:16;index;not null"` // upload, scan or batch

	DetectedReading string `gorm:"size:50"`
	DetectedMeterID string `gorm:"size:50;index"`
	DurationMs      int64

	CorrectedReading *string `gorm:"size:50"`
	CorrectedMeterID *string `gorm:"size:50"`
	CorrectedByID    *uint   `gorm:"index"`
	CorrectedBy      *User   `gorm:"foreignKey:CorrectedByID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`

	// Failed rows are kept so an operator can review the photo.
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}

// FinalReading is the corrected value when present, else the detected one.
func (r Reading) FinalReading() string {
	if r.CorrectedReading != nil {
		return *r.CorrectedReading
	}
	return r.DetectedReading
}

// FinalMeterID is the corrected serial when present, else the detected one.
func (r Reading) FinalMeterID() string {
	if r.CorrectedMeterID != nil {
		return *r.CorrectedMeterID
	}
	return r.DetectedMeterID
}
