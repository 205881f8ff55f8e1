package main

import (
	"errors"
	"fmt"
	"time"

	"meterscan/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// db is nil when no DSN is configured; every caller must check.
var db *gorm.DB

func initDB(dsn string, migrate bool) error {
	if dsn == "" {
		return errors.New("DB_DSN is not set")
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect postgres database: %w", err)
	}
	db = conn

	// Roles first so the users FK can be applied.
	if migrate {
		if err := db.AutoMigrate(&models.Role{}); err != nil {
			appLog.Warning("migration warning (roles): %v", err)
		}
	}
	seedRoles()

	if migrate {
		// One model at a time so a failure on one does not block the others.
		for _, m := range []any{&models.User{}, &models.RefreshToken{}, &models.Reading{}, &models.Meter{}} {
			if err := db.AutoMigrate(m); err != nil {
				appLog.Warning("migration warning (%T): %v", m, err)
			}
		}
	}
	seedAdmin()
	return nil
}

func seedRoles() {
	for _, r := range models.DefaultRoles() {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}
}

func seedAdmin() {
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count > 0 {
		return
	}
	var role models.Role
	if err := db.Where("name = ?", models.RoleAdministrator).First(&role).Error; err != nil {
		appLog.Warning("failed to find administrator role: %v", err)
		return
	}
	rid := role.ID
	hashed, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	admin := models.User{Username: "admin", RoleID: &rid, HashedPassword: hashed}
	if err := db.Create(&admin).Error; err != nil {
		appLog.Warning("failed to seed admin: %v", err)
		return
	}
	appLog.Info("Seeded admin user: username=admin, password=admin123")
}

// recordReading stores one analyzed photo and, for a successful read with a
// serial, bumps the matching meter. Errors are logged only.
func recordReading(rec models.Reading) *models.Reading {
	if db == nil {
		return nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if rec.Failed || rec.DetectedMeterID == "" || rec.DetectedReading == "" {
			return nil
		}
		return upsertMeter(tx, rec.DetectedMeterID, rec.DetectedReading, rec.ID, rec.CreatedAt)
	})
	if err != nil {
		appLog.Warning("record reading %s: %v", rec.FileName, err)
		return nil
	}
	return &rec
}

func upsertMeter(tx *gorm.DB, serial, reading string, readingID uint, at time.Time) error {
	m := models.Meter{Serial: serial, LastReading: reading, LastReadingAt: &at, LastReadingID: &readingID, Readings: 1}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "serial"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_reading":    reading,
			"last_reading_at": at,
			"last_reading_id": readingID,
			"readings":        gorm.Expr("meters.readings + 1"),
			"updated_at":      time.Now(),
		}),
	}).Create(&m).Error
}
