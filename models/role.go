package models

import "time"

const (
	RoleAdministrator = "administrator"
	RoleOperator      = "operator"
)

// Role names an operator's permission level.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// DefaultRoles are seeded on startup.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleAdministrator, Description: "full access, sees every reading"},
		{Name: RoleOperator, Description: "scans meters and corrects own readings"},
	}
}
