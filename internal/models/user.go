package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin        UserRole = "admin"
	RoleGestionnaire UserRole = "gestionnaire"
	RoleTechnicien   UserRole = "technicien"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleGestionnaire, RoleTechnicien:
		return true
	}
	return false
}

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"not null"`
	FirstName    string     `json:"first_name" gorm:"size:100"`
	LastName     string     `json:"last_name" gorm:"size:100"`
	Phone        string     `json:"phone" gorm:"size:50"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null"`
	Active       bool       `json:"active" gorm:"not null"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// FullName falls back to the email when no name was recorded.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.LastName != "":
		return u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Email
}
