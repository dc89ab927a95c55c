package models

import (
	"time"

	"gorm.io/gorm"
)

type Client struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Name        string `json:"name" gorm:"size:255;not null"` // company or private person
	ContactName string `json:"contact_name" gorm:"size:255"`
	Email       string `json:"email" gorm:"size:255"`
	Phone       string `json:"phone" gorm:"size:50"`
	Address     string `json:"address" gorm:"size:255"`
	PostalCode  string `json:"postal_code" gorm:"size:20"`
	City        string `json:"city" gorm:"size:100"`
	Siret       string `json:"siret" gorm:"size:14"`
	Notes       string `json:"notes" gorm:"type:text"`
}
