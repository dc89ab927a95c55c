package models

import (
	"time"

	"gorm.io/gorm"
)

type InterventionStatus string

const (
	InterventionPlanifiee InterventionStatus = "planifiee"
	InterventionEnCours   InterventionStatus = "en_cours"
	InterventionTerminee  InterventionStatus = "terminee"
	InterventionAnnulee   InterventionStatus = "annulee"
)

func (s InterventionStatus) Valid() bool {
	switch s {
	case InterventionPlanifiee, InterventionEnCours, InterventionTerminee, InterventionAnnulee:
		return true
	}
	return false
}

type Intervention struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Title       string             `json:"title" gorm:"size:255;not null"`
	Description string             `json:"description" gorm:"type:text"`
	Date        *time.Time         `json:"date"`
	Duration    float64            `json:"duration"` // hours
	Status      InterventionStatus `json:"status" gorm:"type:varchar(20);not null;default:planifiee"`
	Price       float64            `json:"price"`

	TechnicienID *uint `json:"technicien_id" gorm:"index"`
	Technicien   *User `json:"technicien,omitempty"`

	ChantierID uint      `json:"chantier_id" gorm:"index;not null"`
	Chantier   *Chantier `json:"chantier,omitempty"`
}
