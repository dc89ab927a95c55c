package models

import (
	"time"

	"gorm.io/gorm"
)

type ChantierStatus string
type ChantierPriority string

const (
	ChantierEnAttente ChantierStatus = "en_attente"
	ChantierEnCours   ChantierStatus = "en_cours"
	ChantierTermine   ChantierStatus = "termine"
	ChantierAnnule    ChantierStatus = "annule"

	PriorityBasse    ChantierPriority = "basse"
	PriorityMoyenne  ChantierPriority = "moyenne"
	PriorityHaute    ChantierPriority = "haute"
	PriorityCritique ChantierPriority = "critique"
)

func (s ChantierStatus) Valid() bool {
	switch s {
	case ChantierEnAttente, ChantierEnCours, ChantierTermine, ChantierAnnule:
		return true
	}
	return false
}

func (p ChantierPriority) Valid() bool {
	switch p {
	case PriorityBasse, PriorityMoyenne, PriorityHaute, PriorityCritique:
		return true
	}
	return false
}

// Chantier is a construction job site. Progression is stored and kept in
// sync by the service layer whenever one of its interventions changes.
type Chantier struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Title       string           `json:"title" gorm:"size:255;not null"`
	Description string           `json:"description" gorm:"type:text"`
	Address     string           `json:"address" gorm:"size:255"`
	Budget      float64          `json:"budget"`
	Priority    ChantierPriority `json:"priority" gorm:"type:varchar(20);not null;default:moyenne"`
	Status      ChantierStatus   `json:"status" gorm:"type:varchar(20);not null;default:en_attente;index"`
	Progression int              `json:"progression" gorm:"not null;default:0"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	ClientID *uint   `json:"client_id" gorm:"index"`
	Client   *Client `json:"client,omitempty"`

	ResponsableID *uint `json:"responsable_id" gorm:"index"`
	Responsable   *User `json:"responsable,omitempty"`

	Interventions []Intervention `json:"interventions,omitempty"`
}
