package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserID uint  `json:"user_id" gorm:"index"`
	User   *User `json:"user,omitempty"`

	Entity   string            `json:"entity" gorm:"size:50;not null;index:idx_audit_entity"` // "chantier", "intervention", "client", "user"
	EntityID uint              `json:"entity_id" gorm:"index:idx_audit_entity"`
	Action   string            `json:"action" gorm:"size:50;not null"` // "create", "update", "delete", "import"...
	Details  string            `json:"details" gorm:"type:text"`
	Meta     datatypes.JSONMap `json:"meta,omitempty"`
}
