package services

import (
	"context"
	"log/slog"

	"chantier-tracker/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EntityChantier     = "chantier"
	EntityIntervention = "intervention"
	EntityClient       = "client"
	EntityUser         = "user"
)

// AuditLogger writes the audit trail. Failures are logged and swallowed:
// a missing audit row never fails the write it describes.
type AuditLogger struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewAuditLogger(db *gorm.DB, log *slog.Logger) *AuditLogger {
	return &AuditLogger{db: db, log: log}
}

func (a *AuditLogger) Record(ctx context.Context, actor Actor, entity string, entityID uint, action, details string, meta map[string]any) {
	if a == nil || a.db == nil {
		return
	}
	rec := models.AuditLog{
		UserID:   actor.UserID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	if len(meta) > 0 {
		rec.Meta = datatypes.JSONMap(meta)
	}
	if err := a.db.WithContext(ctx).Create(&rec).Error; err != nil {
		a.log.Warn("audit log write failed", "entity", entity, "entity_id", entityID, "action", action, "error", err)
	}
}

type AuditFilter struct {
	Entity   string
	EntityID uint
	UserID   uint
	Limit    int
}

// List returns the newest entries first, capped at 200 rows.
func (a *AuditLogger) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	q := a.db.WithContext(ctx).Preload("User").Order("created_at desc, id desc").Limit(limit)
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return nonNil(logs), nil
}

// History is the chronological trail of one record.
func (a *AuditLogger) History(ctx context.Context, entity string, id uint) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := a.db.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, id).
		Preload("User").
		Order("created_at asc, id asc").
		Find(&logs).Error
	return nonNil(logs), err
}
