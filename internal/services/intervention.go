package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chantier-tracker/internal/models"

	"gorm.io/gorm"
)

// InterventionService writes interventions and recomputes the progression of
// the owning chantier in the same transaction.
type InterventionService struct {
	db    *gorm.DB
	audit *AuditLogger
	log   *slog.Logger
}

func NewInterventionService(db *gorm.DB, audit *AuditLogger, log *slog.Logger) *InterventionService {
	return &InterventionService{db: db, audit: audit, log: log}
}

type InterventionInput struct {
	Title        string                    `json:"title"`
	Description  string                    `json:"description"`
	Date         *time.Time                `json:"date"`
	Duration     float64                   `json:"duration"`
	Status       models.InterventionStatus `json:"status"`
	Price        float64                   `json:"price"`
	TechnicienID *uint                     `json:"technicien_id"`
	ChantierID   uint                      `json:"chantier_id"`
}

// InterventionPatch only touches the fields that are set.
type InterventionPatch struct {
	Title        *string                    `json:"title"`
	Description  *string                    `json:"description"`
	Date         *time.Time                 `json:"date"`
	Duration     *float64                   `json:"duration"`
	Status       *models.InterventionStatus `json:"status"`
	Price        *float64                   `json:"price"`
	TechnicienID *uint                      `json:"technicien_id"`
	ChantierID   *uint                      `json:"chantier_id"`
}

// technicianOnly reports whether the patch sticks to the fields a technician
// may change on their own intervention.
func (p InterventionPatch) technicianOnly() bool {
	return p.Title == nil && p.Date == nil && p.Price == nil &&
		p.TechnicienID == nil && p.ChantierID == nil
}

type InterventionFilter struct {
	ChantierID   uint
	TechnicienID uint
	Status       models.InterventionStatus
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

type InterventionPage struct {
	Items  []models.Intervention `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// CanChangeInterventionStatus holds the transition rules per role.
// Managers may set any status; technicians only move work forward.
func CanChangeInterventionStatus(role models.UserRole, current, next models.InterventionStatus) bool {
	if current == next {
		return true
	}
	switch role {
	case models.RoleAdmin, models.RoleGestionnaire:
		return true
	case models.RoleTechnicien:
		switch current {
		case models.InterventionPlanifiee:
			return next == models.InterventionEnCours
		case models.InterventionEnCours:
			return next == models.InterventionTerminee
		}
	}
	return false
}

// validateRefs checks the chantier and technicien references through db,
// which is the open transaction on update.
func validateRefs(db *gorm.DB, v Violations, chantierID uint, technicienID *uint) error {
	if chantierID == 0 {
		v["chantier_id"] = "required"
	} else if ok, err := exists(db, &models.Chantier{}, chantierID); err != nil {
		return err
	} else if !ok {
		v["chantier_id"] = "not_found"
	}

	if technicienID != nil {
		var u models.User
		err := db.Select("id", "active").First(&u, *technicienID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			v["technicien_id"] = "not_found"
		case err != nil:
			return err
		case !u.Active:
			v["technicien_id"] = "inactive"
		}
	}
	return nil
}

func validateInterventionFields(v Violations, iv *models.Intervention) {
	if len([]rune(iv.Title)) < 3 {
		v["title"] = "min_length_3"
	}
	if !iv.Status.Valid() {
		v["status"] = "invalid"
	}
	if iv.Duration < 0 {
		v["duration"] = "must_not_be_negative"
	}
	if iv.Price < 0 {
		v["price"] = "must_not_be_negative"
	}
}

func (s *InterventionService) Create(ctx context.Context, actor Actor, in InterventionInput) (*models.Intervention, error) {
	if !actor.CanManage() {
		return nil, ErrForbidden
	}

	iv := models.Intervention{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Date:         in.Date,
		Duration:     in.Duration,
		Status:       in.Status,
		Price:        in.Price,
		TechnicienID: in.TechnicienID,
		ChantierID:   in.ChantierID,
	}
	if iv.Status == "" {
		iv.Status = models.InterventionPlanifiee
	}

	v := Violations{}
	validateInterventionFields(v, &iv)
	if err := validateRefs(s.db.WithContext(ctx), v, iv.ChantierID, iv.TechnicienID); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var p int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&iv).Error; err != nil {
			return fmt.Errorf("creating intervention: %w", err)
		}
		var err error
		p, err = recompute(tx, iv.ChantierID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("intervention created", "intervention_id", iv.ID, "chantier_id", iv.ChantierID, "progression", p)
	s.audit.Record(ctx, actor, EntityIntervention, iv.ID, "create", "Intervention created: "+iv.Title,
		map[string]any{"chantier_id": iv.ChantierID, "progression": p})
	return &iv, nil
}

// Update applies a partial change. The row is locked before the ownership
// and transition checks so they see the stored status. When the
// intervention moves to another chantier both the old and the new parent
// are recomputed.
func (s *InterventionService) Update(ctx context.Context, actor Actor, id uint, patch InterventionPatch) (*models.Intervention, error) {
	if !actor.CanManage() && (actor.Role != models.RoleTechnicien || !patch.technicianOnly()) {
		return nil, ErrForbidden
	}

	var (
		iv           models.Intervention
		prevStatus   models.InterventionStatus
		prevChantier uint
		p            int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockedFirst(tx, &iv, id); err != nil {
			return err
		}
		if !actor.CanManage() && (iv.TechnicienID == nil || *iv.TechnicienID != actor.UserID) {
			return ErrForbidden
		}
		if patch.Status != nil && !CanChangeInterventionStatus(actor.Role, iv.Status, *patch.Status) {
			return fmt.Errorf("%w: status change %s -> %s", ErrForbidden, iv.Status, *patch.Status)
		}

		prevStatus = iv.Status
		prevChantier = iv.ChantierID
		patch.apply(&iv)

		v := Violations{}
		validateInterventionFields(v, &iv)
		if patch.ChantierID != nil || patch.TechnicienID != nil {
			if err := validateRefs(tx, v, iv.ChantierID, patch.TechnicienID); err != nil {
				return err
			}
		}
		if err := v.Err(); err != nil {
			return err
		}

		if err := tx.Save(&iv).Error; err != nil {
			return fmt.Errorf("updating intervention: %w", err)
		}
		if prevChantier != 0 && prevChantier != iv.ChantierID {
			if _, err := recompute(tx, prevChantier); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		var err error
		p, err = recompute(tx, iv.ChantierID)
		return err
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"chantier_id": iv.ChantierID, "progression": p}
	if prevStatus != iv.Status {
		meta["status_from"] = string(prevStatus)
		meta["status_to"] = string(iv.Status)
	}
	if prevChantier != iv.ChantierID {
		meta["moved_from"] = prevChantier
	}
	s.audit.Record(ctx, actor, EntityIntervention, iv.ID, "update", "Intervention updated: "+iv.Title, meta)
	return &iv, nil
}

func (p InterventionPatch) apply(iv *models.Intervention) {
	if p.Title != nil {
		iv.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		iv.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		iv.Date = p.Date
	}
	if p.Duration != nil {
		iv.Duration = *p.Duration
	}
	if p.Status != nil {
		iv.Status = *p.Status
	}
	if p.Price != nil {
		iv.Price = *p.Price
	}
	if p.TechnicienID != nil {
		iv.TechnicienID = p.TechnicienID
	}
	if p.ChantierID != nil {
		iv.ChantierID = *p.ChantierID
	}
}

// Delete removes an intervention and recomputes its chantier, if it still
// has one.
func (s *InterventionService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.CanManage() {
		return ErrForbidden
	}

	var iv models.Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&iv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&iv).Error; err != nil {
			return fmt.Errorf("deleting intervention %d: %w", id, err)
		}
		if iv.ChantierID == 0 {
			return nil
		}
		// a dangling reference is not an error for the delete itself
		if _, err := recompute(tx, iv.ChantierID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, actor, EntityIntervention, iv.ID, "delete", "Intervention deleted: "+iv.Title,
		map[string]any{"chantier_id": iv.ChantierID})
	return nil
}

func (s *InterventionService) Get(ctx context.Context, id uint) (*models.Intervention, error) {
	var iv models.Intervention
	if err := s.db.WithContext(ctx).Preload("Technicien").Preload("Chantier").First(&iv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting intervention: %w", err)
	}
	return &iv, nil
}

func (s *InterventionService) List(ctx context.Context, f InterventionFilter) (*InterventionPage, error) {
	limit, offset := pageBounds(f.Limit, f.Offset)

	q := s.db.WithContext(ctx).Model(&models.Intervention{})
	if f.ChantierID != 0 {
		q = q.Where("chantier_id = ?", f.ChantierID)
	}
	if f.TechnicienID != 0 {
		q = q.Where("technicien_id = ?", f.TechnicienID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting interventions: %w", err)
	}
	var items []models.Intervention
	if err := q.Session(&gorm.Session{}).
		Preload("Technicien").
		Preload("Chantier").
		Order("date desc, id desc").
		Limit(limit).Offset(offset).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing interventions: %w", err)
	}
	return &InterventionPage{Items: nonNil(items), Total: total, Limit: limit, Offset: offset}, nil
}
