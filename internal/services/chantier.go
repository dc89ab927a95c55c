package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chantier-tracker/internal/models"
	"chantier-tracker/internal/progression"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChantierService owns chantier writes and keeps the stored progression in
// sync. Interventions call Recompute through the same transaction they
// write in.
type ChantierService struct {
	db    *gorm.DB
	audit *AuditLogger
	log   *slog.Logger
	now   func() time.Time
}

func NewChantierService(db *gorm.DB, audit *AuditLogger, log *slog.Logger) *ChantierService {
	return &ChantierService{db: db, audit: audit, log: log, now: time.Now}
}

// ChantierInput holds every editable field. PUT replaces them all.
type ChantierInput struct {
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	Address       string                  `json:"address"`
	Budget        float64                 `json:"budget"`
	Priority      models.ChantierPriority `json:"priority"`
	Status        models.ChantierStatus   `json:"status"`
	Progression   *int                    `json:"progression"` // explicit override
	StartDate     *time.Time              `json:"start_date"`
	EndDate       *time.Time              `json:"end_date"`
	ClientID      *uint                   `json:"client_id"`
	ResponsableID *uint                   `json:"responsable_id"`
}

type ChantierFilter struct {
	Status        models.ChantierStatus
	Priority      models.ChantierPriority
	Bucket        progression.DisplayBucket
	ClientID      uint
	ResponsableID uint
	Query         string
	Limit         int
	Offset        int
}

type ChantierPage struct {
	Items  []models.Chantier `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// Dashboard groups every chantier by display bucket.
type Dashboard struct {
	Buckets map[progression.DisplayBucket][]models.Chantier `json:"buckets"`
	Counts  map[progression.DisplayBucket]int               `json:"counts"`
	Total   int                                             `json:"total"`
	// AverageProgression ignores cancelled chantiers.
	AverageProgression int `json:"average_progression"`
}

func (s *ChantierService) Now() time.Time { return s.now() }

func normalizeChantierInput(in *ChantierInput) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	if in.Priority == "" {
		in.Priority = models.PriorityMoyenne
	}
	if in.Status == "" {
		in.Status = models.ChantierEnAttente
	}
}

func (s *ChantierService) validate(ctx context.Context, in ChantierInput) error {
	v := Violations{}
	if len([]rune(in.Title)) < 3 {
		v["title"] = "min_length_3"
	}
	if in.Budget < 0 {
		v["budget"] = "must_not_be_negative"
	}
	if !in.Priority.Valid() {
		v["priority"] = "invalid"
	}
	if !in.Status.Valid() {
		v["status"] = "invalid"
	}
	if in.Progression != nil && (*in.Progression < 0 || *in.Progression > 100) {
		v["progression"] = "out_of_range"
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		v["end_date"] = "before_start_date"
	}
	if in.ClientID != nil {
		if ok, err := exists(s.db.WithContext(ctx), &models.Client{}, *in.ClientID); err != nil {
			return err
		} else if !ok {
			v["client_id"] = "not_found"
		}
	}
	if in.ResponsableID != nil {
		var u models.User
		err := s.db.WithContext(ctx).Select("id", "active").First(&u, *in.ResponsableID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			v["responsable_id"] = "not_found"
		case err != nil:
			return err
		case !u.Active:
			v["responsable_id"] = "inactive"
		}
	}
	return v.Err()
}

func (s *ChantierService) Create(ctx context.Context, actor Actor, in ChantierInput) (*models.Chantier, error) {
	normalizeChantierInput(&in)
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	ch := models.Chantier{
		Title:         in.Title,
		Description:   in.Description,
		Address:       in.Address,
		Budget:        in.Budget,
		Priority:      in.Priority,
		Status:        in.Status,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		ClientID:      in.ClientID,
		ResponsableID: in.ResponsableID,
	}
	// a new chantier has no interventions yet
	ch.Progression = progression.Compute(ch.Status, nil)
	if in.Progression != nil && ch.Status != models.ChantierTermine {
		ch.Progression = progression.Clamp(*in.Progression)
	}

	if err := s.db.WithContext(ctx).Create(&ch).Error; err != nil {
		return nil, fmt.Errorf("creating chantier: %w", err)
	}

	s.audit.Record(ctx, actor, EntityChantier, ch.ID, "create", "Chantier created: "+ch.Title, nil)
	return &ch, nil
}

// Update replaces the editable fields. Progression follows the status: 100
// when termine, else the explicit override if given, else the intervention
// ratio.
func (s *ChantierService) Update(ctx context.Context, actor Actor, id uint, in ChantierInput) (*models.Chantier, error) {
	normalizeChantierInput(&in)
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	var prevStatus models.ChantierStatus
	var ch models.Chantier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockedFirst(tx, &ch, id); err != nil {
			return err
		}
		prevStatus = ch.Status

		ch.Title = in.Title
		ch.Description = in.Description
		ch.Address = in.Address
		ch.Budget = in.Budget
		ch.Priority = in.Priority
		ch.Status = in.Status
		ch.StartDate = in.StartDate
		ch.EndDate = in.EndDate
		ch.ClientID = in.ClientID
		ch.ResponsableID = in.ResponsableID

		switch {
		case ch.Status == models.ChantierTermine:
			ch.Progression = 100
		case in.Progression != nil:
			ch.Progression = progression.Clamp(*in.Progression)
		default:
			statuses, err := interventionStatuses(tx, ch.ID)
			if err != nil {
				return err
			}
			ch.Progression = progression.Compute(ch.Status, statuses)
		}

		if err := tx.Save(&ch).Error; err != nil {
			return fmt.Errorf("updating chantier: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"progression": ch.Progression}
	if prevStatus != ch.Status {
		meta["status_from"] = string(prevStatus)
		meta["status_to"] = string(ch.Status)
	}
	s.audit.Record(ctx, actor, EntityChantier, ch.ID, "update", "Chantier updated: "+ch.Title, meta)
	return &ch, nil
}

// Delete removes the chantier and, first, every intervention that points at
// it. Both happen in one transaction. It returns how many interventions were
// removed.
func (s *ChantierService) Delete(ctx context.Context, actor Actor, id uint) (int64, error) {
	var ch models.Chantier
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockedFirst(tx, &ch, id); err != nil {
			return err
		}
		res := tx.Where("chantier_id = ?", id).Delete(&models.Intervention{})
		if res.Error != nil {
			return fmt.Errorf("deleting interventions of chantier %d: %w", id, res.Error)
		}
		removed = res.RowsAffected
		if err := tx.Delete(&ch).Error; err != nil {
			return fmt.Errorf("deleting chantier %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("chantier deleted", "chantier_id", id, "interventions_removed", removed)
	s.audit.Record(ctx, actor, EntityChantier, id, "delete", "Chantier deleted: "+ch.Title,
		map[string]any{"interventions_removed": removed})
	return removed, nil
}

// Recompute derives and stores the progression of one chantier in its own
// transaction.
func (s *ChantierService) Recompute(ctx context.Context, id uint) (int, error) {
	var p int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = recompute(tx, id)
		return err
	})
	return p, err
}

// recompute must run inside the transaction that changed the interventions.
// The chantier row is locked so two concurrent intervention writes cannot
// store a stale ratio.
func recompute(tx *gorm.DB, id uint) (int, error) {
	var ch models.Chantier
	if err := lockedFirst(tx.Select("id", "status"), &ch, id); err != nil {
		return 0, err
	}
	statuses, err := interventionStatuses(tx, id)
	if err != nil {
		return 0, err
	}
	p := progression.Compute(ch.Status, statuses)
	if err := tx.Model(&models.Chantier{}).Where("id = ?", id).Update("progression", p).Error; err != nil {
		return 0, fmt.Errorf("storing progression of chantier %d: %w", id, err)
	}
	return p, nil
}

func interventionStatuses(tx *gorm.DB, chantierID uint) ([]models.InterventionStatus, error) {
	var raw []string
	if err := tx.Model(&models.Intervention{}).
		Where("chantier_id = ?", chantierID).
		Pluck("status", &raw).Error; err != nil {
		return nil, fmt.Errorf("loading interventions of chantier %d: %w", chantierID, err)
	}
	out := make([]models.InterventionStatus, len(raw))
	for i, s := range raw {
		out[i] = models.InterventionStatus(s)
	}
	return out, nil
}

// lockedFirst loads a row with SELECT ... FOR UPDATE where the dialect
// supports it. SQLite serialises writers on its own.
func lockedFirst(tx *gorm.DB, dest any, id uint) error {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func exists(db *gorm.DB, model any, id uint) (bool, error) {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *ChantierService) Get(ctx context.Context, id uint) (*models.Chantier, error) {
	var ch models.Chantier
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Responsable").
		Preload("Interventions", func(db *gorm.DB) *gorm.DB {
			return db.Order("date asc, id asc")
		}).
		Preload("Interventions.Technicien").
		First(&ch, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting chantier: %w", err)
	}
	return &ch, nil
}

func (s *ChantierService) List(ctx context.Context, f ChantierFilter) (*ChantierPage, error) {
	limit, offset := pageBounds(f.Limit, f.Offset)

	q := s.db.WithContext(ctx).Model(&models.Chantier{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.ResponsableID != 0 {
		q = q.Where("responsable_id = ?", f.ResponsableID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(address) LIKE ?", like, like)
	}
	ordered := func() *gorm.DB {
		return q.Session(&gorm.Session{}).Preload("Client").Preload("Responsable").Order("created_at desc, id desc")
	}

	// the display bucket depends on the clock, so it is filtered in memory
	if f.Bucket != "" {
		var all []models.Chantier
		if err := ordered().Find(&all).Error; err != nil {
			return nil, fmt.Errorf("listing chantiers: %w", err)
		}
		now := s.now()
		matched := make([]models.Chantier, 0, len(all))
		for _, c := range all {
			if progression.DisplayStatus(c, now) == f.Bucket {
				matched = append(matched, c)
			}
		}
		total := int64(len(matched))
		if offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[offset:]
		}
		if len(matched) > limit {
			matched = matched[:limit]
		}
		return &ChantierPage{Items: nonNil(matched), Total: total, Limit: limit, Offset: offset}, nil
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting chantiers: %w", err)
	}
	var items []models.Chantier
	if err := ordered().Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing chantiers: %w", err)
	}
	return &ChantierPage{Items: nonNil(items), Total: total, Limit: limit, Offset: offset}, nil
}

func (s *ChantierService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var all []models.Chantier
	if err := s.db.WithContext(ctx).
		Preload("Client").
		Order("start_date asc, id asc").
		Find(&all).Error; err != nil {
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}

	groups := progression.Group(all, s.now())
	d := &Dashboard{
		Buckets: groups,
		Counts:  make(map[progression.DisplayBucket]int, len(groups)),
		Total:   len(all),
	}
	for b, list := range groups {
		d.Counts[b] = len(list)
	}

	sum, n := 0, 0
	for _, c := range all {
		if c.Status == models.ChantierAnnule {
			continue
		}
		sum += c.Progression
		n++
	}
	if n > 0 {
		d.AverageProgression = progression.Ratio(sum, n*100)
	}
	return d, nil
}

// pageBounds applies the default page size of 50 and the cap of 200.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
