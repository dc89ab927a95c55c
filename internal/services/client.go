package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chantier-tracker/internal/models"

	"gorm.io/gorm"
)

type ClientService struct {
	db    *gorm.DB
	audit *AuditLogger
	log   *slog.Logger
}

func NewClientService(db *gorm.DB, audit *AuditLogger, log *slog.Logger) *ClientService {
	return &ClientService{db: db, audit: audit, log: log}
}

type ClientInput struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Siret       string `json:"siret"`
	Notes       string `json:"notes"`
}

type ClientPage struct {
	Items  []models.Client `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (in *ClientInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.City = strings.TrimSpace(in.City)
	in.Siret = strings.ReplaceAll(strings.TrimSpace(in.Siret), " ", "")
	in.Notes = strings.TrimSpace(in.Notes)
}

func (in ClientInput) validate() error {
	v := Violations{}
	if len([]rune(in.Name)) < 2 {
		v["name"] = "min_length_2"
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		v["email"] = "invalid"
	}
	if in.Siret != "" && (len(in.Siret) != 14 || strings.Trim(in.Siret, "0123456789") != "") {
		v["siret"] = "invalid"
	}
	return v.Err()
}

// checkUnique rejects a name or e-mail already used by another client.
// excludeID is 0 on create.
func checkUnique(db *gorm.DB, in ClientInput, excludeID uint) error {
	var count int64
	q := db.Model(&models.Client{}).Where("LOWER(name) = LOWER(?)", in.Name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: a client named %q already exists", ErrConflict, in.Name)
	}

	if in.Email == "" {
		return nil
	}
	q = db.Model(&models.Client{}).Where("LOWER(email) = ?", in.Email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: a client with e-mail %q already exists", ErrConflict, in.Email)
	}
	return nil
}

func (s *ClientService) Create(ctx context.Context, actor Actor, in ClientInput) (*models.Client, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := checkUnique(s.db.WithContext(ctx), in, 0); err != nil {
		return nil, err
	}

	c := models.Client{
		Name:        in.Name,
		ContactName: in.ContactName,
		Email:       in.Email,
		Phone:       in.Phone,
		Address:     in.Address,
		PostalCode:  in.PostalCode,
		City:        in.City,
		Siret:       in.Siret,
		Notes:       in.Notes,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	s.audit.Record(ctx, actor, EntityClient, c.ID, "create", "Client created: "+c.Name, nil)
	return &c, nil
}

func (s *ClientService) Update(ctx context.Context, actor Actor, id uint, in ClientInput) (*models.Client, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var c models.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockedFirst(tx, &c, id); err != nil {
			return err
		}
		if err := checkUnique(tx, in, c.ID); err != nil {
			return err
		}

		c.Name = in.Name
		c.ContactName = in.ContactName
		c.Email = in.Email
		c.Phone = in.Phone
		c.Address = in.Address
		c.PostalCode = in.PostalCode
		c.City = in.City
		c.Siret = in.Siret
		c.Notes = in.Notes

		if err := tx.Save(&c).Error; err != nil {
			return fmt.Errorf("updating client: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, EntityClient, c.ID, "update", "Client updated: "+c.Name, nil)
	return &c, nil
}

// Delete removes the client and detaches it from its chantiers.
func (s *ClientService) Delete(ctx context.Context, actor Actor, id uint) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Chantier{}).
			Where("client_id = ?", id).
			Update("client_id", nil).Error; err != nil {
			return fmt.Errorf("detaching chantiers: %w", err)
		}
		return tx.Delete(c).Error
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, actor, EntityClient, id, "delete", "Client deleted: "+c.Name, nil)
	return nil
}

func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting client: %w", err)
	}
	return &c, nil
}

// FindByName matches case-insensitively on the trimmed name.
func (s *ClientService) FindByName(ctx context.Context, name string) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", strings.TrimSpace(name)).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding client: %w", err)
	}
	return &c, nil
}

func (s *ClientService) List(ctx context.Context, query string, limit, offset int) (*ClientPage, error) {
	limit, offset = pageBounds(limit, offset)

	q := s.db.WithContext(ctx).Model(&models.Client{})
	if term := strings.TrimSpace(query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(city) LIKE ? OR LOWER(contact_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting clients: %w", err)
	}
	var items []models.Client
	if err := q.Session(&gorm.Session{}).Order("name asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	return &ClientPage{Items: nonNil(items), Total: total, Limit: limit, Offset: offset}, nil
}
