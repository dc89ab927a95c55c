package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chantier-tracker/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type UserService struct {
	db    *gorm.DB
	audit *AuditLogger
	log   *slog.Logger
}

func NewUserService(db *gorm.DB, audit *AuditLogger, log *slog.Logger) *UserService {
	return &UserService{db: db, audit: audit, log: log}
}

type UserInput struct {
	Email     string          `json:"email"`
	Password  string          `json:"password"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Phone     string          `json:"phone"`
	Role      models.UserRole `json:"role"`
	Active    *bool           `json:"active"`
}

type UserPatch struct {
	FirstName *string          `json:"first_name"`
	LastName  *string          `json:"last_name"`
	Phone     *string          `json:"phone"`
	Role      *models.UserRole `json:"role"`
	Active    *bool            `json:"active"`
}

type UserFilter struct {
	Role   models.UserRole
	Active *bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate checks credentials. Unknown e-mail and wrong password give
// the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInactiveUser
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&u).Update("last_login_at", now).Error; err != nil {
		s.log.Warn("failed to store last login", "user_id", u.ID, "error", err)
	}
	u.LastLoginAt = &now
	return &u, nil
}

// Active returns the user only if it still exists and is enabled.
func (s *UserService) Active(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInactiveUser
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, actor Actor, in UserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)

	v := Violations{}
	if !strings.Contains(email, "@") || len(email) < 3 {
		v["email"] = "invalid"
	}
	if len(in.Password) < minPasswordLength {
		v["password"] = "min_length_8"
	}
	if !in.Role.Valid() {
		v["role"] = "invalid"
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: user %s already exists", ErrConflict, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	u := models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         in.Role,
		Active:       active,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.audit.Record(ctx, actor, EntityUser, u.ID, "create", "User created: "+u.Email,
		map[string]any{"role": string(u.Role)})
	return &u, nil
}

// Update changes profile, role and active flag. An admin cannot lock
// themselves out by demoting or disabling their own account.
func (s *UserService) Update(ctx context.Context, actor Actor, id uint, patch UserPatch) (*models.User, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, Violations{"role": "invalid"}.Err()
	}

	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockedFirst(tx, &u, id); err != nil {
			return err
		}

		if actor.UserID == u.ID {
			if patch.Role != nil && *patch.Role != u.Role {
				return fmt.Errorf("%w: cannot change your own role", ErrForbidden)
			}
			if patch.Active != nil && !*patch.Active {
				return fmt.Errorf("%w: cannot disable your own account", ErrForbidden)
			}
		}

		if patch.FirstName != nil {
			u.FirstName = strings.TrimSpace(*patch.FirstName)
		}
		if patch.LastName != nil {
			u.LastName = strings.TrimSpace(*patch.LastName)
		}
		if patch.Phone != nil {
			u.Phone = strings.TrimSpace(*patch.Phone)
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
		if patch.Active != nil {
			u.Active = *patch.Active
		}

		if err := tx.Save(&u).Error; err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, EntityUser, u.ID, "update", "User updated: "+u.Email,
		map[string]any{"role": string(u.Role), "active": u.Active})
	return &u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id uint, current, next string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return Violations{"new_password": "min_length_8"}.Err()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(u).Update("password_hash", string(hash)).Error; err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	s.audit.Record(ctx, Actor{UserID: u.ID, Role: u.Role}, EntityUser, u.ID, "password_change", "Password changed", nil)
	return nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("email asc")
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return nonNil(users), nil
}
