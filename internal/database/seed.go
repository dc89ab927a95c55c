package database

import (
	"fmt"
	"log/slog"
	"strings"

	"chantier-tracker/internal/config"
	"chantier-tracker/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type seedUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.UserRole
}

// demo accounts, only created with SEED_DEMO=true
var demoUsers = []seedUser{
	{Email: "gestion@chantiers.local", Password: "Gestion123!", FirstName: "Camille", LastName: "Martin", Role: models.RoleGestionnaire},
	{Email: "tech@chantiers.local", Password: "Tech123!", FirstName: "Lucas", LastName: "Bernard", Role: models.RoleTechnicien},
}

// Seed creates the default admin when no admin exists yet, plus the demo
// accounts when requested. It is safe to run on every start.
func Seed(db *gorm.DB, cfg config.SeedConfig, log *slog.Logger) error {
	if err := createDefaultAdmin(db, cfg, log); err != nil {
		return err
	}
	if !cfg.Demo {
		return nil
	}
	for _, u := range demoUsers {
		if err := createIfMissing(db, u, log); err != nil {
			return err
		}
	}
	return nil
}

func createDefaultAdmin(db *gorm.DB, cfg config.SeedConfig, log *slog.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	var existing models.User
	err := db.Where("email = ?", email).Limit(1).Find(&existing).Error
	if err != nil {
		return fmt.Errorf("check admin email %s: %w", email, err)
	}
	if existing.ID != 0 {
		log.Warn("no admin account exists and ADMIN_EMAIL belongs to a non-admin user",
			"email", email, "role", existing.Role)
		return nil
	}
	return createIfMissing(db, seedUser{
		Email:     cfg.AdminEmail,
		Password:  cfg.AdminPassword,
		FirstName: "Admin",
		Role:      models.RoleAdmin,
	}, log)
}

func createIfMissing(db *gorm.DB, u seedUser, log *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))

	var count int64
	if err := db.Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check seed user %s: %w", email, err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", email, err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		Active:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("create seed user %s: %w", email, err)
	}

	log.Info("created seed user", "email", email, "role", u.Role)
	return nil
}
