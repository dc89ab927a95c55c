// Package testutil builds in-memory databases and fixtures for tests.
package testutil

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"chantier-tracker/internal/database"
	"chantier-tracker/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory SQLite database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), database.GormConfig(false))
	require.NoError(t, err, "open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, m := range database.Models {
		require.NoError(t, db.AutoMigrate(m), "migrate %T", m)
	}
	return db
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateUser inserts an active user with a cheap bcrypt hash of password.
func CreateUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{Email: email, PasswordHash: string(hash), Role: role, Active: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}
