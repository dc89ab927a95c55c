package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env    string       `yaml:"env"`
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Auth   AuthConfig   `yaml:"auth"`
	CORS   CORSConfig   `yaml:"cors"`
	Log    LogConfig    `yaml:"log"`
	Seed   SeedConfig   `yaml:"seed"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DBConfig struct {
	Driver string `yaml:"driver"` // postgres, mysql, sqlite
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
	// Migrations is "auto" (gorm AutoMigrate) or "sql" (embedded SQL files, postgres only).
	Migrations string `yaml:"migrations"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	SessionSecret string        `yaml:"session_secret"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SeedConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
	Demo          bool   `yaml:"demo"`
}

// IsProduction hides error details from API responses and switches gin to release mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func defaults() *Config {
	return &Config{
		Env:    "development",
		Server: ServerConfig{Port: "8080"},
		DB: DBConfig{
			Driver:     "postgres",
			Migrations: "auto",
		},
		Auth: AuthConfig{TokenTTL: 24 * time.Hour},
		Log:  LogConfig{Level: "info"},
		Seed: SeedConfig{
			AdminEmail:    "admin@chantiers.local",
			AdminPassword: "Admin123!",
		},
	}
}

// Load reads .env, then the optional YAML file named by CONFIG_PATH, then
// environment variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.DB.Driver, "DB_DRIVER")
	setString(&cfg.DB.DSN, "DB_DSN")
	setString(&cfg.DB.Migrations, "DB_MIGRATIONS")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.SessionSecret, "SESSION_SECRET")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Seed.AdminEmail, "ADMIN_EMAIL")
	setString(&cfg.Seed.AdminPassword, "ADMIN_PASSWORD")

	if err := setBool(&cfg.DB.Debug, "DB_DEBUG"); err != nil {
		return err
	}
	if err := setBool(&cfg.Seed.Demo, "SEED_DEMO"); err != nil {
		return err
	}

	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = d
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.Origins = origins
	}
	return nil
}

func (c *Config) validate() error {
	if c.DB.DSN == "" {
		return errors.New("DB_DSN is not set")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.Auth.SessionSecret == "" {
		return errors.New("SESSION_SECRET is not set")
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	switch c.DB.Migrations {
	case "auto", "sql":
	default:
		return fmt.Errorf("unsupported DB_MIGRATIONS %q", c.DB.Migrations)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}
