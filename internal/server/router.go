package server

import (
	"log/slog"
	"net/http"
	"time"

	"chantier-tracker/internal/auth"
	"chantier-tracker/internal/config"
	"chantier-tracker/internal/handlers"
	"chantier-tracker/internal/middleware"
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the services the HTTP layer needs.
type Deps struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	Tokens        *auth.TokenIssuer
	Audit         *services.AuditLogger
	Users         *services.UserService
	Clients       *services.ClientService
	Chantiers     *services.ChantierService
	Interventions *services.InterventionService
	Importer      *services.Importer
}

func NewDeps(db *gorm.DB, cfg *config.Config, logger *slog.Logger) Deps {
	audit := services.NewAuditLogger(db, logger)
	clients := services.NewClientService(db, audit, logger)
	chantiers := services.NewChantierService(db, audit, logger)
	return Deps{
		DB:            db,
		Logger:        logger,
		Tokens:        auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Audit:         audit,
		Users:         services.NewUserService(db, audit, logger),
		Clients:       clients,
		Chantiers:     chantiers,
		Interventions: services.NewInterventionService(db, audit, logger),
		Importer:      services.NewImporter(clients, chantiers),
	}
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	if len(cfg.Origins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:     cfg.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(corsMiddleware(cfg.CORS))

	store := cookie.NewStore([]byte(cfg.Auth.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Auth.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("chantier_session", store))

	resp := handlers.NewResponder(deps.Logger, !cfg.IsProduction())
	authH := handlers.NewAuthHandler(resp, deps.Users, deps.Tokens)
	chantierH := handlers.NewChantierHandler(resp, deps.Chantiers, deps.Audit, deps.Importer)
	interventionH := handlers.NewInterventionHandler(resp, deps.Interventions)
	clientH := handlers.NewClientHandler(resp, deps.Clients, deps.Importer)
	userH := handlers.NewUserHandler(resp, deps.Users)
	auditH := handlers.NewAuditHandler(resp, deps.Audit)

	managers := middleware.RequireRole(models.RoleAdmin, models.RoleGestionnaire)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	api := r.Group("/api")

	// AUTH
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/logout", authH.Logout)

	authed := api.Group("")
	authed.Use(middleware.RequireAuth(deps.Users, deps.Tokens))
	authed.GET("/auth/me", authH.Me)

	// CHANTIERS
	authed.GET("/dashboard", chantierH.Dashboard)
	authed.GET("/chantiers", chantierH.List)
	authed.POST("/chantiers", managers, chantierH.Create)
	authed.POST("/chantiers/import", managers, chantierH.Import)
	authed.GET("/chantiers/:id", chantierH.Get)
	authed.PUT("/chantiers/:id", managers, chantierH.Update)
	authed.DELETE("/chantiers/:id", managers, chantierH.Delete)
	authed.GET("/chantiers/:id/history", chantierH.History)
	authed.GET("/chantiers/:id/report", chantierH.Report)

	// INTERVENTIONS
	// technicians may patch their own interventions, checked by the service
	authed.GET("/interventions", interventionH.List)
	authed.POST("/interventions", managers, interventionH.Create)
	authed.GET("/interventions/:id", interventionH.Get)
	authed.PATCH("/interventions/:id", interventionH.Patch)
	authed.DELETE("/interventions/:id", managers, interventionH.Delete)

	// CLIENTS
	authed.GET("/clients", clientH.List)
	authed.POST("/clients", managers, clientH.Create)
	authed.POST("/clients/import", managers, clientH.Import)
	authed.GET("/clients/:id", clientH.Get)
	authed.PUT("/clients/:id", managers, clientH.Update)
	authed.DELETE("/clients/:id", managers, clientH.Delete)

	// USERS
	authed.PUT("/users/me/password", userH.ChangePassword)
	authed.GET("/users", adminOnly, userH.List)
	authed.POST("/users", adminOnly, userH.Create)
	authed.GET("/users/:id", adminOnly, userH.Get)
	authed.PATCH("/users/:id", adminOnly, userH.Patch)

	// AUDIT
	authed.GET("/audit", adminOnly, auditH.List)

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			sqlDB, err := deps.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
