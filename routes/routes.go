package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/evently-app/evently-backend/config"
	"github.com/evently-app/evently-backend/database"
	"github.com/evently-app/evently-backend/internal/auth"
	"github.com/evently-app/evently-backend/internal/event"
	"github.com/evently-app/evently-backend/internal/geocoding"
	"github.com/evently-app/evently-backend/internal/imagestore"
	"github.com/evently-app/evently-backend/internal/loginlog"
	"github.com/evently-app/evently-backend/middleware"

	_ "github.com/evently-app/evently-backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Setup wires repositories, services and handlers onto the router
func Setup(r *gin.Engine, cfg *config.Config, publisher loginlog.ActivityPublisher) {
	dev := cfg.IsDevelopment()

	// ========== Services ==========
	ledgerRepo := loginlog.NewRepository(database.DB)
	ledgerSvc := loginlog.NewService(ledgerRepo, publisher)
	ledgerHandler := loginlog.NewHandler(ledgerSvc, dev)

	providers := []auth.IdentityProvider{
		auth.NewGoogleProvider(cfg),
		auth.NewGithubProvider(cfg),
	}
	authRepo := auth.NewRepository(database.DB)
	authSvc := auth.NewService(authRepo, ledgerSvc, providers, cfg)
	authHandler := auth.NewHandler(authSvc, dev)

	geocoder := geocoding.NewClient(cfg.GeocoderBaseURL)
	images := imagestore.NewClient(cfg.ImageCDNBaseURL, cfg.ImageCDNAPIKey)

	eventRepo := event.NewRepository(database.DB)
	eventSvc := event.NewService(eventRepo)
	eventHandler := event.NewHandler(eventSvc, geocoder, images, dev)

	// ========== Swagger ==========
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimiter())
	api.Use(middleware.AuditMiddleware())

	// ========== Public Auth ==========
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/oauth/:provider", authHandler.OAuthStart)
		authRoutes.GET("/oauth/:provider/callback", authHandler.OAuthCallback)
	}

	// ========== Public Event Reads ==========
	api.GET("/events/upcoming", eventHandler.GetUpcomingEvents)
	api.GET("/events/nearby", eventHandler.GetNearbyEvents)

	// ========== Protected ==========
	protected := api.Group("/")
	protected.Use(middleware.AuthGate(cfg, ledgerSvc))
	{
		protected.POST("/auth/refresh", authHandler.Refresh)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/events/mine", eventHandler.GetMyEvents)
		protected.POST("/events", eventHandler.CreateEvent)
		protected.PUT("/events/:id", eventHandler.UpdateEvent)
		protected.DELETE("/events/:id", eventHandler.DeleteEvent)

		// ========== Login Ledger (audit surface) ==========
		ledgerRoutes := protected.Group("/loginlogs")
		{
			ledgerRoutes.GET("", ledgerHandler.GetRecent)
			ledgerRoutes.GET("/user/:email", ledgerHandler.GetForUser)
			ledgerRoutes.GET("/stats", ledgerHandler.GetStats)
			ledgerRoutes.GET("/export", ledgerHandler.ExportXLSX)
			ledgerRoutes.POST("/purge", ledgerHandler.PurgeExpired)
		}
	}

	// Single-event read stays public but registered after /events/upcoming
	// and /events/nearby so those aren't captured as IDs
	api.GET("/events/:id", eventHandler.GetEventByID)
}
