package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/evently-app/evently-backend/config"
	"github.com/evently-app/evently-backend/database"
	"github.com/evently-app/evently-backend/internal/auth"
	"github.com/evently-app/evently-backend/internal/event"
	"github.com/evently-app/evently-backend/internal/loginlog"
	"github.com/evently-app/evently-backend/routes"
	"github.com/evently-app/evently-backend/utils"
)

// @title Evently API
// @version 1.0
// @description REST backend for the Evently event-listing application.
// @BasePath /api/v1
func main() {
	cfg := config.Load()
	db := database.Connect(cfg)

	// Init Redis (OAuth state)
	if err := utils.InitRedis(cfg); err != nil {
		log.Fatalf("❌ Redis init failed: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// Init Kafka auth activity stream (optional)
	var publisher loginlog.ActivityPublisher
	if kp := utils.NewKafkaPublisher(cfg); kp != nil {
		publisher = kp
		defer kp.Close()
	}

	// Auto-migrate models
	log.Println("🔄 Running database migrations...")
	if err := db.AutoMigrate(
		&auth.User{},
		&event.Event{},
		&loginlog.LoginLogEntry{},
	); err != nil {
		panic(fmt.Sprintf("❌ DB AutoMigrate failed: %v", err))
	}
	log.Println("✅ Database migrations completed")

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.Setup(router, cfg, publisher)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
