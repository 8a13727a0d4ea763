package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kmle-tutor/backend/ai"
	"kmle-tutor/backend/internal/api"
	"kmle-tutor/backend/internal/export"
	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/internal/service"
	"kmle-tutor/backend/internal/session"
	"kmle-tutor/backend/pkg/config"
	"kmle-tutor/backend/pkg/errors"
	"kmle-tutor/backend/pkg/jwt"
	"kmle-tutor/backend/pkg/logger"
	"kmle-tutor/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := config.New()

	// The model credential is a startup requirement, not a runtime one.
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Set up logging
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format == "json"
	appLogger := logger.New(logConfig)

	// Initialize database
	db, err := setupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}

	// Initialize the chat model (single fixed identifier, no fallback)
	chatModel, err := ai.NewChatModel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create chat model: %v", err)
	}

	// Initialize services
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	userService := service.NewUserService(db, jwtService)
	transcriptService := service.NewTranscriptService(db)
	sessionManager := session.NewManager(transcriptService, appLogger)
	tutorService := ai.NewTutorService(chatModel)
	formatter := export.NewFormatter(
		cfg.Export.ProductName,
		cfg.Export.ProductTag,
		cfg.Export.FontPath,
		cfg.Export.FontFamily,
	)

	if !formatter.Available() {
		appLogger.Warn("export font missing; transcript export will be unavailable",
			"font_path", cfg.Export.FontPath)
	}

	// Initialize handlers
	authHandler := api.NewAuthHandler(userService, sessionManager, appLogger)
	chatHandler := api.NewChatHandler(sessionManager, tutorService, appLogger)
	exportHandler := api.NewExportHandler(sessionManager, formatter, appLogger)

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(errors.RecoveryWithLogger(appLogger))
	engine.Use(logger.Middleware(appLogger))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(errors.ErrorHandler(appLogger))

	limiterOpts := middleware.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	limiterOpts.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(appLogger, limiterOpts)

	apiGroup := engine.Group("/api")
	apiGroup.Use(rateLimiter.Middleware())
	{
		apiGroup.GET("/health", api.HealthHandler)

		apiGroup.POST("/auth/signup", authHandler.Signup)
		apiGroup.POST("/auth/login", authHandler.Login)

		authed := apiGroup.Group("")
		authed.Use(api.AuthMiddleware(jwtService))
		{
			authed.POST("/auth/logout", authHandler.Logout)
			authed.GET("/auth/me", authHandler.Me)

			authed.GET("/subjects", chatHandler.ListSubjects)
			authed.GET("/chat", chatHandler.GetChat)
			authed.POST("/chat/send", chatHandler.Send)
			authed.DELETE("/chat/message/:index", chatHandler.Delete)
			authed.POST("/chat/message/:index/include", chatHandler.SetIncluded)

			authed.GET("/export", exportHandler.Download)
			authed.GET("/export/status", exportHandler.Status)
		}
	}

	// Create the server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	// Start the server in a goroutine
	go func() {
		appLogger.Info("Server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Set up graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	appLogger.Info("Shutting down server...")
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Failed to shutdown server: %v", err)
	}

	appLogger.Info("Server shutdown complete")
}

// setupDatabase opens the sqlite database and runs migrations.
func setupDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.ChatRecord{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
