package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulso-health/backend/internal/audit"
	"github.com/pulso-health/backend/internal/config"
	"github.com/pulso-health/backend/internal/gemini"
	"github.com/pulso-health/backend/internal/handler"
	"github.com/pulso-health/backend/internal/middleware"
	"github.com/pulso-health/backend/internal/pdf"
	"github.com/pulso-health/backend/internal/repository"
	"github.com/pulso-health/backend/internal/security"
	"github.com/pulso-health/backend/internal/service"
	"github.com/pulso-health/backend/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize Zap logger
	var logger *zap.Logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database connection pool with pgx
	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Test database connection
	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	// Initialize Gemini client
	geminiClient, err := gemini.NewClient(cfg.Gemini, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}

	// Chat transcripts are encrypted at rest when a key is configured
	var encryptor *security.Encryptor
	if key := cfg.ChatEncryptionKeyBytes(); key != nil {
		encryptor, err = security.NewEncryptor(key)
		if err != nil {
			logger.Fatal("Failed to initialize chat encryptor", zap.Error(err))
		}
		logger.Info("Chat at-rest encryption enabled")
	} else {
		logger.Warn("CHAT_ENCRYPTION_KEY not set, chat messages are stored in plaintext")
	}

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(pool, logger)
	sessionRepo := repository.NewSessionRepository(pool, logger)
	chatRepo := repository.NewChatRepository(pool, encryptor, logger)
	analysisRepo := repository.NewAnalysisRepository(pool, logger)

	// Initialize audit logger
	auditLogger := audit.NewLogger(pool, logger)

	// Initialize services
	classifier := service.NewIntentClassifier(sessionRepo, logger)
	chatService := service.NewChatService(classifier, profileRepo, chatRepo, geminiClient, auditLogger, logger)
	analysisService := service.NewAnalysisService(sessionRepo, profileRepo, analysisRepo, geminiClient, auditLogger, logger)

	// Report export is optional: it needs blob storage credentials
	var reportService *service.ReportService
	if cfg.ReportStorageConfigured() {
		blobClient, err := storage.NewBlobStorageClient(
			cfg.Azure.Storage.AccountName,
			cfg.Azure.Storage.AccountKey,
			cfg.Azure.Storage.ReportContainer,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize blob storage client", zap.Error(err))
		}
		pdfGenerator := pdf.NewPDFGenerator(logger)
		reportService = service.NewReportService(
			sessionRepo,
			profileRepo,
			analysisRepo,
			blobClient,
			pdfGenerator,
			auditLogger,
			logger,
		)
	} else {
		logger.Warn("Blob storage not configured, report export endpoint disabled")
	}

	// Initialize handlers
	chatHandler := handler.NewChatHandler(chatService, logger)
	analysisHandler := handler.NewAnalysisHandler(analysisService, logger)
	reportHandler := handler.NewReportHandler(reportService, logger)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Configure appropriately for production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add request ID middleware
	r.Use(middleware.RequestIDMiddleware())

	// Add request logging middleware
	r.Use(middleware.RequestLoggingMiddleware(logger))

	// Add error logging middleware
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	// Register routes
	r.GET("/health", healthCheck(pool, logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/chat/message", chatHandler.PostChatMessage)
		v1.GET("/chat/history", chatHandler.GetChatHistory)
		v1.POST("/sessions/:id/analysis", analysisHandler.PostSessionAnalysis)
		v1.POST("/sessions/:id/report", reportHandler.PostSessionReport)
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close database connections
	pool.Close()

	logger.Info("Server exited")
}

// healthCheck verifies database connectivity
func healthCheck(pool *pgxpool.Pool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if err := pool.Ping(ctx); err != nil {
			logger.Error("health check failed: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
			"service":  "pulso-backend",
			"version":  "1.0.0",
		})
	}
}
