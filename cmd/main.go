package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/config"
	"health-docs-platform/internal/llm"
	"health-docs-platform/internal/logger"
	"health-docs-platform/internal/ocr"
	"health-docs-platform/internal/searchindex"
	"health-docs-platform/internal/store"
	"health-docs-platform/internal/telemetry"
	"health-docs-platform/middleware"
	"health-docs-platform/routes"
	"health-docs-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg, "health-docs-platform")
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Redis backs rate limiting and the expansion cache; both degrade
	// gracefully, so a connection failure is not fatal.
	var rdb *redis.Client
	if client, err := config.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable; rate limiting and query caching disabled", "error", err)
	} else {
		rdb = client
		defer rdb.Close()
	}

	// Blob storage and download URL signing
	blobs, err := blob.NewFSStore(cfg.BlobDir, cfg.BlobContainer, cfg.PublicBaseURL)
	if err != nil {
		log.Fatal("Failed to initialize blob storage:", err)
	}
	signer := blob.NewSigner(cfg.JWTSecret, time.Duration(cfg.SignedURLTTLMins)*time.Minute)

	// Search index backend
	var index searchindex.Index
	switch cfg.SearchBackend {
	case "memory":
		mem, err := searchindex.NewMemory()
		if err != nil {
			log.Fatal("Failed to initialize in-memory search index:", err)
		}
		defer mem.Close()
		index = mem
	default:
		es, err := searchindex.NewElastic([]string{cfg.ElasticsearchURL}, cfg.SearchIndexName)
		if err != nil {
			log.Fatal("Failed to initialize Elasticsearch index:", err)
		}
		index = es
	}

	// OCR engines: remote services when configured, otherwise the native
	// PDF engine handles documents locally.
	ocrTimeout := time.Duration(cfg.OCRTimeout) * time.Second
	var documentEngine ocr.Engine = ocr.NewNativeEngine()
	if cfg.OCRDocumentURL != "" {
		documentEngine = ocr.NewDocumentEngine(cfg.OCRDocumentURL, cfg.OCRDocumentKey, ocrTimeout)
	}
	var imageEngine ocr.Engine
	if cfg.OCRImageURL != "" {
		imageEngine = ocr.NewImageEngine(cfg.OCRImageURL, cfg.OCRImageKey, ocrTimeout)
	}
	extractor := ocr.NewExtractor(documentEngine, imageEngine, cfg.OCRDocumentMaxBytes, cfg.OCRImageMaxBytes)

	// Language model client
	gemini, err := llm.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTemperature)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer gemini.Close()

	// Repositories
	documents := store.NewDocuments(db)
	activities := store.NewActivities(db)
	users := store.NewUsers(db)

	// Services
	ingestion := services.NewIngestionService(blobs, signer, index, extractor, documents, cfg.AllowedTypes, cfg.OCRInlineLimitBytes)
	query := services.NewQueryService(gemini, index, signer, activities, rdb,
		time.Duration(cfg.QueryCacheTTLSecs)*time.Second)
	deletion := services.NewDeletionService(documents, blobs, index)
	ingestion.SetMetrics(metrics)
	query.SetMetrics(metrics)
	deletion.SetMetrics(metrics)
	activity := services.NewActivityService(activities)
	export := services.NewExportService(activities)
	audit := services.NewAuditService(documents, blobs)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-User-Id"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	// Setup routes
	routes.SetupDocumentRoutes(router, cfg, ingestion, deletion, documents, authMiddleware)
	routes.SetupSearchRoutes(router, query, authMiddleware)
	routes.SetupSearchActivityRoutes(router, activity, authMiddleware)
	routes.SetupUserRoutes(router, users, authMiddleware)
	routes.SetupFileRoutes(router, blobs, signer)
	routes.SetupAdminRoutes(router, blobs, audit, deletion, export, documents, activities, authMiddleware)

	// Background consistency audit
	var auditScheduler *services.AuditScheduler
	if cfg.AuditEnabled {
		auditScheduler, err = services.NewAuditScheduler(audit, time.Duration(cfg.AuditIntervalMins)*time.Minute)
		if err != nil {
			log.Fatal("Failed to schedule consistency audit:", err)
		}
		auditScheduler.Start()
		defer auditScheduler.Stop()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
