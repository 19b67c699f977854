package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/clients"
	"github.com/niaga-platform/service-seller-analytics/internal/config"
	"github.com/niaga-platform/service-seller-analytics/internal/database"
	"github.com/niaga-platform/service-seller-analytics/internal/events"
	"github.com/niaga-platform/service-seller-analytics/internal/handlers"
	"github.com/niaga-platform/service-seller-analytics/internal/logger"
	"github.com/niaga-platform/service-seller-analytics/internal/middleware"
	"github.com/niaga-platform/service-seller-analytics/internal/monitoring"
	"github.com/niaga-platform/service-seller-analytics/internal/providers"
	"github.com/niaga-platform/service-seller-analytics/internal/providers/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/repository"
	"github.com/niaga-platform/service-seller-analytics/internal/routes"
	"github.com/niaga-platform/service-seller-analytics/internal/services"
)

const serviceName = "seller-analytics-service"

func main() {
	// Load .env file in development
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	zlog, err := logger.New(cfg.App.Env, cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize Sentry for error tracking
	sentryMonitor, err := monitoring.NewSentryMonitor(cfg.Sentry, serviceName, zlog)
	if err != nil {
		zlog.Warn("Failed to initialize Sentry", zap.Error(err))
	}
	defer sentryMonitor.Flush(2 * time.Second)

	// Connect to database
	db, err := database.Connect(cfg.Database.DSN(), zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := database.Migrate(db); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis (optional - reports are computed on every request without it)
	redisClient := connectRedis(cfg.Redis, zlog)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Connect to NATS (optional - syncs run inline without it)
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			zlog.Warn("Failed to connect to NATS, sync requests run inline", zap.Error(err))
		} else {
			zlog.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
			defer natsConn.Drain()
		}
	}

	// Initialize repositories
	credentialRepo := repository.NewCredentialRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	// Initialize marketplace providers
	providerFactory := providers.NewProviderFactory(providers.ClientOptions{
		StatisticsBaseURL: cfg.Wildberries.StatisticsURL,
		AdvertBaseURL:     cfg.Wildberries.AdvertURL,
		RequestTimeout:    cfg.Wildberries.RequestTimeout,
		CacheTTL:          cfg.Wildberries.CacheTTL,
		MaxRetries:        cfg.Wildberries.MaxRetries,
		Logger:            zlog,
	})
	wildberries.Register(providerFactory)

	// Initialize credential service
	credentialService, err := services.NewCredentialService(credentialRepo, providerFactory, cfg.Security.EncryptionKey, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize credential service", zap.Error(err))
	}

	providerService := services.NewProviderFactoryService(credentialService, providerFactory, zlog)
	cacheService := services.NewAnalyticsCacheService(redisClient, cfg.Redis.TTL, zlog)

	// Key changes drop the cached provider and the cached reports of the seller
	credentialService.OnChange(providerService.Invalidate)
	credentialService.OnChange(cacheService.InvalidateSeller)

	// Initialize catalog client (optional - supplies cost of goods)
	var costs services.CostSource
	var catalog services.ProductLookup
	if cfg.Services.CatalogURL != "" {
		catalogClient := clients.NewCatalogClient(cfg.Services.CatalogURL, zlog)
		costs, catalog = catalogClient, catalogClient
	} else {
		zlog.Info("Catalog URL not set, weekly reports use configured unit costs")
	}

	reportService := services.NewReportService(providerService, costs, catalog, cacheService, cfg.Analytics, zlog)
	snapshotService := services.NewSnapshotService(snapshotRepo, zlog)

	eventPublisher := events.NewPublisher(natsConn, zlog)
	syncHandler := services.NewReportSyncHandler(
		reportService,
		snapshotService,
		credentialService,
		eventPublisher,
		cfg.Sync.Timeout,
		zlog,
	)

	// Start NATS subscriber if connected
	var eventSubscriber *events.Subscriber
	if natsConn != nil {
		eventSubscriber = events.NewSubscriber(natsConn, syncHandler, zlog)
		if err := eventSubscriber.Start(); err != nil {
			zlog.Warn("Failed to start event subscriber", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background sync scheduler
	var scheduler *services.SyncScheduler
	if cfg.Sync.Enabled {
		scheduler = services.NewSyncScheduler(credentialService, syncHandler, reportService, services.SyncSchedulerConfig{
			Interval:      cfg.Sync.Interval,
			CheckInterval: cfg.Sync.CheckInterval,
			ExpiryWarning: cfg.Sync.ExpiryWarning,
		}, zlog)
		if err := scheduler.Start(ctx); err != nil {
			zlog.Warn("Failed to start sync scheduler", zap.Error(err))
		}
	}

	// Initialize handlers
	credentialHandler := handlers.NewCredentialHandler(credentialService, zlog)
	analyticsHandler := handlers.NewAnalyticsHandler(reportService, cfg.HTTP.MaxUploadBytes, zlog)
	snapshotHandler := handlers.NewSyncHandler(reportService, syncHandler, snapshotService, zlog)

	// Set Gin mode
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(zlog))
	router.Use(sentryMonitor.GinMiddleware())
	router.Use(middleware.Logger(zlog))
	router.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	// Rate limiting per client IP
	rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RequestsPerMinute, 0)
	go rateLimiter.Cleanup(ctx, 5*time.Minute)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "seller-analytics",
			"time":      time.Now().UTC(),
			"cache":     cacheService.Enabled(),
			"messaging": eventPublisher.Connected(),
		})
	})

	// Setup routes using the routes package
	routes.SetupRoutes(router, &routes.RouteConfig{
		CredentialHandler: credentialHandler,
		AnalyticsHandler:  analyticsHandler,
		SyncHandler:       snapshotHandler,
		APIMiddleware:     []gin.HandlerFunc{rateLimiter.Middleware()},
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("Seller analytics service starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server...")
	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	if eventSubscriber != nil {
		eventSubscriber.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exited")
}

// connectRedis returns a client when Redis is configured and reachable.
func connectRedis(cfg config.RedisConfig, zlog *zap.Logger) *redis.Client {
	addr := cfg.Addr()
	if addr == "" {
		zlog.Info("Redis not configured, report cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zlog.Warn("Failed to connect to Redis, report cache disabled", zap.String("addr", addr), zap.Error(err))
		_ = client.Close()
		return nil
	}

	zlog.Info("Connected to Redis", zap.String("addr", addr))
	return client
}
