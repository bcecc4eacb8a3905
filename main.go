package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airtime-live/stagedoor/internal/handler"
	"github.com/airtime-live/stagedoor/internal/metrics"
	"github.com/airtime-live/stagedoor/internal/middleware"
	"github.com/airtime-live/stagedoor/internal/registry"
	"github.com/airtime-live/stagedoor/internal/repository"
	"github.com/airtime-live/stagedoor/internal/service"
	"github.com/airtime-live/stagedoor/internal/worker"
	"github.com/airtime-live/stagedoor/pkg/config"
	"github.com/airtime-live/stagedoor/pkg/database"
	"github.com/airtime-live/stagedoor/pkg/logger"
	pkgredis "github.com/airtime-live/stagedoor/pkg/redis"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting stagedoor...")

	ctx := context.Background()

	// Initialize telemetry
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:       cfg.OTel.Enabled,
		ServiceName:   cfg.OTel.ServiceName,
		Environment:   cfg.App.Environment,
		CollectorAddr: cfg.OTel.CollectorAddr,
	}); err != nil {
		appLog.Fatal(fmt.Sprintf("Telemetry init failed: %v", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	if err := metrics.Init(); err != nil {
		appLog.Fatal(fmt.Sprintf("Metrics init failed: %v", err))
	}

	// Initialize database connection
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// Initialize Redis connection
	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	// Initialize Kafka event publisher
	var eventPublisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:      cfg.Kafka.Brokers,
			SessionTopic: cfg.Kafka.SessionTopic,
			LedgerTopic:  cfg.Kafka.LedgerTopic,
			ServiceName:  cfg.App.Name,
			ClientID:     cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		} else {
			eventPublisher = kafkaPublisher
			defer kafkaPublisher.Close()
			appLog.Info("Kafka event publisher connected")
		}
	}

	// Initialize repositories
	userRepo := repository.NewPostgresUserRepository(db.Pool())
	sessionRepo := repository.NewPostgresSessionRepository(db.Pool())
	txRepo := repository.NewPostgresTransactionRepository(db.Pool())

	// Initialize registry and services
	agentRegistry := registry.New(sessionRepo, &registry.Config{
		WaitPerPosition: cfg.Session.WaitPerPosition,
	})

	notifier := service.NewRedisNotifier(redisClient)

	pointsService := service.NewPointsService(userRepo, txRepo, notifier, eventPublisher, &service.PointsServiceConfig{
		MaxPoints:     cfg.Points.MaxPoints,
		RegenAmount:   cfg.Points.RegenAmount,
		RegenInterval: cfg.Points.RegenInterval,
	})

	sessionService := service.NewSessionService(sessionRepo, userRepo, pointsService, agentRegistry, notifier, eventPublisher, &service.SessionServiceConfig{
		DefaultDuration: cfg.Session.Duration,
		WarningWindow:   cfg.Session.WarningWindow,
		WaitPerPosition: cfg.Session.WaitPerPosition,
		PointsCost:      cfg.Session.PointsCost,
		FreeAgentID:     cfg.Session.FreeAgentID,
	})
	defer sessionService.Shutdown()

	authService := service.NewAuthService(userRepo, &service.AuthServiceConfig{
		JWTSecret:          cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.AccessTokenTTL,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenTTL,
		StartingPoints:     cfg.Points.StartingPoints,
		RegenInterval:      cfg.Points.RegenInterval,
	})

	// Close sessions left active by a previous run
	if recovered, err := sessionService.RecoverOrphanedSessions(ctx); err != nil {
		appLog.Error(fmt.Sprintf("Startup recovery failed: %v", err))
	} else if recovered > 0 {
		appLog.Info(fmt.Sprintf("Startup recovery closed %d orphaned sessions", recovered))
	}

	// Start the regeneration worker
	regenWorker := worker.NewRegenWorker(userRepo, pointsService, &worker.RegenWorkerConfig{
		SweepInterval: cfg.Points.SweepInterval,
		BatchSize:     500,
	})
	if err := regenWorker.Start(); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start regen worker: %v", err))
	}
	defer regenWorker.Stop()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	pointsHandler := handler.NewPointsHandler(pointsService)

	// Setup Gin
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware(cfg.App.Name))

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", middleware.Auth(authService), authHandler.Me)
		}

		sessions := v1.Group("/sessions")
		sessions.Use(middleware.Auth(authService))
		{
			sessions.POST("", sessionHandler.Book)
			sessions.GET("/current", sessionHandler.GetCurrent)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.POST("/:id/end", sessionHandler.End)
			sessions.DELETE("/:id", sessionHandler.Cancel)
		}

		agents := v1.Group("/agents")
		{
			agents.GET("/:id/availability", sessionHandler.GetAvailability)
		}

		points := v1.Group("/points")
		points.Use(middleware.Auth(authService))
		{
			points.GET("/balance", pointsHandler.GetBalance)
			points.POST("/spend", pointsHandler.Spend)
			points.GET("/history", pointsHandler.GetHistory)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("stagedoor listening on %s", cfg.Server.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
