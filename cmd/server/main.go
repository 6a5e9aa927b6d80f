package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightprice-service/internal/domain/repository"
	"flightprice-service/internal/infrastructure/config"
	"flightprice-service/internal/infrastructure/persistence"
	"flightprice-service/internal/infrastructure/router"
	"flightprice-service/internal/interface/api"
	"flightprice-service/internal/interface/provider"
	repo "flightprice-service/internal/interface/repository"
	"flightprice-service/internal/usecase"
	"flightprice-service/pkg/logger"
	"flightprice-service/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Flight Price Service", "version", cfg.AppVersion)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics("flightprice")
	location := cfg.Location()

	// Set up PostgreSQL connection
	log.Info("Connecting to PostgreSQL")
	gormDB, err := persistence.NewPostgres(cfg.PostgresURI, cfg.DBMaxOpenConn)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	if cfg.AutoMigrate {
		if err := repo.AutoMigrate(gormDB); err != nil {
			log.Fatal("Failed to migrate database", "error", err)
		}
	}

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, err := persistence.NewMongoClient(ctx, persistence.MongoConfig{
		URI:              cfg.MongoURI,
		Username:         cfg.MongoUser,
		Password:         cfg.MongoPassword,
		AppName:          cfg.MongoAppName,
		MaxPoolSize:      uint64(cfg.MongoMaxPoolSize),
		ConnectTimeout:   cfg.MongoConnectTimeout,
		OperationTimeout: cfg.MongoOperationTimeout,
	})
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	db := mongoClient.Database(cfg.MongoDB)

	// Redis is optional; without it every alert counts as new
	redisClient := persistence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	var dedupe repository.AlertDeduplicator
	if redisClient != nil {
		dedupe = repo.NewRedisAlertDeduplicator(redisClient)
	} else {
		log.Warn("Redis unavailable, alert deduplication disabled", "addr", cfg.RedisAddr)
	}

	// Set up repositories
	airlineRepository := repo.NewGormAirlineRepository(gormDB)
	airportRepository := repo.NewGormAirportRepository(gormDB)
	flightRepository := repo.NewGormFlightRepository(gormDB)
	routeRepository := repo.NewGormRouteConfigRepository(gormDB)
	sessionRepository := repo.NewGormScrapingSessionRepository(gormDB)
	rawOfferRepository := repo.NewMongoRawOfferRepository(db, location)
	alertPublisher := repo.NewRabbitAlertPublisher(cfg.RabbitMQURL, cfg.PriceDropQueue, log)

	directory := usecase.NewFlightDirectory(airlineRepository, airportRepository, log)
	if err := directory.Load(ctx); err != nil {
		log.Warn("Failed to load airline and airport directory", "error", err)
	}

	// Set up provider gateway
	httpClient := provider.NewHTTPClient(ctx, cfg.ScraperClientID, cfg.ScraperClientSecret, cfg.ScraperTokenURL, cfg.ProviderTimeout)
	gateway := provider.NewHTTPProviderGateway(provider.GatewayConfig{
		BaseURL:            cfg.ScraperBaseURL,
		Timeout:            cfg.ProviderTimeout,
		RatePerSecond:      cfg.ProviderRatePerSecond,
		Burst:              cfg.ProviderBurst,
		RetryAttempts:      cfg.ProviderRetryAttempts,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerCooldown:    cfg.BreakerCooldown,
	}, httpClient, provider.NewRegistry(cfg.Providers), log)

	// Set up use cases
	tracker := usecase.NewPriceHistoryTracker(flightRepository, cfg.SnapshotMinInterval, location, log, m)
	notifier := usecase.NewAlertNotifier(alertPublisher, dedupe, directory, cfg.PriceDropThreshold, cfg.AlertDedupeTTL, location, log, m)
	engine := usecase.NewAggregationEngine(flightRepository, gateway, tracker, usecase.AggregationConfig{
		MaxAge:             time.Duration(cfg.CacheMaxAgeMinutes) * time.Minute,
		ProviderTimeout:    cfg.ProviderTimeout,
		PriceDropThreshold: cfg.PriceDropThreshold,
		PersistTimeout:     cfg.PersistTimeout,
		Location:           location,
	}, log,
		usecase.WithRawOfferArchive(rawOfferRepository),
		usecase.WithAlertNotifier(notifier),
		usecase.WithDirectory(directory),
		usecase.WithMetrics(m),
	)
	analyticsService := usecase.NewAnalyticsService(flightRepository, tracker, cfg.PriceDropThreshold, log)

	var tracking api.Tracking
	if cfg.TrackingEnabled {
		routeTracker := usecase.NewRouteTracker(engine, routeRepository, sessionRepository, usecase.TrackingConfig{
			MaxConcurrentRoutes:  cfg.MaxConcurrentRoutes,
			DefaultDaysAhead:     cfg.DefaultDaysAhead,
			SessionRetentionDays: cfg.SessionRetentionDays,
			Location:             location,
		}, log, m)
		tracking = routeTracker

		// Start route tracker in a goroutine
		go routeTracker.Start(ctx, cfg.TrackingTickInterval)
	}

	// Set up HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/health", api.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	api.NewHandler(engine, router.NewDefaultRequestRouter(log), analyticsService, tracker, tracking, log).RegisterRoutes(e)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     e,
		ReadTimeout: cfg.ReadTimeout,
		// Streams outlive WriteTimeout, so only idle connections are bounded
		IdleTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines

	if err := alertPublisher.Close(); err != nil {
		log.Error("RabbitMQ close error", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Redis close error", "error", err)
		}
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("Flight Price Service stopped")
}
