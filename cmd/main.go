package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geomonitoring/internal/clients"
	"geomonitoring/internal/config"
	"geomonitoring/internal/fitting"
	"geomonitoring/internal/handlers"
	"geomonitoring/internal/ingest"
	"geomonitoring/internal/middleware"
	"geomonitoring/internal/repository"
	"geomonitoring/internal/service"
	"geomonitoring/internal/simulation"
	"geomonitoring/internal/threshold"
	"geomonitoring/internal/transport"
	"geomonitoring/internal/trend"
	"geomonitoring/internal/window"
	"geomonitoring/internal/worker"
	"geomonitoring/pkg/broker"
	"geomonitoring/pkg/database"
	"geomonitoring/pkg/logger"
	"geomonitoring/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// Загрузка .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Загрузка конфигурации
	cfg := config.Load()

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.App.ServiceName)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer zlog.Sync()

	zlog.Info("=== Geomonitoring Backend Starting ===")

	bounds, err := threshold.ParseMode(cfg.Ingest.ThresholdMode)
	if err != nil {
		zlog.Fatal("invalid threshold mode", zap.Error(err))
	}
	dedup, err := ingest.ParseDedupPolicy(cfg.Ingest.Dedup)
	if err != nil {
		zlog.Fatal("invalid dedup policy", zap.Error(err))
	}

	// Подключение к базе данных
	db, err := database.Connect(database.Config{
		Driver:   cfg.DB.Driver,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
		Debug:    cfg.App.Debug,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zlog.Fatal("failed to get sql handle", zap.Error(err))
	}
	defer sqlDB.Close()

	// Автомиграция моделей
	if err := database.Migrate(db, zlog); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}

	// Подключение к Redis
	redisClient, err := redis.Connect(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Инициализация репозиториев
	cacheRepo := repository.NewCacheRepository(redisClient)
	buildingRepo := repository.NewBuildingRepository(db)
	sensorRepo := repository.NewSensorRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	alertConfigRepo := repository.NewCachedAlertConfigRepository(
		repository.NewAlertConfigRepository(db), cacheRepo, cfg.Query.ConfigTTL, zlog)

	// Приём показаний
	var notifier ingest.Notifier
	if cfg.Alerts.WebhookURL != "" {
		notifier = clients.NewWebhookClient(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookTimeout, cfg.Alerts.WebhookRetries, zlog)
		zlog.Info("alert webhook enabled", zap.String("url", cfg.Alerts.WebhookURL))
	}
	pipeline := ingest.NewPipeline(sensorRepo, readingRepo, alertConfigRepo, zlog, ingest.Options{
		Dedup:    dedup,
		Bounds:   bounds,
		Notifier: notifier,
	})

	// MQTT
	brokerURL := cfg.MQTT.Broker
	var embedded *broker.Embedded
	if cfg.MQTT.Embedded {
		embedded, err = broker.Start(cfg.MQTT.EmbeddedAddress, zlog)
		if err != nil {
			zlog.Fatal("failed to start embedded broker", zap.Error(err))
		}
		brokerURL = embedded.URL()
	}

	mqttClient := transport.NewClient(transport.Config{
		Broker:         brokerURL,
		ClientID:       cfg.MQTT.ClientID + "-" + uuid.NewString()[:8],
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
	}, zlog)
	if err := mqttClient.Connect(); err != nil {
		zlog.Fatal("failed to connect to mqtt broker", zap.String("broker", brokerURL), zap.Error(err))
	}

	consumer := transport.NewConsumer(
		mqttClient,
		pipeline,
		transport.NewStreamDeadLetter(cacheRepo, cfg.Ingest.DeadLetterStream, cfg.Ingest.DeadLetterMaxLen),
		zlog,
		transport.ConsumerOptions{
			Topic:   cfg.MQTT.Topic,
			QoS:     byte(cfg.MQTT.QoS),
			Timeout: cfg.Ingest.Timeout,
			Counter: cacheRepo,
		},
	)
	if err := consumer.Start(); err != nil {
		zlog.Fatal("failed to start mqtt consumer", zap.Error(err))
	}

	// Аналитика
	fitCfg := fitting.DefaultConfig()
	fitCfg.AcceptR2 = cfg.Fitting.AcceptRSquared
	fitCfg.DegreePenalty = cfg.Fitting.DegreePenalty
	fitCfg.MaxDegree = cfg.Fitting.MaxDegree
	engine := fitting.NewEngine(fitCfg, zlog)
	resolver := window.NewResolver(readingRepo)

	classifier := trend.NewClassifier()
	classifier.Small = cfg.Trend.Small
	classifier.Large = cfg.Trend.Large

	generator := simulation.NewGenerator(time.Now().UnixNano(), cfg.Workers.AnomalyRate)

	// Инициализация сервисов
	monitoringService := service.NewMonitoringService(buildingRepo, sensorRepo, readingRepo, pipeline, cacheRepo,
		service.MonitoringConfig{
			MaxHours:         cfg.Query.MaxHours,
			DeadLetterStream: cfg.Ingest.DeadLetterStream,
		}, zlog)
	approximationService := service.NewApproximationService(sensorRepo, resolver, engine, cacheRepo,
		service.ApproximationConfig{
			DefaultHours: cfg.Query.DefaultHours,
			MaxHours:     cfg.Query.MaxHours,
			CacheTTL:     cfg.Query.CacheTTL,
			Classifier:   classifier,
		}, zlog)
	predictionService := service.NewPredictionService(sensorRepo, readingRepo, alertConfigRepo, bounds, nil, zlog)
	exportService := service.NewExportService(sensorRepo, readingRepo, alertConfigRepo, cfg.Export.OutputDir, cfg.Query.MaxHours, zlog)
	seedService := service.NewSeedService(buildingRepo, sensorRepo, readingRepo, alertConfigRepo, generator, bounds, zlog)

	// Инициализация воркеров (фоновые задачи)
	scheduler := worker.NewScheduler(zlog)

	if cfg.Workers.RetentionEnabled {
		scheduler.AddWorker(worker.NewRetentionWorker(readingRepo, cfg.Workers.RetentionPeriod, cfg.Workers.RetentionInterval, zlog))
		zlog.Info("retention worker enabled",
			zap.Duration("period", cfg.Workers.RetentionPeriod),
			zap.Duration("interval", cfg.Workers.RetentionInterval))
	}

	if cfg.Workers.SimulatorEnabled {
		scheduler.AddWorker(worker.NewSimulatorWorker(sensorRepo, alertConfigRepo, mqttClient, generator,
			cfg.Workers.SimulatorInterval, byte(cfg.MQTT.QoS), zlog))
		zlog.Info("simulator worker enabled", zap.Duration("interval", cfg.Workers.SimulatorInterval))
	}

	scheduler.Start()

	// Инициализация Gin
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(zlog))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Rate limiting (только для продакшена)
	if !cfg.App.Debug {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(middleware.RateLimitMiddleware(limiter, zlog))
		r.Use(middleware.IPRateLimitMiddleware(middleware.NewIPRateLimiter(
			rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)))
		zlog.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
	}

	checks := map[string]handlers.HealthCheck{
		"database": sqlDB.PingContext,
		"redis":    cacheRepo.Ping,
		"mqtt": func(context.Context) error {
			if !mqttClient.IsConnected() {
				return errors.New("mqtt disconnected")
			}
			return nil
		},
	}
	redisStats := func(ctx context.Context) (map[string]string, error) {
		return redis.GetStats(ctx, redisClient)
	}

	api := r.Group("/api/v1/geo")
	handlers.RegisterRoutes(api, handlers.Handlers{
		Sensors:   handlers.NewSensorHandler(monitoringService, zlog),
		Analytics: handlers.NewAnalyticsHandler(approximationService, predictionService, zlog),
		Export:    handlers.NewExportHandler(exportService, zlog),
		System:    handlers.NewSystemHandler(monitoringService, seedService, checks, redisStats, zlog),
	}, cfg.App.Debug)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("api", "/api/v1/geo"))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	zlog.Info("shutting down server")

	scheduler.Stop()
	if err := consumer.Stop(); err != nil {
		zlog.Warn("failed to unsubscribe consumer", zap.Error(err))
	}
	mqttClient.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	if embedded != nil {
		if err := embedded.Close(); err != nil {
			zlog.Warn("failed to close embedded broker", zap.Error(err))
		}
	}

	zlog.Info("server exited properly")
}
