package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sosodev/duration"
)

type Config struct {
	App struct {
		Port        string
		Debug       bool
		FrontendURL string
		ServiceName string
	}
	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	MQTT struct {
		Broker          string
		ClientID        string
		Username        string
		Password        string
		Topic           string
		QoS             int
		ConnectTimeout  time.Duration
		Embedded        bool
		EmbeddedAddress string
	}
	Ingest struct {
		Dedup            string
		ThresholdMode    string
		Timeout          time.Duration
		DeadLetterStream string
		DeadLetterMaxLen int64
	}
	Query struct {
		DefaultHours int
		MaxHours     int
		CacheTTL     time.Duration
		ConfigTTL    time.Duration
	}
	Fitting struct {
		AcceptRSquared float64
		DegreePenalty  float64
		MaxDegree      int
	}
	Trend struct {
		Small float64
		Large float64
	}
	Alerts struct {
		WebhookURL     string
		WebhookTimeout time.Duration
		WebhookRetries int
	}
	Workers struct {
		RetentionEnabled  bool
		RetentionPeriod   time.Duration
		RetentionInterval time.Duration
		SimulatorEnabled  bool
		SimulatorInterval time.Duration
		AnomalyRate       float64
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
	Log struct {
		Level  string
		Format string
	}
	Export struct {
		OutputDir string
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	cfg.App.ServiceName = getEnv("SERVICE_NAME", "geomonitoring")

	// DB
	cfg.DB.Driver = getEnv("DB_DRIVER", "postgres")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", defaultDBPort(cfg.DB.Driver))
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "geomonitoring")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// MQTT
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "geomonitoring")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "geo/sensors/+/+/data")
	cfg.MQTT.QoS = clampQoS(getEnvAsInt("MQTT_QOS", 1))
	cfg.MQTT.ConnectTimeout = getEnvAsDuration("MQTT_CONNECT_TIMEOUT", 10*time.Second)
	cfg.MQTT.Embedded = getEnvAsBool("MQTT_EMBEDDED", false)
	cfg.MQTT.EmbeddedAddress = getEnv("MQTT_EMBEDDED_ADDRESS", ":1883")

	// Ingest
	cfg.Ingest.Dedup = getEnv("INGEST_DEDUP", "none")
	cfg.Ingest.ThresholdMode = getEnv("THRESHOLD_MODE", "strict")
	cfg.Ingest.Timeout = getEnvAsDuration("INGEST_TIMEOUT", 5*time.Second)
	cfg.Ingest.DeadLetterStream = getEnv("DEAD_LETTER_STREAM", "geo:ingest:deadletter")
	cfg.Ingest.DeadLetterMaxLen = int64(getEnvAsInt("DEAD_LETTER_MAX_LEN", 10000))

	// Query
	cfg.Query.DefaultHours = getEnvAsInt("QUERY_DEFAULT_HOURS", 24)
	cfg.Query.MaxHours = getEnvAsInt("QUERY_MAX_HOURS", 672)
	cfg.Query.CacheTTL = getEnvAsDuration("APPROXIMATION_CACHE_TTL", 30*time.Second)
	cfg.Query.ConfigTTL = getEnvAsDuration("ALERT_CONFIG_CACHE_TTL", 5*time.Minute)

	// Fitting
	cfg.Fitting.AcceptRSquared = getEnvAsFloat("FIT_ACCEPT_R2", 0.3)
	cfg.Fitting.DegreePenalty = getEnvAsFloat("FIT_DEGREE_PENALTY", 0.02)
	cfg.Fitting.MaxDegree = getEnvAsInt("FIT_MAX_DEGREE", 5)

	// Trend
	cfg.Trend.Small = getEnvAsFloat("TREND_SMALL_PERCENT", 2)
	cfg.Trend.Large = getEnvAsFloat("TREND_LARGE_PERCENT", 10)

	// Alerts
	cfg.Alerts.WebhookURL = getEnv("ALERT_WEBHOOK_URL", "")
	cfg.Alerts.WebhookTimeout = getEnvAsDuration("ALERT_WEBHOOK_TIMEOUT", 5*time.Second)
	cfg.Alerts.WebhookRetries = getEnvAsInt("ALERT_WEBHOOK_RETRIES", 2)

	// Workers
	cfg.Workers.RetentionEnabled = getEnvAsBool("RETENTION_ENABLED", false)
	cfg.Workers.RetentionPeriod = getEnvAsISODuration("RETENTION_PERIOD", 90*24*time.Hour)
	cfg.Workers.RetentionInterval = getEnvAsDuration("WORKER_RETENTION_INTERVAL", time.Hour)
	cfg.Workers.SimulatorEnabled = getEnvAsBool("SIMULATOR_ENABLED", false)
	cfg.Workers.SimulatorInterval = getEnvAsDuration("WORKER_SIMULATOR_INTERVAL", 60*time.Second)
	cfg.Workers.AnomalyRate = getEnvAsFloat("SIMULATOR_ANOMALY_RATE", 0.05)

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	// Log
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// Export
	cfg.Export.OutputDir = getEnv("EXPORT_OUTPUT_DIR", "./data/exports")

	return cfg
}

func defaultDBPort(driver string) string {
	if driver == "mysql" {
		return "3306"
	}
	return "5432"
}

func clampQoS(q int) int {
	if q < 0 {
		return 0
	}
	if q > 2 {
		return 2
	}
	return q
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}

// getEnvAsISODuration accepts ISO-8601 durations such as P90D as well as Go
// durations such as 720h.
func getEnvAsISODuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := duration.Parse(value); err == nil {
		return d.ToTimeDuration()
	}
	if dur, err := time.ParseDuration(value); err == nil {
		return dur
	}
	return defaultValue
}
