package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	MQTT struct {
		BrokerURL string
		Topic     string
		ClientID  string
	}
	API struct {
		Port     string
		BasePath string
	}
	Worker struct {
		PoolSize       int
		MaxAttempts    int
		BaseDelay      time.Duration
		FailureLogSize int
	}
	Alerting struct {
		DedupWindow     time.Duration
		OfflineStale    time.Duration
		OfflineCooldown time.Duration
		NotifyTimeout   time.Duration
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	Telegram struct {
		BotToken      string
		RatePerSecond int
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.DB.DSN = os.Getenv("DB_DSN")

	cfg.MQTT.BrokerURL = os.Getenv("MQTT_BROKER_URL")
	cfg.MQTT.Topic = os.Getenv("MQTT_TOPIC")
	cfg.MQTT.ClientID = os.Getenv("MQTT_CLIENT_ID")

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Worker.PoolSize = envInt("WORKER_POOL_SIZE", 5)
	cfg.Worker.MaxAttempts = envInt("RETRY_MAX_ATTEMPTS", 3)
	cfg.Worker.BaseDelay = envMillis("RETRY_BASE_DELAY_MS", 500*time.Millisecond)
	cfg.Worker.FailureLogSize = envInt("FAILURE_LOG_SIZE", 100)

	cfg.Alerting.DedupWindow = envMinutes("ALERT_DEDUP_WINDOW_MIN", 60*time.Minute)
	cfg.Alerting.OfflineStale = envMinutes("OFFLINE_STALE_MIN", 30*time.Minute)
	cfg.Alerting.OfflineCooldown = envMinutes("OFFLINE_COOLDOWN_MIN", 2*time.Hour)
	cfg.Alerting.NotifyTimeout = envMillis("NOTIFY_TIMEOUT_MS", 5*time.Second)

	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	cfg.Email.SMTPPort = envInt("EMAIL_SMTP_PORT", 0)
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.RatePerSecond = envInt("TELEGRAM_RATE_PER_SECOND", 20)

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "sensor_readings"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "measurement-workers"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "stations/+/readings"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "ingestion-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envMillis(key string, fallback time.Duration) time.Duration {
	if ms, err := strconv.Atoi(os.Getenv(key)); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func envMinutes(key string, fallback time.Duration) time.Duration {
	if m, err := strconv.Atoi(os.Getenv(key)); err == nil && m > 0 {
		return time.Duration(m) * time.Minute
	}
	return fallback
}
