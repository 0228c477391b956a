package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config hotelguard-ingest (HTTP API) configuration.
// Everything is loaded from environment variables with documented fallbacks.
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Webhook  WebhookConfig
	CV       CVConfig
	Analyzer AnalyzerConfig
	MQTT     MQTTConfig
}

// DatabaseConfig Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds a lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// WebhookConfig signed-webhook intake settings.
type WebhookConfig struct {
	ReplayWindowSeconds int   // max clock skew between signed timestamp and receipt
	MaxBodyBytes        int64 // enforced before signature verification
}

// CVConfig CV frame-batch intake settings.
type CVConfig struct {
	APIKey            string  // shared secret for x-cv-api-key
	EvidenceThreshold float64 // suspicion score at/above which a frame is evidence-eligible
	EvidenceMax       int     // evidence rows stored per ingestion call
	RiskThreshold     float64 // /cv/room-risk high_risk cutoff
	LookbackMinutes   int     // rolling entry-counter window
	RecomputeURL      string  // external risk aggregator entry point ("" disables)
}

// AnalyzerConfig external vision-analysis service settings.
type AnalyzerConfig struct {
	URL            string
	APIKey         string
	TimeoutSeconds int // per-frame bound
}

// MQTTConfig optional camera frame-batch intake over MQTT (default disabled).
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "hotelguard")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Webhook.ReplayWindowSeconds = parseInt(getEnv("WEBHOOK_REPLAY_WINDOW_SECONDS", "300"), 300)
	cfg.Webhook.MaxBodyBytes = int64(parseInt(getEnv("WEBHOOK_MAX_BODY_BYTES", "1048576"), 1048576))

	cfg.CV.APIKey = getEnv("CV_API_KEY", "")
	cfg.CV.EvidenceThreshold = parseFloat(getEnv("CV_EVIDENCE_THRESHOLD", "0.15"), 0.15)
	cfg.CV.EvidenceMax = parseInt(getEnv("CV_EVIDENCE_MAX", "5"), 5)
	cfg.CV.RiskThreshold = parseFloat(getEnv("CV_RISK_THRESHOLD", "0.7"), 0.7)
	cfg.CV.LookbackMinutes = parseInt(getEnv("CV_LOOKBACK_MINUTES", "60"), 60)
	cfg.CV.RecomputeURL = getEnv("RISK_RECOMPUTE_URL", "")

	cfg.Analyzer.URL = getEnv("ANALYZER_URL", "")
	cfg.Analyzer.APIKey = getEnv("ANALYZER_API_KEY", "")
	cfg.Analyzer.TimeoutSeconds = parseInt(getEnv("ANALYZER_TIMEOUT_SECONDS", "30"), 30)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "hotelguard-ingest")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "cv/frames")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
