package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg := Load()
	assert.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "hotelguard", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, 300, cfg.Webhook.ReplayWindowSeconds)
	assert.Equal(t, int64(1048576), cfg.Webhook.MaxBodyBytes)

	assert.Equal(t, 0.15, cfg.CV.EvidenceThreshold)
	assert.Equal(t, 5, cfg.CV.EvidenceMax)
	assert.Equal(t, 0.7, cfg.CV.RiskThreshold)
	assert.Equal(t, 60, cfg.CV.LookbackMinutes)

	assert.Equal(t, 30, cfg.Analyzer.TimeoutSeconds)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "cv/frames", cfg.MQTT.Topic)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("WEBHOOK_REPLAY_WINDOW_SECONDS", "120")
	os.Setenv("CV_API_KEY", "test-key")
	os.Setenv("CV_EVIDENCE_MAX", "3")
	os.Setenv("MQTT_ENABLED", "true")
	os.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, 120, cfg.Webhook.ReplayWindowSeconds)
	assert.Equal(t, "test-key", cfg.CV.APIKey)
	assert.Equal(t, 3, cfg.CV.EvidenceMax)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	os.Clearenv()
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	os.Setenv("TEST_KEY", "env-value")
	assert.Equal(t, "env-value", getEnv("TEST_KEY", "default-value"))
	os.Unsetenv("TEST_KEY")
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		Database: "hotelguard", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5433 user=u password=p dbname=hotelguard sslmode=disable",
		c.GetDSN())
}
