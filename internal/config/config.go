package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GRPCPort           string
	HTTPPort           string
	LandmarkServiceURL string
	FrameWidth         int

	LogLevel    string
	Environment string

	DBName     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	MQTTBroker string
	MQTTTopic  string

	// DashboardPasswordHash is a bcrypt hash; empty leaves the API open.
	DashboardPasswordHash string
}

func (p *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBPassword, p.DBName, p.DBSSLMode)
}

// DSNForLog returns the DSN with the password masked.
func (p *Config) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBName, p.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// DatabaseEnabled reports whether session persistence is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadConfig() *Config {
	// A missing .env file is fine: the process environment is used instead.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment variables")
	}

	cfg := &Config{
		GRPCPort:              getEnv("GRPC_PORT", "50051"),
		HTTPPort:              getEnv("HTTP_PORT", "8081"),
		LandmarkServiceURL:    getEnv("LANDMARK_SERVICE_URL", "localhost:9000"),
		FrameWidth:            getEnvInt("FRAME_WIDTH", 450),
		LogLevel:              getEnv("LOG_LEVEL", "INFO"),
		Environment:           getEnv("ENVIRONMENT", "production"),
		DBHost:                getEnv("DB_HOST", ""),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", ""),
		DBName:                getEnv("DB_NAME", "eye_monitor"),
		DBSSLMode:             getEnv("DB_SSLMODE", "disable"),
		MQTTBroker:            getEnv("MQTT_BROKER", ""),
		MQTTTopic:             getEnv("MQTT_TOPIC", "drowsiness/alarms"),
		DashboardPasswordHash: getEnv("DASHBOARD_PASSWORD_HASH", ""),
	}

	if cfg.DatabaseEnabled() && cfg.DBPassword == "" {
		slog.Warn("DB_PASSWORD is not set")
	}
	if cfg.FrameWidth <= 0 {
		slog.Warn("FRAME_WIDTH must be positive, using default", "value", cfg.FrameWidth)
		cfg.FrameWidth = 450
	}

	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}
