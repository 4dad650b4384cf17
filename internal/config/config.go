package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Port        string
	Database    DatabaseConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Pushover    PushoverConfig
	Resync      ResyncConfig
	Log         LogConfig
}

type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN builds the postgres connection string. Ignored for sqlite.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type JWTConfig struct {
	Secret    string
	ExpiresIn string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type PushoverConfig struct {
	Token      string
	UserKey    string
	RatePerMin int
}

// Enabled reports whether push delivery is configured at all.
func (p PushoverConfig) Enabled() bool {
	return p.Token != "" && p.UserKey != ""
}

type ResyncConfig struct {
	Spec string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "3001"),
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "data/hidoc.db"),
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "hidoc"),
			User:     getEnv("DB_USER", "hidoc_user"),
			Password: getEnv("DB_PASSWORD", "hidoc_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-this-in-production"),
			ExpiresIn: getEnv("JWT_EXPIRES_IN", "7d"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				getEnv("FRONTEND_URL", "http://localhost:3000"),
				"http://localhost:3000",
			},
		},
		Pushover: PushoverConfig{
			Token:      getEnv("PUSHOVER_TOKEN", ""),
			UserKey:    getEnv("PUSHOVER_USER_KEY", ""),
			RatePerMin: getEnvInt("PUSHOVER_RATE_PER_MIN", 30),
		},
		Resync: ResyncConfig{
			// Hourly sweep that re-arms timers lost to drift or restarts.
			Spec: getEnv("RESYNC_SPEC", "@hourly"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnv("LOG_PRETTY", "") == "true",
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
