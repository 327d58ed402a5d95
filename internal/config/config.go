package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	DBPath          string
	RedisAddr       string
	JWTIssuer       string
	JWTSigningKey   string
	TokenTTL        time.Duration
	BcryptCost      int
	AdminEmail      string
	AdminPassword   string
	QueueBackend    string
	RateLimitPerMin int
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	if getEnv("APP_ENV", "dev") == "dev" {
		_ = godotenv.Load()
	}
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		DBPath:          getEnv("DB_PATH", "attendance.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		JWTIssuer:       getEnv("JWT_ISSUER", "qrattend"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		TokenTTL:        durationEnv("TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:      intEnv("BCRYPT_COST", 12),
		AdminEmail:      getEnv("ADMIN_EMAIL", "admin@attendance.app"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "admin123"),
		QueueBackend:    getEnv("QUEUE_BACKEND", "memory"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
