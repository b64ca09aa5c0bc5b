package config

import (
	"os"
	"strconv"
	"time"

	"tasksync/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	// Two independent listeners: request/response and server push.
	ModifyPort string
	NotifyPort string

	// DatabaseDriver is "postgres" (DATABASE_URL) or "sqlite" (SQLITE_PATH).
	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIRateLimit  int
	APIRateWindow time.Duration

	AllowedOrigin string

	LogLevel string
	LogJSON  bool

	// Hub tuning
	EventQueueSize       int
	BroadcastConcurrency int
	SendBufferSize       int

	Version string
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "postgres")

	dbURL := os.Getenv("DATABASE_URL")
	if driver == "postgres" && dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	sqlitePath := getEnv("SQLITE_PATH", "tasksync.sqlite3")
	if driver != "postgres" && driver != "sqlite" {
		logger.Fatal("unsupported DATABASE_DRIVER", "driver", driver)
	}

	return &Config{
		ModifyPort:           getEnv("MODIFY_PORT", "8080"),
		NotifyPort:           getEnv("NOTIFY_PORT", "8081"),
		DatabaseDriver:       driver,
		DatabaseURL:          dbURL,
		SQLitePath:           sqlitePath,
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		APIRateLimit:         getInt("API_RATE_LIMIT", 600),
		APIRateWindow:        time.Duration(getInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		AllowedOrigin:        os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogJSON:              os.Getenv("LOG_JSON") == "true",
		EventQueueSize:       getPositiveInt("EVENT_QUEUE_SIZE", 1024),
		BroadcastConcurrency: getPositiveInt("BROADCAST_CONCURRENCY", 32),
		SendBufferSize:       getPositiveInt("SEND_BUFFER_SIZE", 256),
		Version:              getEnv("APP_VERSION", "dev"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getPositiveInt(key string, def int) int {
	if n := getInt(key, def); n > 0 {
		return n
	}
	return def
}
