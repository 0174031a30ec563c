package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)


type Config struct {
	Env  string
	Port int

	// WorkerPort serves the queue worker's probe endpoints.
	WorkerPort int

	DBURL string

	JWTSecret           string
	JWTAccessTTLMinutes int

	// Gemini upstream. An empty API key is allowed: the ask endpoint
	// degrades to 503 instead of the server refusing to boot.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string

	OTELEndpoint string

	// optional seeded login for local development
	DevUserEmail    string
	DevUserPassword string
	DevUserName     string
}

func Load() Config {
	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080)
	dbURL := buildDBURL()

	return Config{
		Env:        env,
		Port:       port,
		WorkerPort: getEnvInt("WORKER_PORT", 8081),
		DBURL:      dbURL,

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		OTELEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		DevUserEmail:    os.Getenv("DEV_USER_EMAIL"),
		DevUserPassword: os.Getenv("DEV_USER_PASSWORD"),
		DevUserName:     getEnv("DEV_USER_NAME", "Dev User"),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "askhub")
	pass := getEnv("DB_PASSWORD", "askhub")
	name := getEnv("DB_NAME", "askhub")
	ssl := getEnv("DB_SSLMODE", "disable")


	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
		}

		return num
	}
	return fallback
}
