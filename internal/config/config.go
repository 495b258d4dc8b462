package config

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr  string
	JWTSecret string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// "redis", "db" or "memory" — where the session collection is persisted
	SessionBackend string

	// coach (primary, streaming) transport
	CoachBaseURL string
	CoachAppName string
	CoachAPIKey  string

	// backup (non-streaming fallback) transport
	BackupBaseURL string

	Locale string

	RabbitURL   string
	RabbitQueue string
}

func Load() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	backend := os.Getenv("SESSION_BACKEND")
	if backend == "" {
		backend = "db"
	}

	coachBaseURL := os.Getenv("COACH_BASE_URL")
	if coachBaseURL == "" {
		coachBaseURL = "http://localhost:8085"
	}
	coachAppName := os.Getenv("COACH_APP_NAME")
	if coachAppName == "" {
		coachAppName = "HealthMate"
	}

	backupBaseURL := os.Getenv("BACKUP_BASE_URL")
	if backupBaseURL == "" {
		backupBaseURL = coachBaseURL
	}

	locale := os.Getenv("CHAT_LOCALE")
	if locale == "" {
		locale = "en-US"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "degraded_events"
	}

	return Config{
		HTTPAddr:  addr,
		JWTSecret: secret,

		DBDriver: driver,
		DBDSN:    os.Getenv("DB_DSN"),

		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		SessionBackend: backend,

		CoachBaseURL: coachBaseURL,
		CoachAppName: coachAppName,
		CoachAPIKey:  os.Getenv("COACH_API_KEY"),

		BackupBaseURL: backupBaseURL,

		Locale: locale,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,
	}
}
