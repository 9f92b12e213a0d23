package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	ServerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Database
	DBDriver    string
	DatabaseDSN string

	// NATS (changefeed and detection ingest)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	// Docker: Use nats://nats:4222 if running the server in Docker
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	NatsDrainTimeout   time.Duration // For graceful shutdown

	// Subjects
	SiteChangesSubject string // (previous, current) site snapshot pairs
	DetectionsSubject  string // external producer reports

	// Escalation
	// ConfirmWindow is the fixed confirmation window the current authority
	// gets before authority fails over to the secondary.
	ConfirmWindow time.Duration
	// SweepInterval is how often the durable-timer sweep looks for deadlines
	// that expired while no in-process timer was armed.
	SweepInterval time.Duration

	// Notifications
	PushGatewayURL  string
	PushTimeout     time.Duration
	DedupTTL        time.Duration
	DedupSweep      time.Duration
	FanoutWorkers   int
	NotifyQueueSize int

	// Swagger Configuration
	SwaggerHost string
	SwaggerPort int

	// Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerID:    getEnv("SERVER_ID", "weaponwatch-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy (lightweight web log viewer)
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Database
		DBDriver:    getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN: getEnv("DATABASE_DSN", "weaponwatch:weaponwatch@tcp(localhost:3306)/weaponwatch?parseTime=true"),

		// NATS (configured for Docker Compose setup)
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:   getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),

		// Subjects
		SiteChangesSubject: getEnv("SITE_CHANGES_SUBJECT", "sites.changes"),
		DetectionsSubject:  getEnv("DETECTIONS_SUBJECT", "detections"),

		// Escalation
		ConfirmWindow: getEnvDuration("CONFIRM_WINDOW", 20*time.Second),
		SweepInterval: getEnvDuration("ESCALATION_SWEEP_INTERVAL", 5*time.Second),

		// Notifications
		PushGatewayURL:  getEnv("PUSH_GATEWAY_URL", "https://exp.host/--/api/v2/push/send"),
		PushTimeout:     getEnvDuration("PUSH_TIMEOUT", 10*time.Second),
		DedupTTL:        getEnvDuration("NOTIFY_DEDUP_TTL", 10*time.Minute),
		DedupSweep:      getEnvDuration("NOTIFY_DEDUP_SWEEP", time.Minute),
		FanoutWorkers:   getEnvInt("FANOUT_WORKERS", 4),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),

		// Swagger
		SwaggerHost: getEnv("SWAGGER_HOST", "localhost"),
		SwaggerPort: getEnvInt("SWAGGER_PORT", 8000),

		// Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
