package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// GeneratorScheduleParser parses the generation cadence. Descriptors such as
// "@every 5m" are accepted alongside five-field expressions.
var GeneratorScheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Config holds all application configuration
type Config struct {
	// MongoDB Configuration
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration
	MongoMaxPool  uint64
	MongoMinPool  uint64

	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Scheduler Configuration
	SchedulerEnabled      bool
	GeneratorSchedule     string
	GenerationLockEnabled bool
	GenerationLockTTL     time.Duration

	// Assignment Configuration
	LeaseDuration           time.Duration
	CooldownWindow          time.Duration
	MaxAssignmentsPerWorker int

	// Completion pipeline
	CompletionWorkers   int
	CompletionQueueSize int

	// Messaging (empty disables event publishing)
	AMQPURL             string
	AMQPBreakerFailures int
	AMQPBreakerCooldown time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// MongoDB
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/vigil?authSource=admin"),
		MongoDatabase: getEnv("MONGO_DATABASE", "vigil"),
		MongoTimeout:  getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,
		MongoMaxPool:  uint64(getIntEnv("MONGO_MAX_POOL_SIZE", 100)),
		MongoMinPool:  uint64(getIntEnv("MONGO_MIN_POOL_SIZE", 10)),

		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, OPTIONS"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),

		// Scheduler
		SchedulerEnabled:      getBoolEnv("SCHEDULER_ENABLED", true),
		GeneratorSchedule:     getEnv("GENERATOR_SCHEDULE", "@every 5m"),
		GenerationLockEnabled: getBoolEnv("GENERATION_LOCK_ENABLED", true),
		GenerationLockTTL:     getDurationEnv("GENERATION_LOCK_TTL_SEC", 120) * time.Second,

		// Assignments
		LeaseDuration:           getDurationEnv("LEASE_DURATION_SEC", 600) * time.Second,
		CooldownWindow:          getDurationEnv("COOLDOWN_WINDOW_SEC", 1800) * time.Second,
		MaxAssignmentsPerWorker: getIntEnv("MAX_ASSIGNMENTS_PER_WORKER", 5),

		// Completion pipeline
		CompletionWorkers:   getIntEnv("COMPLETION_WORKERS", 0),
		CompletionQueueSize: getIntEnv("COMPLETION_QUEUE_SIZE", 256),

		// Messaging
		AMQPURL:             getEnv("AMQP_URL", ""),
		AMQPBreakerFailures: getIntEnv("AMQP_BREAKER_FAILURES", 5),
		AMQPBreakerCooldown: getDurationEnv("AMQP_BREAKER_COOLDOWN_SEC", 30) * time.Second,
	}
}

// Validate checks that the loaded values can drive the scheduler and generator
func (c *Config) Validate() error {
	if c.MongoMinPool > c.MongoMaxPool {
		return errors.New("mongo min pool size exceeds max pool size")
	}
	if c.LeaseDuration <= 0 {
		return errors.New("lease duration must be positive")
	}
	if c.CooldownWindow <= 0 {
		return errors.New("cooldown window must be positive")
	}
	if c.MaxAssignmentsPerWorker <= 0 {
		return errors.New("max assignments per worker must be positive")
	}
	if c.GenerationLockEnabled && c.GenerationLockTTL <= 0 {
		return errors.New("generation lock TTL must be positive")
	}
	if c.CompletionWorkers < 0 {
		return errors.New("completion workers must not be negative")
	}
	if c.CompletionWorkers > 0 && c.CompletionQueueSize <= 0 {
		return errors.New("completion queue size must be positive")
	}
	if c.AMQPURL != "" && (c.AMQPBreakerFailures <= 0 || c.AMQPBreakerCooldown <= 0) {
		return errors.New("amqp breaker failures and cooldown must be positive")
	}
	if _, err := GeneratorScheduleParser.Parse(c.GeneratorSchedule); err != nil {
		return fmt.Errorf("invalid generator schedule %q: %w", c.GeneratorSchedule, err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
