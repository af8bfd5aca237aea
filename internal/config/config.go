package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	UseMemoryQueue bool
	WorkerCount    int

	ClinicName  string
	DoctorPhone string

	AdminJWTSecret string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	NotificationQueueURL string
	SweepInterval        time.Duration
	SweepLockTTL         time.Duration

	RedisAddr     string
	RedisPassword string

	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppBaseURL       string

	StaffAlertEmail string
	AlertFromEmail  string
	AlertFromName   string

	SendGridAPIKey string

	IntentConfidenceThreshold float64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		ClinicName:  getEnv("CLINIC_NAME", "Clínica"),
		DoctorPhone: getEnv("DOCTOR_PHONE", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		SweepInterval:        getEnvAsDuration("SWEEP_INTERVAL", time.Hour),
		SweepLockTTL:         getEnvAsDuration("SWEEP_LOCK_TTL", 10*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", ""),

		StaffAlertEmail: getEnv("STAFF_ALERT_EMAIL", ""),
		AlertFromEmail:  getEnv("ALERT_FROM_EMAIL", ""),
		AlertFromName:   getEnv("ALERT_FROM_NAME", ""),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		IntentConfidenceThreshold: getEnvAsFloat("INTENT_CONFIDENCE_THRESHOLD", 0.7),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate reports configuration errors that must stop startup. Development
// defaults pass; production requires the delivery and auth secrets.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.IsProduction() {
		if c.AdminJWTSecret == "" {
			missing = append(missing, "ADMIN_JWT_SECRET")
		}
		if c.WhatsAppAccessToken == "" {
			missing = append(missing, "WHATSAPP_ACCESS_TOKEN")
		}
		if c.WhatsAppPhoneNumberID == "" {
			missing = append(missing, "WHATSAPP_PHONE_NUMBER_ID")
		}
		if !c.UseMemoryQueue && c.NotificationQueueURL == "" {
			missing = append(missing, "NOTIFICATION_QUEUE_URL")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.IntentConfidenceThreshold < 0 || c.IntentConfidenceThreshold > 1 {
		return fmt.Errorf("config: INTENT_CONFIDENCE_THRESHOLD must be within [0, 1], got %v", c.IntentConfidenceThreshold)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
