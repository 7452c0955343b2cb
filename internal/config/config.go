package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Sender modes
const (
	SenderModeCloud     = "cloud"
	SenderModeSimulated = "simulated"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	WhatsApp WhatsAppConfig
	Worker   WorkerConfig
	Env      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string
	MetricsPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	WebhookQueue string
}

// WhatsAppConfig holds Cloud API credentials and webhook secrets
type WhatsAppConfig struct {
	APIURL        string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	AppSecret     string
	VerifyToken   string
	HTTPTimeout   time.Duration
}

// WorkerConfig holds the bulk sender settings
type WorkerConfig struct {
	SenderMode           string
	SimulatedSuccessRate float64
	RateLimit            int
	PollInterval         time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			MetricsPort: getEnv("METRICS_PORT", "9090"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "wacampaign"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "wacampaign_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:         getEnv("RABBITMQ_HOST", "localhost"),
			Port:         getEnv("RABBITMQ_PORT", "5672"),
			User:         getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password:     getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
			WebhookQueue: getEnv("WEBHOOK_QUEUE", "whatsapp_webhook_events"),
		},
		WhatsApp: WhatsAppConfig{
			APIURL:        getEnv("WHATSAPP_API_URL", "https://graph.facebook.com"),
			APIVersion:    getEnv("WHATSAPP_API_VERSION", "v19.0"),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			AppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
			VerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			HTTPTimeout:   getEnvAsDuration("WHATSAPP_HTTP_TIMEOUT", 30*time.Second),
		},
		Worker: WorkerConfig{
			SenderMode:           getEnv("SENDER_MODE", SenderModeCloud),
			SimulatedSuccessRate: getEnvAsFloat("SIMULATED_SUCCESS_RATE", 0.95),
			RateLimit:            getEnvAsInt("WORKER_RATE_LIMIT", 6),
			PollInterval:         getEnvAsDuration("WORKER_POLL_INTERVAL", 60*time.Second),
		},
		Env: getEnv("ENV", "development"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}

	switch c.Worker.SenderMode {
	case SenderModeCloud:
		if c.WhatsApp.AccessToken == "" {
			return fmt.Errorf("WHATSAPP_ACCESS_TOKEN is required when SENDER_MODE=cloud")
		}
		if c.WhatsApp.PhoneNumberID == "" {
			return fmt.Errorf("WHATSAPP_PHONE_NUMBER_ID is required when SENDER_MODE=cloud")
		}
	case SenderModeSimulated:
	default:
		return fmt.Errorf("invalid SENDER_MODE %q: must be 'cloud' or 'simulated'", c.Worker.SenderMode)
	}

	if c.Worker.RateLimit <= 0 {
		return fmt.Errorf("WORKER_RATE_LIMIT must be greater than 0")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be greater than 0")
	}

	return nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetDatabaseURL returns the PostgreSQL URL form used by the migration runner
func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     c.Database.Host + ":" + c.Database.Port,
		Path:     "/" + c.Database.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a plain number of milliseconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
