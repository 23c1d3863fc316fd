package config

import (
	"os"
	"time"

	"github.com/Govind-619/PayRoute/utils"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string
	LogDir     string

	// CallbackBaseURL is the public base URL providers redirect and post back to
	CallbackBaseURL string

	GatewayTimeout   time.Duration
	UPISweepInterval time.Duration
	UPIPendingTTL    time.Duration
	WebhookTolerance time.Duration
}

// LoadConfig loads configuration from the environment. A .env file is read
// when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		utils.LogDebug("No .env file loaded: %v", err)
	}

	config := &Config{
		DBHost:           getenv("DB_HOST", utils.DefaultDBHost),
		DBPort:           getenv("DB_PORT", utils.DefaultDBPort),
		DBUser:           getenv("DB_USER", utils.DefaultDBUser),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBName:           getenv("DB_NAME", utils.DefaultDBName),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		Port:             getenv("PORT", utils.DefaultPort),
		Env:              getenv("ENV", "development"),
		LogDir:           getenv("LOG_DIR", "logs"),
		CallbackBaseURL:  getenv("CALLBACK_BASE_URL", "http://localhost:8080"),
		GatewayTimeout:   getDuration("GATEWAY_TIMEOUT", utils.DefaultGatewayTimeout),
		UPISweepInterval: getDuration("UPI_SWEEP_INTERVAL", utils.DefaultUPISweepInterval),
		UPIPendingTTL:    getDuration("UPI_PENDING_TTL", utils.DefaultUPIPendingTTL),
		WebhookTolerance: getDuration("WEBHOOK_TOLERANCE", utils.DefaultWebhookTolerance),
	}

	return config, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		utils.LogError("Ignoring invalid duration %s=%q", key, v)
	}
	return def
}
