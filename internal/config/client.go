package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// ClientConfig configures the dashctl operator client.
type ClientConfig struct {
	ServerURL      string
	SessionFile    string
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	RequestTimeout time.Duration
	LogLevel       string
}

// LoadClient reads DASHCTL_* variables.
func LoadClient() ClientConfig {
	_ = godotenv.Load()

	return ClientConfig{
		ServerURL:      getEnv("DASHCTL_SERVER_URL", "http://127.0.0.1:8080"),
		SessionFile:    getEnv("DASHCTL_SESSION_FILE", defaultSessionFile()),
		BackoffBase:    time.Duration(getEnvAsInt("DASHCTL_BACKOFF_BASE_MS", 500)) * time.Millisecond,
		BackoffMax:     time.Duration(getEnvAsInt("DASHCTL_BACKOFF_MAX_MS", 30000)) * time.Millisecond,
		RequestTimeout: time.Duration(getEnvAsInt("DASHCTL_REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:       getEnv("DASHCTL_LOG_LEVEL", "warn"),
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".dashctl-session.json"
	}
	return filepath.Join(dir, "dashctl", "session.json")
}
