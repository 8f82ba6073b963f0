package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                    int    `env:"PORT" envDefault:"8080"`
	BackendURL              string `env:"BACKEND_URL" envDefault:"http://localhost:3000"`
	LocalStorageURL         string `env:"LOCAL_STORAGE_URL" envDefault:"sqlite://./data/dashboard.db"`
	RedisURL                string `env:"REDIS_URL,required"`
	FirebaseAPIKey          string `env:"FIREBASE_API_KEY,required"`
	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID,required"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseAuthURL         string `env:"FIREBASE_AUTH_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	FirebaseTokenURL        string `env:"FIREBASE_TOKEN_URL" envDefault:"https://securetoken.googleapis.com/v1/token"`
	StatusCollection        string `env:"STATUS_COLLECTION" envDefault:"WhatsAppAutomation"`
	EncryptionKey           string `env:"ENCRYPTION_KEY"`
	APITimeoutSeconds       int    `env:"API_TIMEOUT_SECONDS" envDefault:"300"`
	StaticDir               string `env:"STATIC_DIR" envDefault:"./web"`
	SecureCookies           bool   `env:"SECURE_COOKIES" envDefault:"false"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL must use http or https")
	}
	if c.APITimeoutSeconds <= 0 {
		return fmt.Errorf("API_TIMEOUT_SECONDS must be positive")
	}
	if strings.TrimSpace(c.StatusCollection) == "" {
		return fmt.Errorf("STATUS_COLLECTION must not be empty")
	}

	if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		log.Warn().Str("backend", c.BackendURL).Msg("BACKEND_URL is not TLS: bearer tokens travel in clear text")
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters")
	}

	if c.EncryptionKey == "" {
		log.Warn().Msg("ENCRYPTION_KEY is empty: tokens are stored unencrypted in local storage")
	}
	if c.FirebaseCredentialsFile == "" {
		log.Warn().Msg("FIREBASE_CREDENTIALS_FILE is empty: falling back to application default credentials")
	}

	return nil
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	return &cfg, nil
}
