package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	Port        string `env:"PORT,default=8080"`
	AppURL      string `env:"APP_URL,default=http://localhost:3000"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	GCSBucketName string `env:"GCS_BUCKET_NAME"`
	UploadDir     string `env:"UPLOAD_DIR,default=./db/upload-files"`

	SessionSecret string        `env:"SESSION_SECRET,required"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=168h"`
	TokenSecret   string        `env:"TOKEN_SECRET,required"`
	PhantomSecret string        `env:"PHANTOM_SECRET"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	MeilisearchHost   string `env:"MEILISEARCH_HOST"`
	MeilisearchAPIKey string `env:"MEILISEARCH_API_KEY"`

	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	SendGridFrom   string `env:"SENDGRID_FROM,default=noreply@dashjs.io"`

	RedisURL string        `env:"REDIS_URL"`
	LockTTL  time.Duration `env:"LOCK_TTL,default=30s"`

	AllowedOrigins string  `env:"ALLOWED_ORIGINS"`
	TokenRateLimit float64 `env:"TOKEN_RATE_LIMIT,default=5"`
	TokenRateBurst int     `env:"TOKEN_RATE_BURST,default=20"`

	// envFileErr is kept until a logger exists to report it.
	envFileErr error
}

// Load reads an optional .env file, then decodes the environment.
func Load() (*Config, error) {
	envFileErr := godotenv.Load()

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.envFileErr = envFileErr
	return &cfg, nil
}

func (c *Config) warnEnvFile(logger *zap.Logger) {
	if c.envFileErr != nil {
		logger.Warn("No .env file found, using environment variables", zap.Error(c.envFileErr))
	}
}

func (c *Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
