package config

import (
	"encoding/base64"
	"errors"
	"os"
	"strings"
)

// DirectoryOrder values accepted by DIRECTORY_ORDER.
const (
	OrderDisplay = "display" // manual seed ordering (code_id ASC NULLS LAST)
	OrderNewest  = "newest"  // created_at DESC
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3PublicURL string

	IdentityAPIURL string
	IdentityAPIKey string

	// raw secret kept in-memory only; never log this
	WebhookSecretRaw string
	WebhookSecret    []byte // decoded from WebhookSecretRaw

	CORSOrigins    []string
	DirectoryOrder string
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:          os.Getenv("DB_DSN"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:       getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		S3Endpoint:     getenvDefault("S3_ENDPOINT", ""),
		S3Bucket:       getenvDefault("S3_BUCKET", "profile-photos"),
		S3Region:       getenvDefault("S3_REGION", "auto"),
		S3PublicURL:    getenvDefault("S3_PUBLIC_URL", ""),
		IdentityAPIURL: getenvDefault("IDENTITY_API_URL", "https://api.clerk.com/v1"),
		IdentityAPIKey: os.Getenv("IDENTITY_API_KEY"),
		DirectoryOrder: getenvDefault("DIRECTORY_ORDER", OrderDisplay),
	}

	cfg.WebhookSecretRaw = os.Getenv("WEBHOOK_SECRET")

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	if cfg.DirectoryOrder != OrderDisplay && cfg.DirectoryOrder != OrderNewest {
		return Config{}, errors.New("DIRECTORY_ORDER must be 'display' or 'newest'")
	}

	// decode webhook secret (svix format: optional whsec_ prefix, then base64)
	if cfg.WebhookSecretRaw != "" {
		raw := strings.TrimPrefix(cfg.WebhookSecretRaw, "whsec_")
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Config{}, errors.New("WEBHOOK_SECRET must be base64 (optionally whsec_ prefixed)")
		}
		cfg.WebhookSecret = key
	}

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
