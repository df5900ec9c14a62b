package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar           = "PORT"
	appNameVar           = "APP_NAME"
	baseURLVar           = "BASE_URL"
	databaseURLVar       = "DATABASE_URL"
	allowedOriginsEnvVar = "ALLOWED_ORIGINS"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetDatabaseURL() string
	GetAllowedOrigins() []string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "4000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "SyncNapse Auth")
}

// GetBaseURL returns the public base URL for the auth service
// (e.g., "https://api.syncnapse.io"), used for issuer and callback URLs.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:4000")
}

func (EnvVars) GetDatabaseURL() string {
	return GetEnv(databaseURLVar, "")
}

// GetAllowedOrigins returns the CORS allow-list, comma separated in the
// environment. Empty means no cross-origin access.
func (EnvVars) GetAllowedOrigins() []string {
	raw := GetEnv(allowedOriginsEnvVar, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
