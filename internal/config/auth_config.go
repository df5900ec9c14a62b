package config

import (
	"strconv"
	"time"
)

const minSecretLength = 32

type AuthConfig interface {
	GetJWTSecret() string
	GetIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetOAuthStateTTL() time.Duration
	GetCacheDefaultTTL() time.Duration
	GetCleanupInterval() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Auth) GetIssuer() string {
	return GetEnv("JWT_ISSUER", "syncnapse")
}

func (Auth) GetAccessTokenExpiry() time.Duration {
	return getDurationEnv("JWT_ACCESS_EXPIRATION", 15*time.Minute)
}

func (Auth) GetRefreshTokenExpiry() time.Duration {
	days := getIntEnv("REFRESH_TOKEN_EXPIRATION_DAYS", 30)
	return time.Duration(days) * 24 * time.Hour
}

func (Auth) GetOAuthStateTTL() time.Duration {
	return getDurationEnv("OAUTH_STATE_TTL", 10*time.Minute)
}

func (Auth) GetCacheDefaultTTL() time.Duration {
	return getDurationEnv("CACHE_DEFAULT_TTL", 5*time.Minute)
}

func (Auth) GetCleanupInterval() time.Duration {
	return getDurationEnv("CLEANUP_INTERVAL", 24*time.Hour)
}

func getDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getIntEnv(envVar string, defaultValue int) int {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
