package config

import "github.com/pkg/errors"

type Config interface {
	EnvConfig
	AuthConfig
	OAuthProviderConfig
}

type mainConfig struct {
	EnvVars
	Auth
	OAuthProviders
}

func New() Config {
	return mainConfig{}
}

// Validate checks the startup-critical configuration. A missing or weak
// signing secret is fatal; it must never be defaulted silently.
func Validate(c Config) error {
	secret := c.GetJWTSecret()
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(secret) < minSecretLength {
		return errors.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	return nil
}
