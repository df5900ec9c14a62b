package config

import "strings"

// OAuthProvider holds the credentials and endpoints for one upstream
// identity provider. Endpoints are only overridden for non-standard
// providers; well-known ones get defaults from the identity package.
type OAuthProvider struct {
	Name         string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Issuer       string // optional OIDC issuer for id_token verification
	Scopes       []string
}

type OAuthProviderConfig interface {
	GetOAuthProvider(name string) OAuthProvider
}

type OAuthProviders struct{}

var _ OAuthProviderConfig = OAuthProviders{}

// GetOAuthProvider reads <PROVIDER>_CLIENT_ID, <PROVIDER>_CLIENT_SECRET,
// <PROVIDER>_CALLBACK_URL and <PROVIDER>_ISSUER for the named provider.
func (OAuthProviders) GetOAuthProvider(name string) OAuthProvider {
	prefix := strings.ToUpper(name)
	scopes := []string{"openid", "profile", "email"}
	if s := GetEnv(prefix+"_SCOPES", ""); s != "" {
		scopes = strings.Split(s, " ")
	}
	return OAuthProvider{
		Name:         name,
		ClientID:     GetEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: GetEnv(prefix+"_CLIENT_SECRET", ""),
		CallbackURL:  GetEnv(prefix+"_CALLBACK_URL", ""),
		Issuer:       GetEnv(prefix+"_ISSUER", ""),
		Scopes:       scopes,
	}
}
