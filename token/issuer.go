package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	autherrors "github.com/CodeGachi/SyncNapse-sub001/internal/errors"
)

// TypeAccess marks short-lived tokens presented on each request.
const TypeAccess = "access"

// Claims holds the decoded contents of an access token. A structurally
// decoded token is not proof of validity; Verify is the authoritative
// signature and expiry check.
type Claims struct {
	Subject   string
	JTI       string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints and verifies short-lived signed access tokens. Each token
// carries a unique jti so it can be revoked individually via the blacklist.
type Issuer struct {
	signer       Signer
	issuer       string
	accessExpiry time.Duration
	nowFunc      func() time.Time
}

type IssuerOption func(*Issuer)

// WithNowFunc sets the time source (primarily for testing)
func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

// WithAccessTokenExpiry overrides the default 15 minute access token lifetime
func WithAccessTokenExpiry(expiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessExpiry = expiry
	}
}

func NewIssuer(signer Signer, issuer string, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:       signer,
		issuer:       issuer,
		accessExpiry: 15 * time.Minute,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// AccessTokenExpiry returns the configured access token lifetime.
func (i *Issuer) AccessTokenExpiry() time.Duration {
	return i.accessExpiry
}

// MintAccessToken creates a signed access token for the user with a fresh jti.
func (i *Issuer) MintAccessToken(userID string) (string, error) {
	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":  i.issuer,
		"sub":  userID,
		"jti":  uuid.New().String(),
		"type": TypeAccess,
		"iat":  now.Unix(),
		"exp":  now.Add(i.accessExpiry).Unix(),
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Issuer.MintAccessToken")
	}
	return signed, nil
}

// Decode structurally parses a token without verifying its signature.
// Used where only the embedded identifiers are needed (blacklisting a
// token on logout must work even for tokens the caller cannot re-verify).
func (i *Issuer) Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherrors.ErrInvalidTokenFormat
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, autherrors.ErrInvalidTokenFormat
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, autherrors.ErrInvalidTokenFormat
	}
	return claimsFromMap(mapClaims), nil
}

// Verify parses the token, checks its signature and rejects expired tokens.
func (i *Issuer) Verify(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherrors.ErrInvalidTokenFormat
	}
	parsed, err := jwt.Parse(rawToken, i.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(i.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, autherrors.ErrTokenExpired
		}
		return nil, autherrors.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, autherrors.ErrInvalidToken
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, autherrors.ErrInvalidToken
	}
	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(mapClaims jwt.MapClaims) *Claims {
	sub, _ := mapClaims["sub"].(string)
	jti, _ := mapClaims["jti"].(string)
	tokenType, _ := mapClaims["type"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	claims := &Claims{
		Subject:   sub,
		JTI:       jti,
		TokenType: tokenType,
	}
	if iat != 0 {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp != 0 {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims
}
