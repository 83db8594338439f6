package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredentials = errors.New("missing authorization header")
	ErrMalformedHeader    = errors.New("invalid authorization format")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingAPIKey      = errors.New("missing api key")
	ErrInvalidAPIKey      = errors.New("invalid api key")
)

// Claims are the verified identity attached to an authenticated request.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// TokenVerifier validates a raw credential and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// Authenticator extracts and verifies the credential carried by a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Claims, error)
}

type VerifierConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey switches to HS256 verification. Local development and tests only.
	SigningKey []byte
	HTTPClient *http.Client
}

// JWTVerifier validates bearer JWTs either against a JWKS endpoint (RS256)
// or a shared HMAC key (HS256).
type JWTVerifier struct {
	cfg    VerifierConfig
	cache  *JWKSCache
	parser *jwt.Parser
}

// NewJWTVerifier builds a verifier. Without an explicit JWKS URL or signing
// key the JWKS location is discovered from the issuer.
func NewJWTVerifier(ctx context.Context, cfg VerifierConfig) (*JWTVerifier, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	methods := []string{"RS256"}
	if len(cfg.SigningKey) > 0 {
		methods = []string{"HS256"}
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	v := &JWTVerifier{cfg: cfg, parser: jwt.NewParser(opts...)}
	if len(cfg.SigningKey) > 0 {
		return v, nil
	}

	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		if cfg.Issuer == "" {
			return nil, fmt.Errorf("jwt verifier needs a signing key, a JWKS URL or an issuer")
		}
		provider, err := DiscoverOIDC(ctx, cfg.HTTPClient, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("discover JWKS for %s: %w", cfg.Issuer, err)
		}
		jwksURL = provider.JWKSURI
	}
	v.cache = NewJWKSCache(jwksURL, defaultJWKSCacheTTL, cfg.HTTPClient)
	return v, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if v.cache == nil {
			return v.cfg.SigningKey, nil
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.cache.GetKey(ctx, kid)
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate reads the bearer token from the Authorization header.
func (v *JWTVerifier) Authenticate(r *http.Request) (*Claims, error) {
	raw, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	return v.Verify(r.Context(), raw)
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(token), nil
}

// APIKeySubject is the subject recorded for requests authenticated by the
// shared API key.
const APIKeySubject = "api-key"

// APIKeyVerifier accepts a single shared key from the X-API-Key header or
// the apiKey query parameter.
type APIKeyVerifier struct {
	key []byte
}

func NewAPIKeyVerifier(key string) *APIKeyVerifier {
	return &APIKeyVerifier{key: []byte(key)}
}

func (v *APIKeyVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	if len(v.key) == 0 || subtle.ConstantTimeCompare([]byte(raw), v.key) != 1 {
		return nil, ErrInvalidAPIKey
	}
	return &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: APIKeySubject}}, nil
}

func (v *APIKeyVerifier) Authenticate(r *http.Request) (*Claims, error) {
	raw := r.Header.Get("X-API-Key")
	if raw == "" {
		raw = r.URL.Query().Get("apiKey")
	}
	if raw == "" {
		return nil, ErrMissingAPIKey
	}
	return v.Verify(r.Context(), raw)
}
