package account

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ehr/copilot/internal/platform/auth"
)

const SessionCookieName = "ehr_session"

var ErrNoSession = errors.New("no valid session")

// Sessions issues and validates the HS256 session tokens carried in the
// session cookie. Logged-out session ids stay revoked until they expire.
type Sessions struct {
	secret  []byte
	ttl     time.Duration
	secure  bool
	revoked *auth.TokenRevocationStore
	now     func() time.Time
}

func NewSessions(secret string, ttl time.Duration, secure bool, revoked *auth.TokenRevocationStore) *Sessions {
	return &Sessions{
		secret:  []byte(secret),
		ttl:     ttl,
		secure:  secure,
		revoked: revoked,
		now:     time.Now,
	}
}

// Issue signs a session for userID and returns it as a cookie.
func (s *Sessions) Issue(userID uuid.UUID) (*http.Cookie, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Parse validates a session token and returns its claims.
func (s *Sessions) Parse(raw string) (*jwt.RegisteredClaims, error) {
	if raw == "" {
		return nil, ErrNoSession
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrNoSession
	}
	if s.revoked.IsRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: session revoked", ErrNoSession)
	}
	return claims, nil
}

// FromRequest returns the session claims carried by r's cookie.
func (s *Sessions) FromRequest(r *http.Request) (*jwt.RegisteredClaims, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return s.Parse(cookie.Value)
}

// Revoke invalidates a session token. Invalid tokens are ignored.
func (s *Sessions) Revoke(raw string) {
	claims, err := s.Parse(raw)
	if err != nil {
		return
	}
	s.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
}

// ClearCookie expires the session cookie in the browser.
func (s *Sessions) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
