package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	claimsKey   contextKey = "auth_claims"
	observerKey contextKey = "auth_claims_observer"
)

// Middleware rejects unauthenticated requests with 401 before any handler
// runs. Requests for which skipper returns true pass through untouched.
func Middleware(a Authenticator, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			claims, err := a.Authenticate(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, rejectionMessage(err))
			}

			c.Set("user_id", claims.Subject)
			c.SetRequest(c.Request().WithContext(WithClaims(c.Request().Context(), claims)))
			return next(c)
		}
	}
}

// HTTPMiddleware is the net/http form of Middleware, used by the function
// endpoints. Public paths skip authentication.
func HTTPMiddleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || IsPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := a.Authenticate(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": rejectionMessage(err)})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func rejectionMessage(err error) string {
	for _, known := range []error{ErrMissingCredentials, ErrMalformedHeader, ErrMissingAPIKey, ErrInvalidAPIKey} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrInvalidToken.Error()
}

// WithClaims attaches claims to ctx and reports them to an observer
// registered with ObserveClaims further up the chain.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	if dst, ok := ctx.Value(observerKey).(**Claims); ok {
		*dst = claims
	}
	return context.WithValue(ctx, claimsKey, claims)
}

// ObserveClaims returns a context under which the next WithClaims call
// stores its claims in *dst. Middleware mounted outside authentication uses
// it to learn the caller once the inner handlers have run.
func ObserveClaims(ctx context.Context, dst **Claims) context.Context {
	return context.WithValue(ctx, observerKey, dst)
}

func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func UserIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
