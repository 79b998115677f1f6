// Package auth resolves the owner of each request from an HS256 bearer
// token. Without a configured secret every request belongs to the default
// owner, which keeps single-operator deployments token-free.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fareboard/internal/core"
	"fareboard/internal/log"
)

type contextKey struct{}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// WithOwner returns ctx scoped to owner.
func WithOwner(ctx context.Context, owner core.OwnerID) context.Context {
	return context.WithValue(ctx, contextKey{}, owner)
}

// OwnerFrom returns the owner the request was authenticated as.
func OwnerFrom(ctx context.Context) (core.OwnerID, bool) {
	owner, ok := ctx.Value(contextKey{}).(core.OwnerID)
	return owner, ok
}

type Authenticator struct {
	secret       []byte
	defaultOwner core.OwnerID
	skipPaths    map[string]bool
	logger       *log.Logger
}

func New(secret string, defaultOwner core.OwnerID, skipPaths []string, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.Discard()
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &Authenticator{
		secret:       []byte(secret),
		defaultOwner: defaultOwner,
		skipPaths:    skip,
		logger:       logger.WithComponent(log.ComponentAuth),
	}
}

func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if !a.Enabled() {
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), a.defaultOwner)))
			return
		}

		owner, err := a.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			a.logger.WarnContext(r.Context(), "Authentication failed",
				log.FieldPath, r.URL.Path,
				log.FieldMethod, r.Method,
				log.FieldError, err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="fareboard"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		a.logger.DebugContext(r.Context(), "Authenticated", log.FieldOwner, owner)
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// Authenticate validates an Authorization header value and returns the
// token subject as the owner.
func (a *Authenticator) Authenticate(header string) (core.OwnerID, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	owner := core.OwnerID(claims.Subject)
	if err := owner.Validate(); err != nil {
		return "", fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return owner, nil
}

// IssueToken signs an HS256 token for owner. ttl <= 0 issues a token
// without expiry.
func IssueToken(secret string, owner core.OwnerID, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("empty signing secret")
	}
	if err := owner.Validate(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  owner.String(),
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   "fareboard",
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
