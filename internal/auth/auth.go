// Package auth identifies the owner of each API request. It verifies
// credentials only; issuing tokens is left to an external identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// HeaderUserID carries the owner when no JWT secret is configured.
const HeaderUserID = "X-User-Id"

const maxOwnerIDLength = 128

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidOwner       = errors.New("invalid owner id")
)

type ctxKey struct{}

// Claims is the expected JWT payload. The owner is taken from sub, falling
// back to user_id.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the owner id carried by the claims.
func (c *Claims) Owner() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Authenticator resolves owners from bearer tokens, or from the X-User-Id
// header when constructed without a secret.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) *Authenticator {
	a := &Authenticator{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// UsesJWT reports whether bearer tokens are required.
func (a *Authenticator) UsesJWT() bool {
	return len(a.secret) > 0
}

// OwnerFromRequest extracts and verifies the request owner.
func (a *Authenticator) OwnerFromRequest(r *http.Request) (string, error) {
	if a.UsesJWT() {
		return a.ownerFromBearer(r.Header.Get("Authorization"))
	}
	return ownerFromHeader(r.Header.Get(HeaderUserID))
}

func (a *Authenticator) ownerFromBearer(h string) (string, error) {
	tokenStr, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(tokenStr) == "" {
		return "", ErrMissingCredentials
	}

	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(strings.TrimSpace(tokenStr), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	return validOwner(claims.Owner())
}

func ownerFromHeader(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingCredentials
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s must be a UUID", ErrInvalidOwner, HeaderUserID)
	}
	return id.String(), nil
}

func validOwner(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxOwnerIDLength {
		return "", ErrInvalidOwner
	}
	return id, nil
}

// Middleware stores the owner in the request context. Failures are passed to
// onError, which must write the response.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := a.OwnerFromRequest(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// OwnerFromContext returns the owner stored by Middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
