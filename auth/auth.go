// Package auth resolves the request's user from the Authorization
// header and handles password hashing for signup and signin.
package auth

import (
	"context"
	"log/slog"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/c360/linkstream/errors"
	"github.com/c360/linkstream/store"
)

// Tokens are the user's email behind a fixed prefix, matching the
// shape issued by signinUser.
var tokenPattern = regexp.MustCompile(`bearer token-(.*)`)

// TokenPrefix prefixes every issued token
const TokenPrefix = "token-"

// Token builds the bearer token for an email
func Token(email string) string {
	return TokenPrefix + email
}

type contextKey struct{}

// Authenticator resolves bearer tokens to stored users
type Authenticator struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an Authenticator
func New(st store.Store, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		store:  st,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate resolves the Authorization header to a user. Every
// failure mode, missing header, malformed token, unknown email, store
// error, yields a nil user so the request proceeds anonymously.
func (a *Authenticator) Authenticate(ctx context.Context, header string) *store.User {
	if header == "" {
		return nil
	}

	m := tokenPattern.FindStringSubmatch(header)
	if m == nil {
		a.logger.Debug("Ignoring malformed authorization header")
		return nil
	}

	user, err := a.store.UserByEmail(ctx, m[1])
	if err != nil {
		a.logger.Warn("User lookup failed during authentication", "error", err)
		return nil
	}
	if user == nil {
		a.logger.Debug("No user for presented token")
		return nil
	}
	return user
}

// WithUser attaches the authenticated user to the request context
func WithUser(ctx context.Context, user *store.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext retrieves the authenticated user, nil for anonymous
// requests
func UserFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(contextKey{}).(*store.User)
	return user
}

// HashPassword derives the bcrypt hash stored for a new user
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.WrapInvalid(err, "auth", "HashPassword", "hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
