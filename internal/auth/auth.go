// Package auth gates gateway routes behind a shared secret sent in a
// request header.
package auth

import (
	"context"
	"net/http"
)

// DefaultHeader carries the shared secret unless configured otherwise.
const DefaultHeader = "X-API-Key"

// Config holds shared-secret settings.
type Config struct {
	// Secret is the expected header value. Empty rejects every request.
	Secret string `yaml:"secret"`
	// Header names the request header carrying the secret.
	Header string `yaml:"header"`
}

// DefaultConfig returns a configuration with no secret set.
func DefaultConfig() *Config {
	return &Config{Header: DefaultHeader}
}

// Caller identifies an authenticated request without exposing the secret.
type Caller struct {
	// ID is a prefix of the secret's SHA-256 digest.
	ID string
}

type contextKey struct{ name string }

var callerContextKey = &contextKey{"caller"}

// SetCallerInContext stores the caller in the context.
func SetCallerInContext(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// GetCallerFromContext returns the caller, or nil if the request was not
// authenticated.
func GetCallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerContextKey).(*Caller)
	return caller
}

// Authenticator validates the credentials on a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Caller, error)
}
