package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// SharedSecretAuthenticator compares a request header against one
// configured secret.
type SharedSecretAuthenticator struct {
	header   string
	digest   [sha256.Size]byte
	callerID string
	enabled  bool
}

// NewSharedSecretAuthenticator builds an authenticator from cfg. A nil cfg
// or empty secret yields an authenticator that rejects everything.
func NewSharedSecretAuthenticator(cfg *Config) *SharedSecretAuthenticator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &SharedSecretAuthenticator{header: cfg.Header}
	if strings.TrimSpace(a.header) == "" {
		a.header = DefaultHeader
	}
	if cfg.Secret != "" {
		a.digest = sha256.Sum256([]byte(cfg.Secret))
		a.callerID = hex.EncodeToString(a.digest[:])[:16]
		a.enabled = true
	}
	return a
}

// Header returns the header name the authenticator reads.
func (a *SharedSecretAuthenticator) Header() string {
	return a.header
}

// Authenticate checks the secret header. Digests are compared in constant
// time so the comparison does not depend on the secret's length.
func (a *SharedSecretAuthenticator) Authenticate(r *http.Request) (*Caller, error) {
	if !a.enabled {
		return nil, ErrSecretNotConfigured
	}

	key := r.Header.Get(a.header)
	if key == "" {
		return nil, ErrMissingCredentials
	}

	got := sha256.Sum256([]byte(key))
	if subtle.ConstantTimeCompare(got[:], a.digest[:]) != 1 {
		return nil, ErrInvalidCredentials
	}

	return &Caller{ID: a.callerID}, nil
}
