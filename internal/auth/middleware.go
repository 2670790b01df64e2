package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// AuthError is a rejected authentication attempt. Code is for logs only;
// clients always see the same body.
type AuthError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

var (
	ErrMissingCredentials = &AuthError{
		StatusCode: http.StatusUnauthorized,
		Code:       "MISSING_CREDENTIALS",
		Message:    "missing shared secret",
	}
	ErrInvalidCredentials = &AuthError{
		StatusCode: http.StatusUnauthorized,
		Code:       "INVALID_CREDENTIALS",
		Message:    "shared secret mismatch",
	}
	ErrSecretNotConfigured = &AuthError{
		StatusCode: http.StatusUnauthorized,
		Code:       "SECRET_NOT_CONFIGURED",
		Message:    "no shared secret configured",
	}
)

// RejectFunc observes a rejected request.
type RejectFunc func(r *http.Request, err *AuthError)

// Middleware rejects requests that fail authentication with
// 401 {"error":"Unauthorized"} before the wrapped handler runs.
type Middleware struct {
	authenticator Authenticator
	onReject      RejectFunc
}

// NewMiddleware wraps authenticator. onReject may be nil.
func NewMiddleware(authenticator Authenticator, onReject RejectFunc) *Middleware {
	return &Middleware{authenticator: authenticator, onReject: onReject}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authenticator == nil {
			m.reject(w, r, ErrSecretNotConfigured)
			return
		}

		caller, err := m.authenticator.Authenticate(r)
		if err != nil {
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				authErr = ErrInvalidCredentials
			}
			m.reject(w, r, authErr)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetCallerInContext(r.Context(), caller)))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, err *AuthError) {
	if m.onReject != nil {
		m.onReject(r, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
