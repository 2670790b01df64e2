package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Header != "X-API-Key" {
		t.Errorf("expected header X-API-Key, got %q", cfg.Header)
	}
	if cfg.Secret != "" {
		t.Error("expected no secret by default")
	}
}

func TestSharedSecretAuthenticate(t *testing.T) {
	a := NewSharedSecretAuthenticator(&Config{Secret: "s3cret", Header: "X-API-Key"})

	tests := []struct {
		name    string
		header  string
		value   string
		wantErr *AuthError
	}{
		{"valid secret", "X-API-Key", "s3cret", nil},
		{"header name is case-insensitive", "x-api-key", "s3cret", nil},
		{"missing header", "", "", ErrMissingCredentials},
		{"wrong secret", "X-API-Key", "nope", ErrInvalidCredentials},
		{"prefix of secret", "X-API-Key", "s3cre", ErrInvalidCredentials},
		{"secret in another header", "Authorization", "s3cret", ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/agent/push_data", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			caller, err := a.Authenticate(req)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if caller == nil || len(caller.ID) != 16 {
					t.Errorf("expected caller with 16-char id, got %+v", caller)
				}
				return
			}
			if err != tt.wantErr {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	for _, cfg := range []*Config{nil, {}, {Header: "X-Token"}} {
		a := NewSharedSecretAuthenticator(cfg)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(a.Header(), "")
		if _, err := a.Authenticate(req); err != ErrSecretNotConfigured {
			t.Errorf("config %+v: expected ErrSecretNotConfigured, got %v", cfg, err)
		}
	}
}

func TestCustomHeader(t *testing.T) {
	a := NewSharedSecretAuthenticator(&Config{Secret: "k", Header: "X-Agent-Token"})
	if a.Header() != "X-Agent-Token" {
		t.Fatalf("expected custom header, got %q", a.Header())
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Agent-Token", "k")
	if _, err := a.Authenticate(req); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	a := NewSharedSecretAuthenticator(&Config{Secret: "s3cret"})

	var rejected []*AuthError
	mw := NewMiddleware(a, func(r *http.Request, err *AuthError) {
		rejected = append(rejected, err)
	})

	var reached int
	var seenCaller *Caller
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached++
		seenCaller = GetCallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/agent/push_data", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body) != 1 || body["error"] != "Unauthorized" {
			t.Errorf("unexpected body: %v", body)
		}
		if reached != 0 {
			t.Error("handler must not run on rejection")
		}
		if len(rejected) != 1 || rejected[0] != ErrInvalidCredentials {
			t.Errorf("expected one invalid-credentials rejection, got %v", rejected)
		}
	})

	t.Run("valid secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/agent/push_data", nil)
		req.Header.Set("X-API-Key", "s3cret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if reached != 1 {
			t.Errorf("expected handler to run once, ran %d", reached)
		}
		if seenCaller == nil {
			t.Error("expected caller in context")
		}
	})
}

func TestMiddlewareNilAuthenticator(t *testing.T) {
	handler := NewMiddleware(nil, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
