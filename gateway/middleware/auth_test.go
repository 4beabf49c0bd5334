package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"curiochain/gateway/config"
)

const testSecret = "gateway-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func enabledAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "curio",
		Audience:   "curio-gateway",
		ClockSkew:  time.Minute,
	}
}

func TestAuthenticatorDisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{Enabled: false}, nil)
	handler := auth.Middleware("content:write")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/content", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected pass-through with auth disabled, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsMissingToken(t *testing.T) {
	auth := NewAuthenticator(enabledAuthConfig(), nil)
	handler := auth.Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/content", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", res.Code)
	}
}

func TestAuthenticatorAcceptsValidToken(t *testing.T) {
	auth := NewAuthenticator(enabledAuthConfig(), nil)

	var gotSubject string
	handler := auth.Middleware("content:write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token := signToken(t, jwt.MapClaims{
		"iss":   "curio",
		"aud":   "curio-gateway",
		"sub":   "studio-backend",
		"scope": "content:write claims:write",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/content", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected valid token to pass, got %d: %s", res.Code, res.Body.String())
	}
	if gotSubject != "studio-backend" {
		t.Fatalf("subject = %q, want studio-backend", gotSubject)
	}
}

func TestAuthenticatorRejectsInsufficientScope(t *testing.T) {
	auth := NewAuthenticator(enabledAuthConfig(), nil)
	handler := auth.Middleware("webhooks:manage")(okHandler())

	token := signToken(t, jwt.MapClaims{
		"iss":   "curio",
		"aud":   "curio-gateway",
		"sub":   "studio-backend",
		"scope": "content:write",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing scope, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsExpiredToken(t *testing.T) {
	cfg := enabledAuthConfig()
	cfg.ClockSkew = time.Second
	auth := NewAuthenticator(cfg, nil)
	handler := auth.Middleware()(okHandler())

	token := signToken(t, jwt.MapClaims{
		"iss": "curio",
		"aud": "curio-gateway",
		"sub": "studio-backend",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/content", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", res.Code)
	}
}

func TestAuthenticatorRejectsIssuerMismatch(t *testing.T) {
	auth := NewAuthenticator(enabledAuthConfig(), nil)
	handler := auth.Middleware()(okHandler())

	token := signToken(t, jwt.MapClaims{
		"iss": "someone-else",
		"aud": "curio-gateway",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/content", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for issuer mismatch, got %d", res.Code)
	}
}

func TestAuthenticatorAllowsAnonymousOnOptionalPaths(t *testing.T) {
	cfg := enabledAuthConfig()
	cfg.AllowAnonymous = true
	cfg.OptionalPaths = []string{"/v1/catalog"}
	auth := NewAuthenticator(cfg, nil)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Subject(r.Context()) != "anonymous" {
			t.Errorf("expected anonymous subject, got %q", Subject(r.Context()))
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/catalog/content-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected anonymous access on optional path, got %d", res.Code)
	}

	// Paths outside the optional list still demand a token.
	req = httptest.NewRequest(http.MethodPost, "/v1/content", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 outside optional paths, got %d", res.Code)
	}
}
