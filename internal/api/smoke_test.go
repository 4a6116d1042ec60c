// Package api_test exercises the router at the HTTP level with
// net/http/httptest. No database is needed: these tests cover routing,
// request validation, the auth middleware, the response envelope, and CORS.
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taasclub/cardbet/internal/api"
	"github.com/taasclub/cardbet/internal/config"
	"github.com/taasclub/cardbet/internal/service"
)

const betPayload = `{"round_id":"20260314120000","lines":[{"card_number":3,"bet_amount":"100.00"}]}`

// newTestRouter builds the engine with a real AuthService (token parsing only
// needs the secrets, not a DB) and nil for every DB-backed service.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Env:            "development",
			Port:           "8080",
			RequestTimeout: 15 * time.Second,
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-abcdefghijklmnop",
			RefreshSecret: "test-refresh-secret-abcdefghijklmnop",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
		},
	}
	return api.SetupRouter(api.RouterDeps{
		AuthSvc: service.NewAuthService(nil, nil, nil, cfg),
		Cfg:     cfg,
	})
}

func doReq(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("response is not valid JSON: %v — body: %s", err, rr.Body.String())
	}
	return m
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t)
	if rr := doReq(t, h, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

func TestAuthValidation(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		name string
		path string
		body string
	}{
		{"register empty body", "/api/auth/register", `{}`},
		{"register invalid email", "/api/auth/register", `{"username":"testuser","email":"notanemail","password":"password123"}`},
		{"register short password", "/api/auth/register", `{"username":"testuser","email":"user@example.com","password":"short"}`},
		{"login empty body", "/api/auth/login", `{}`},
		{"refresh empty body", "/api/auth/refresh", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doReq(t, h, http.MethodPost, tc.path, tc.body, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("POST %s = %d, want 400", tc.path, rr.Code)
			}
		})
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	h := newTestRouter(t)
	// Header+payload of a real JWT signed with the wrong secret.
	badJWT := "Bearer eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9" +
		".eyJzdWIiOiIxMjM0NTY3ODkwIiwicm9sZSI6InVzZXIiLCJ0eXBlIjoiYWNjZXNzIn0" +
		".BADSIG"

	routes := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/me", ""},
		{http.MethodGet, "/api/bets/my", ""},
		{http.MethodPost, "/api/bets", betPayload},
		{http.MethodPost, "/api/bets/123456789012/claim", ""},
		{http.MethodPost, "/api/bets/123456789012/cancel", ""},
		{http.MethodGet, "/api/wallet/balance", ""},
		{http.MethodGet, "/api/wallet/transactions", ""},
	}
	for _, rt := range routes {
		t.Run("no token "+rt.method+" "+rt.path, func(t *testing.T) {
			rr := doReq(t, h, rt.method, rt.path, rt.body, nil)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("%s %s without token = %d, want 401", rt.method, rt.path, rr.Code)
			}
		})
		t.Run("bad token "+rt.method+" "+rt.path, func(t *testing.T) {
			rr := doReq(t, h, rt.method, rt.path, rt.body, map[string]string{"Authorization": badJWT})
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("%s %s with bad JWT = %d, want 401", rt.method, rt.path, rr.Code)
			}
		})
	}
}

func TestRoundEndpoints_ArePublic(t *testing.T) {
	h := newTestRouter(t)
	// No token must not mean 401 here. The nil game service behind the route
	// makes a 500 acceptable.
	for _, path := range []string{"/api/games/current", "/api/games/previous"} {
		if rr := doReq(t, h, http.MethodGet, path, "", nil); rr.Code == http.StatusUnauthorized {
			t.Errorf("GET %s should be public, got 401", path)
		}
	}
}

func TestErrorEnvelope_HasRequiredFields(t *testing.T) {
	h := newTestRouter(t)
	body := decodeBody(t, doReq(t, h, http.MethodPost, "/api/auth/register", `{}`, nil))

	for _, field := range []string{"success", "error", "code"} {
		if _, ok := body[field]; !ok {
			t.Errorf("error envelope missing field %q, got: %v", field, body)
		}
	}
	if body["success"] != false {
		t.Errorf("error envelope.success = %v, want false", body["success"])
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Errorf("OPTIONS /api/auth/login = %d, want 204 or 200", rr.Code)
	}
	if allow := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(allow, "POST") {
		t.Errorf("Access-Control-Allow-Methods missing POST, got %q", allow)
	}
	headers := rr.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(headers, "Idempotency-Key") {
		t.Errorf("Access-Control-Allow-Headers missing Idempotency-Key, got %q", headers)
	}
}

func TestCORSAllowOrigin_Dev(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("dev CORS origin = %q, want *", origin)
	}
}
