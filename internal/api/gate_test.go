package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ipgate/internal/models"
	"ipgate/internal/service"
	"ipgate/internal/token"
)

func seedKey(t *testing.T, env *testEnv, key string, perms models.Permissions, expiry string) {
	t.Helper()
	_, err := env.keys.Create(context.Background(), service.CreateParams{
		Key:         key,
		Note:        "test",
		Permissions: &perms,
		ExpiryDate:  expiry,
	})
	if err != nil {
		t.Fatalf("failed to seed api key: %v", err)
	}
}

func doJSON(env *testEnv, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func countLogs(t *testing.T, env *testEnv) int {
	t.Helper()
	keys, err := env.repo.ListLogKeys(context.Background())
	if err != nil {
		t.Fatalf("ListLogKeys failed: %v", err)
	}
	return len(keys)
}

func TestGate_APIKeyFlow(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy(true))
	seedKey(t, env, "read-key", models.Permissions{Read: true}, "")

	t.Run("missing key denied", func(t *testing.T) {
		before := countLogs(t, env)
		w := doJSON(env, http.MethodGet, "/api/blacklist/check-api?ip=1.2.3.4", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d: %s", w.Code, w.Body.String())
		}
		if countLogs(t, env) != before+1 {
			t.Error("deny should write exactly one log entry")
		}
	})

	t.Run("unknown key denied", func(t *testing.T) {
		w := doJSON(env, http.MethodGet, "/api/blacklist/check-api?key=ghost&ip=1.2.3.4", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("insufficient permission denied with 403", func(t *testing.T) {
		w := doJSON(env, http.MethodPost, "/api/blacklist/add-api?key=read-key", `{"ip":"1.2.3.4"}`, nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("expired key denied with 401", func(t *testing.T) {
		past := time.Now().Add(-24 * time.Hour).Format(time.RFC3339)
		seedKey(t, env, "stale-key", models.Permissions{Read: true}, past)
		w := doJSON(env, http.MethodGet, "/api/blacklist/check-api?key=stale-key&ip=1.2.3.4", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d: %s", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if msg, _ := resp["message"].(string); !strings.Contains(strings.ToLower(msg), "expired") {
			t.Errorf("message should mention expiry: %v", resp)
		}
	})

	t.Run("valid key granted", func(t *testing.T) {
		before := countLogs(t, env)
		w := doJSON(env, http.MethodGet, "/api/blacklist/check-api?key=read-key&ip=1.2.3.4", "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		// One entry for the grant, one for the check itself.
		if countLogs(t, env) != before+2 {
			t.Error("grant plus handler should write two log entries")
		}
	})

	t.Run("key accepted from body field", func(t *testing.T) {
		w := doJSON(env, http.MethodPost, "/api/blacklist/check-api", `{"key":"read-key","ip":"1.2.3.4"}`, nil)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("oversized body rejected with 413", func(t *testing.T) {
		padding := strings.Repeat("x", maxPeekBody)
		body := `{"key":"read-key","ip":"1.2.3.4","padding":"` + padding + `"}`
		w := doJSON(env, http.MethodPost, "/api/blacklist/check-api", body, nil)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestGate_TokenFlow(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy(true))

	t.Run("missing token denied", func(t *testing.T) {
		w := doJSON(env, http.MethodGet, "/api/apikey/list", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("expired token reports expiry", func(t *testing.T) {
		expired := token.Sign(token.Claims{Username: "admin", Role: "admin", Exp: time.Now().Add(-time.Second).Unix()}, "test-secret")
		w := doJSON(env, http.MethodGet, "/api/apikey/list", "", map[string]string{"Authorization": "Bearer " + expired})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
		if !strings.Contains(strings.ToLower(w.Body.String()), "expired") {
			t.Errorf("body should mention expiry: %s", w.Body.String())
		}
	})

	t.Run("tampered token gets generic message", func(t *testing.T) {
		forged := token.Sign(token.Claims{Username: "admin", Role: "admin", Exp: time.Now().Add(time.Hour).Unix()}, "wrong-secret")
		w := doJSON(env, http.MethodGet, "/api/apikey/list", "", map[string]string{"Authorization": "Bearer " + forged})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
		body := strings.ToLower(w.Body.String())
		if !strings.Contains(body, "invalid token") || strings.Contains(body, "signature") {
			t.Errorf("body should be generic: %s", w.Body.String())
		}
	})

	t.Run("valid token granted", func(t *testing.T) {
		tok, err := env.auth.Login("admin", "hunter2")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		w := doJSON(env, http.MethodGet, "/api/apikey/list", "", map[string]string{"Authorization": "Bearer " + tok})
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("oversized body rejected before token check", func(t *testing.T) {
		tok, err := env.auth.Login("admin", "hunter2")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		body := `{"ip":"1.2.3.4","padding":"` + strings.Repeat("x", maxPeekBody) + `"}`
		w := doJSON(env, http.MethodPost, "/api/blacklist/add", body, map[string]string{"Authorization": "Bearer " + tok})
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestGate_Classification(t *testing.T) {
	t.Run("api key class wins over public", func(t *testing.T) {
		policy := DefaultPolicy(true)
		policy.PublicPaths["/api/blacklist/check-api"] = true
		env := newTestEnv(t, policy)

		w := doJSON(env, http.MethodGet, "/api/blacklist/check-api?ip=1.2.3.4", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("api key classification should win, got %d", w.Code)
		}
	})

	t.Run("fail open forwards unclassified", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy(true))
		before := countLogs(t, env)
		w := doJSON(env, http.MethodGet, "/some/static/asset", "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("fail-open should reach the 404 handler, got %d", w.Code)
		}
		if countLogs(t, env) != before {
			t.Error("fail-open forward should not write a log entry")
		}
	})

	t.Run("default deny blocks unclassified", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy(false))
		w := doJSON(env, http.MethodGet, "/some/static/asset", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("default-deny should return 401, got %d", w.Code)
		}
	})

	t.Run("preflight short circuits without log", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy(true))
		before := countLogs(t, env)
		w := doJSON(env, http.MethodOptions, "/api/blacklist/add", "", nil)
		if w.Code != http.StatusNoContent {
			t.Errorf("expected 204 for preflight, got %d", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") == "" {
			t.Error("preflight should carry CORS headers")
		}
		if countLogs(t, env) != before {
			t.Error("preflight should not write a log entry")
		}
	})
}
