package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"ipgate/internal/models"
	"ipgate/internal/token"
)

func TestFunctional_AddAPIScenario(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy(true))
	seedKey(t, env, "writer-key", models.Permissions{Add: true}, "")

	w := doJSON(env, http.MethodPost, "/api/blacklist/add-api?key=writer-key", `{"ip":"10.0.0.5"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Count   int    `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success || resp.Count != 1 {
		t.Errorf("expected success with count 1, got %+v", resp)
	}

	// Repeating the call conflicts and leaves the list unchanged.
	w = doJSON(env, http.MethodPost, "/api/blacklist/add-api?key=writer-key", `{"ip":"10.0.0.5"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Success || !strings.Contains(strings.ToLower(resp.Message), "already") {
		t.Errorf("conflict body should say already blacklisted: %+v", resp)
	}
}

func TestFunctional_VerifyExpiredToken(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy(true))

	expired := token.Sign(token.Claims{Username: "admin", Role: "admin", Exp: time.Now().Add(-time.Minute).Unix()}, "test-secret")
	w := doJSON(env, http.MethodGet, "/api/auth/verify", "", map[string]string{"Authorization": "Bearer " + expired})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Valid || !strings.Contains(strings.ToLower(resp.Message), "expired") {
		t.Errorf("expected valid=false with expired message, got %+v", resp)
	}
}

func TestFunctional_LoginAndAdminFlow(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy(true))

	w := doJSON(env, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter2"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d: %s", w.Code, w.Body.String())
	}
	var login struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || !login.Success || login.Token == "" {
		t.Fatalf("bad login response: %s", w.Body.String())
	}
	bearer := map[string]string{"Authorization": "Bearer " + login.Token}

	// Verify reports the session identity.
	w = doJSON(env, http.MethodGet, "/api/auth/verify", "", bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("verify failed: %d: %s", w.Code, w.Body.String())
	}
	var verify struct {
		Valid bool `json:"valid"`
		User  struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &verify)
	if !verify.Valid || verify.User.Username != "admin" || verify.User.Role != "admin" {
		t.Errorf("unexpected verify response: %s", w.Body.String())
	}

	// Manage a key end to end.
	w = doJSON(env, http.MethodPost, "/api/apikey/create", `{"note":"ci","permissions":{"read":true}}`, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("create key failed: %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Success bool   `json:"success"`
		Key     string `json:"key"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if !created.Success || created.Key == "" {
		t.Fatalf("bad create response: %s", w.Body.String())
	}

	w = doJSON(env, http.MethodGet, "/api/apikey/list", "", bearer)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ci") {
		t.Errorf("listing should contain the new key: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(env, http.MethodPost, "/api/apikey/delete", `{"key":"`+created.Key+`"}`, bearer)
	if w.Code != http.StatusOK {
		t.Errorf("delete key failed: %d: %s", w.Code, w.Body.String())
	}

	// Blacklist CRUD over the token surface.
	w = doJSON(env, http.MethodPost, "/api/blacklist/add", `{"ip":"192.168.1.50"}`, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("blacklist add failed: %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(env, http.MethodGet, "/api/blacklist/get", "", bearer)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "192.168.1.50") {
		t.Errorf("blacklist get should contain the ip: %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(env, http.MethodPost, "/api/blacklist/remove", `{"ip":"192.168.1.51"}`, bearer)
	if w.Code != http.StatusNotFound {
		t.Errorf("removing unknown ip should 404, got %d", w.Code)
	}
	w = doJSON(env, http.MethodPost, "/api/blacklist/remove", `{"ip":"192.168.1.50"}`, bearer)
	if w.Code != http.StatusOK {
		t.Errorf("blacklist remove failed: %d: %s", w.Code, w.Body.String())
	}

	// Logs listing and cleanup.
	w = doJSON(env, http.MethodGet, "/api/logs/list?page=1&pageSize=10", "", bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("logs list failed: %d: %s", w.Code, w.Body.String())
	}
	var logsResp struct {
		Success bool `json:"success"`
		Data    struct {
			Logs       []models.LogEntry `json:"logs"`
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &logsResp)
	if !logsResp.Success || logsResp.Data.Pagination.Total == 0 {
		t.Errorf("logs listing should hold the flow's entries: %s", w.Body.String())
	}

	w = doJSON(env, http.MethodPost, "/api/logs/cleanup", `{"clearAll":true}`, bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("logs cleanup failed: %d: %s", w.Code, w.Body.String())
	}
	var cleanup struct {
		Success      bool `json:"success"`
		DeletedCount int  `json:"deletedCount"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &cleanup)
	if !cleanup.Success || cleanup.DeletedCount == 0 {
		t.Errorf("cleanup should delete entries: %s", w.Body.String())
	}
}

func TestFunctional_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy(true))

	w := doJSON(env, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "UP") {
		t.Errorf("health should report UP: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(env, http.MethodGet, "/ready", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("ready failed: %d", w.Code)
	}
}
