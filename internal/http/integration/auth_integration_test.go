package integration__test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdmirek/askhub/internal/config"
	"github.com/jdmirek/askhub/internal/db"
	apphttp "github.com/jdmirek/askhub/internal/http"
	"github.com/jdmirek/askhub/internal/queue/redisclient"
)

func testConfigAuth() config.Config {
	return config.Config{
		Env:                 "test",
		Port:                0,
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		// no GeminiAPIKey: /api/ask degrades to 503, auth is unaffected
	}
}

func setupAuthTestRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping DB-backed integration test")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)

	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	mr := miniredis.RunT(t)
	queue := redisclient.New(redisclient.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = queue.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := apphttp.NewRouter(logger, pool, queue, testConfigAuth())

	return router, pool
}

func resetAuthDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE welcome_email_deliveries, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// helpers

type authEnvelope struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Data    struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(router http.Handler, method, path string, body string, headers ...[2]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, h := range headers {
		req.Header.Set(h[0], h[1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func TestAuthIntegration_Register_Login_Me(t *testing.T) {
	router, pool := setupAuthTestRouter(t)
	resetAuthDB(t, pool)

	defer resetAuthDB(t, pool)

	// register

	registerBody := `{"name":"Sam Doe","email":"Sam@Example.com","password":"password123"}`

	w := doRequest(router, http.MethodPost, "/api/auth/register", registerBody)

	if w.Code != http.StatusCreated {
		t.Fatalf("register got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var registered authEnvelope

	mustReadJSON(t, w, &registered)

	if !registered.Success {
		t.Fatalf("register expected success=true, body=%s", w.Body.String())
	}
	if strings.TrimSpace(registered.Token) == "" {
		t.Fatalf("register expected token, got empty")
	}
	if registered.Data.Email != "sam@example.com" {
		t.Fatalf("register email = %q, want lowercased %q", registered.Data.Email, "sam@example.com")
	}

	// duplicate email (different case) must conflict

	w2 := doRequest(router, http.MethodPost, "/api/auth/register", `{"name":"Other","email":"SAM@example.com","password":"password456"}`)

	if w2.Code != http.StatusConflict {
		t.Fatalf("duplicate register got status %d, want %d, body=%s", w2.Code, http.StatusConflict, w2.Body.String())
	}

	var dup apiErrorResponse
	mustReadJSON(t, w2, &dup)
	if dup.Error.Code != "email_taken" {
		t.Fatalf("duplicate register code = %q, want %q", dup.Error.Code, "email_taken")
	}

	// login with the original credentials

	w3 := doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"sam@example.com","password":"password123"}`)

	if w3.Code != http.StatusOK {
		t.Fatalf("login got status %d, want %d, body=%s", w3.Code, http.StatusOK, w3.Body.String())
	}

	var loggedIn authEnvelope
	mustReadJSON(t, w3, &loggedIn)

	if strings.TrimSpace(loggedIn.Token) == "" {
		t.Fatalf("login expected token, got empty")
	}
	if loggedIn.Data.ID != registered.Data.ID {
		t.Fatalf("login id = %q, want %q", loggedIn.Data.ID, registered.Data.ID)
	}

	// the token opens /api/auth/me

	w4 := doRequest(router, http.MethodGet, "/api/auth/me", "", [2]string{"Authorization", "Bearer " + loggedIn.Token})

	if w4.Code != http.StatusOK {
		t.Fatalf("me got status %d, want %d, body=%s", w4.Code, http.StatusOK, w4.Body.String())
	}

	var me struct {
		Success bool `json:"success"`
		Data    struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"data"`
	}
	mustReadJSON(t, w4, &me)

	if me.Data.ID != registered.Data.ID || me.Data.Email != "sam@example.com" {
		t.Fatalf("me returned wrong user: %+v", me.Data)
	}

	if strings.Contains(w4.Body.String(), "passwordHash") || strings.Contains(w4.Body.String(), "password_hash") {
		t.Fatalf("me leaked password hash: %s", w4.Body.String())
	}
}

func TestAuthIntegration_Login_InvalidCredentials(t *testing.T) {
	router, pool := setupAuthTestRouter(t)
	resetAuthDB(t, pool)
	defer resetAuthDB(t, pool)

	// no user created
	body := `{"email":"nope@example.com","password":"wrong"}`
	w := doRequest(router, http.MethodPost, "/api/auth/login", body)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login(invalid creds) got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}

	var e apiErrorResponse
	mustReadJSON(t, w, &e)
	if e.Error.Message != "Invalid credentials" {
		t.Fatalf("login(invalid creds) message = %q, want %q", e.Error.Message, "Invalid credentials")
	}
}

func TestAuthIntegration_Login_MissingFields(t *testing.T) {
	router, pool := setupAuthTestRouter(t)
	resetAuthDB(t, pool)
	defer resetAuthDB(t, pool)

	w := doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"sam@example.com"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("login(missing password) got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var e apiErrorResponse
	mustReadJSON(t, w, &e)
	if e.Error.Message != "Please provide email and password" {
		t.Fatalf("login(missing password) message = %q, want %q", e.Error.Message, "Please provide email and password")
	}
}

func TestAuthIntegration_Me_RequiresToken(t *testing.T) {
	router, pool := setupAuthTestRouter(t)
	resetAuthDB(t, pool)
	defer resetAuthDB(t, pool)

	w := doRequest(router, http.MethodGet, "/api/auth/me", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me(no token) got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}
