package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"vibecode.dev/vibe-code/internal/core"
	"vibecode.dev/vibe-code/internal/ratelimit"
	"vibecode.dev/vibe-code/internal/store"
)

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, store.Category) (string, error) {
	return "", errors.New("upstream exploded")
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func newTestRouter(t *testing.T, gen core.Generator, mutate func(*RouterConfig)) http.Handler {
	t.Helper()
	svc := core.NewResponseService(store.NewMemoryStore(), gen, zap.NewNop())
	h := NewAPIHandler(svc, ServerInfo{Environment: "development", Mode: "ai=mock storage=memory"}, zap.NewNop())

	cfg := RouterConfig{
		CORSOrigin:    "http://localhost:3000",
		Development:   true,
		GenerateLimit: ratelimit.Tier{Name: "generate", Requests: 100, Window: time.Minute},
		GeneralLimit:  ratelimit.Tier{Name: "general", Requests: 100, Window: time.Minute},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(h, cfg, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env testEnvelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode body %q: %v", rr.Body.String(), err)
		}
	}
	return rr, env
}

func TestHealthHandler(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)

	rr, _ := do(t, router, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Message != "Vibe Code API is running" || body.Environment != "development" {
		t.Fatalf("unexpected health body: %+v", body)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Fatalf("timestamp not ISO formatted: %q", body.Timestamp)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Fatal("expected secure headers on every response")
	}
}

func TestStrictTransportSecurityOutsideDevelopment(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)
	rr, _ := do(t, router, http.MethodGet, "/api/health", "")
	if got := rr.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("development responses should not pin HTTPS, got %q", got)
	}

	router = newTestRouter(t, core.MockGenerator{}, func(cfg *RouterConfig) { cfg.Development = false })
	rr, _ = do(t, router, http.MethodGet, "/api/health", "")
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains" {
		t.Fatalf("unexpected Strict-Transport-Security %q", got)
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("missing hardening headers: %v", rr.Header())
	}
}

func TestGenerateHandlerSuccess(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)

	rr, env := do(t, router, http.MethodPost, "/api/ai/generate", `{"prompt":"Write a haiku","category":"writing"}`)
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected success, got %d %s", rr.Code, rr.Body.String())
	}
	if env.Message != "AI response generated successfully" {
		t.Fatalf("unexpected message %q", env.Message)
	}

	var rec store.GeneratedResponse
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	want := `This is a mock AI response for category "writing". In production with a valid Gemini API key, this would be: "Write a haiku"`
	if rec.Response != want {
		t.Fatalf("unexpected response %q", rec.Response)
	}
	if rec.ID == "" || rec.UserID != store.AnonymousUserID || rec.Category != store.CategoryWriting {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGenerateHandlerErrors(t *testing.T) {
	tests := []struct {
		name    string
		gen     core.Generator
		body    string
		status  int
		errMsg  string
		message string
	}{
		{"empty body", core.MockGenerator{}, "", http.StatusBadRequest, "Prompt and category are required", ""},
		{"missing category", core.MockGenerator{}, `{"prompt":"hi"}`, http.StatusBadRequest, "Prompt and category are required", ""},
		{"too long", core.MockGenerator{}, `{"prompt":"` + strings.Repeat("x", 1001) + `","category":"code"}`, http.StatusBadRequest, "Prompt is too long (max 1000 characters)", ""},
		{"invalid json", core.MockGenerator{}, `{"prompt":`, http.StatusBadRequest, "Invalid request body", ""},
		{"not configured", core.UnavailableGenerator{}, `{"prompt":"hi","category":"code"}`, http.StatusServiceUnavailable,
			"Gemini API key not configured", "AI features are currently disabled. Please configure GEMINI_API_KEY."},
		{"upstream failure", failingGenerator{}, `{"prompt":"hi","category":"code"}`, http.StatusInternalServerError, "Failed to generate AI response", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.gen, nil)
			rr, env := do(t, router, http.MethodPost, "/api/ai/generate", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if env.Success || env.Error != tt.errMsg || env.Message != tt.message {
				t.Fatalf("unexpected envelope: %+v", env)
			}
			if strings.Contains(rr.Body.String(), "upstream exploded") {
				t.Fatal("internal cause leaked to client")
			}
		})
	}
}

func TestSaveThenHistoryAndGet(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)

	body := `{"id":"rec-1","prompt":"p","response":"r","category":"music","created_at":"2024-05-01T10:00:00.000Z"}`
	rr, env := do(t, router, http.MethodPost, "/api/ai/save", body)
	if rr.Code != http.StatusOK || env.Message != "AI response saved successfully" {
		t.Fatalf("save failed: %d %s", rr.Code, rr.Body.String())
	}

	rr, env = do(t, router, http.MethodGet, "/api/ai/history?limit=abc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("history failed: %d %s", rr.Code, rr.Body.String())
	}
	var records []store.GeneratedResponse
	if err := json.Unmarshal(env.Data, &records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(records) != 1 || records[0].ID != "rec-1" || records[0].UserID != store.AnonymousUserID {
		t.Fatalf("unexpected history: %+v", records)
	}
	if !records[0].CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at not kept: %v", records[0].CreatedAt)
	}

	rr, _ = do(t, router, http.MethodGet, "/api/ai/history/rec-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get failed: %d %s", rr.Code, rr.Body.String())
	}
	rr, env = do(t, router, http.MethodGet, "/api/ai/history/missing", "")
	if rr.Code != http.StatusNotFound || env.Error != "Response not found" {
		t.Fatalf("expected 404, got %d %+v", rr.Code, env)
	}
}

func TestHistoryEmpty(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)

	rr, env := do(t, router, http.MethodGet, "/api/ai/history", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if string(env.Data) != "[]" {
		t.Fatalf("expected empty list, got %s", env.Data)
	}
}

func TestSaveHandlerErrors(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)
	valid := `{"id":"dup","prompt":"p","response":"r","category":"code"}`

	rr, env := do(t, router, http.MethodPost, "/api/ai/save", `{"id":"x","prompt":"p"}`)
	if rr.Code != http.StatusBadRequest || env.Error != "Missing required fields" {
		t.Fatalf("expected missing fields, got %d %+v", rr.Code, env)
	}

	rr, env = do(t, router, http.MethodPost, "/api/ai/save",
		`{"id":"x","prompt":"p","response":"r","category":"code","created_at":"yesterday"}`)
	if rr.Code != http.StatusBadRequest || env.Error != "Invalid created_at timestamp" {
		t.Fatalf("expected bad timestamp, got %d %+v", rr.Code, env)
	}

	if rr, _ = do(t, router, http.MethodPost, "/api/ai/save", valid); rr.Code != http.StatusOK {
		t.Fatalf("first save failed: %d", rr.Code)
	}
	rr, env = do(t, router, http.MethodPost, "/api/ai/save", valid)
	if rr.Code != http.StatusConflict || env.Error != "Response with this id already exists" {
		t.Fatalf("expected conflict, got %d %+v", rr.Code, env)
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)

	rr, env := do(t, router, http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound || env.Error != "Route /api/nope not found" {
		t.Fatalf("unexpected not found response: %d %+v", rr.Code, env)
	}

	rr, env = do(t, router, http.MethodDelete, "/api/ai/history", "")
	if rr.Code != http.StatusMethodNotAllowed || env.Success {
		t.Fatalf("expected 405 envelope, got %d %+v", rr.Code, env)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, func(cfg *RouterConfig) {
		cfg.GenerateLimit = ratelimit.Tier{Name: "generate", Requests: 1, Window: time.Minute}
	})
	body := `{"prompt":"hi","category":"code"}`

	rr, _ := do(t, router, http.MethodPost, "/api/ai/generate", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rr.Code)
	}
	if rr.Header().Get("RateLimit-Limit") != "1" || rr.Header().Get("RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected rate limit headers: %v", rr.Header())
	}

	rr, env := do(t, router, http.MethodPost, "/api/ai/generate", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if env.Error != "Too many requests from this IP, please try again later." {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// The general tier keeps its own budget.
	if rr, _ := do(t, router, http.MethodGet, "/api/ai/history", ""); rr.Code != http.StatusOK {
		t.Fatalf("history should not share the generate budget, got %d", rr.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, func(cfg *RouterConfig) {
		cfg.MaxBodyBytes = 16
	})

	rr, env := do(t, router, http.MethodPost, "/api/ai/generate", `{"prompt":"a long enough prompt","category":"code"}`)
	if rr.Code != http.StatusRequestEntityTooLarge || env.Error != "Request body too large" {
		t.Fatalf("expected 413, got %d %+v", rr.Code, env)
	}
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr, env := do(t, h, http.MethodGet, "/", "")
	if rr.Code != http.StatusInternalServerError || env.Error != "Internal server error" {
		t.Fatalf("unexpected recovery response: %d %+v", rr.Code, env)
	}
	if strings.Contains(rr.Body.String(), "boom") {
		t.Fatal("panic value leaked to client")
	}
}

func TestRecovererKeepsStartedResponse(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status should stay as written, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "Internal server error") {
		t.Fatalf("no envelope may follow a started response, got %q", rr.Body.String())
	}
}

func TestWelcomeOnlyInDevelopment(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)
	rr, env := do(t, router, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK || env.Message != "Welcome to Vibe Code API" {
		t.Fatalf("unexpected welcome: %d %+v", rr.Code, env)
	}

	router = newTestRouter(t, core.MockGenerator{}, func(cfg *RouterConfig) { cfg.Development = false })
	if rr, _ := do(t, router, http.MethodGet, "/", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside development, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, core.MockGenerator{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/ai/generate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed")
	}
}

func TestStaticClientFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	router := newTestRouter(t, core.MockGenerator{}, func(cfg *RouterConfig) {
		cfg.Development = false
		cfg.StaticDir = dir
	})

	rr, _ := do(t, router, http.MethodGet, "/app.js", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "console.log") {
		t.Fatalf("expected asset, got %d %q", rr.Code, rr.Body.String())
	}

	rr, _ = do(t, router, http.MethodGet, "/history/view", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "app") {
		t.Fatalf("expected index fallback, got %d %q", rr.Code, rr.Body.String())
	}

	rr, env := do(t, router, http.MethodGet, "/api/unknown", "")
	if rr.Code != http.StatusNotFound || env.Error != "Route /api/unknown not found" {
		t.Fatalf("api paths must not fall back to the client: %d %+v", rr.Code, env)
	}
}
