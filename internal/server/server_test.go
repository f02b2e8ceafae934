package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/controller"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/pkg/serverutils"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/memory"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/internal/service"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/generation"
	"ai-tutoring-be/pkg/ai/tutor"
	"ai-tutoring-be/pkg/embedding"
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/llm/mock"
	"ai-tutoring-be/pkg/vectorstore"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success   bool            `json:"success"`
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
	Retryable bool            `json:"retryable"`
	Data      json.RawMessage `json:"data"`
}

// failing mounts one route per error so the mapping can be checked end to end.
type failing map[string]error

func (f failing) RegisterRoutes(r fiber.Router) {
	for path, err := range f {
		err := err
		r.Get("/fail/"+path, func(*fiber.Ctx) error { return err })
	}
	r.Get("/fail/panic", func(*fiber.Ctx) error { panic("boom") })
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Port: "0", CorsAllowedOrigins: "*"},
		Ai: config.AIConfig{
			LLMProvider:       "ollama",
			OllamaBaseURL:     "http://localhost:11434",
			EmbeddingProvider: "hashing",
			VectorStoreURL:    "memory://",
		},
		Tuning: config.DefaultTuning(),
	}
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := app.Test(req, int((5 * time.Second).Milliseconds()))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return resp, env
}

func TestErrorMapping(t *testing.T) {
	routes := failing{
		"config":     fmt.Errorf("upload: %w", &llm.ErrConfiguration{Provider: "llm", Missing: []string{"OPENAI_API_KEY"}}),
		"ratelimit":  &llm.ErrRateLimit{RetryAfter: 12 * time.Second},
		"outage":     &llm.ErrProviderUnavailable{Provider: "openai", StatusCode: 502},
		"notfound":   fmt.Errorf("job: %w", contract.ErrNotFound),
		"transition": generation.ErrInvalidTransition,
		"ended":      tutor.ErrSessionEnded,
		"validation": &serverutils.ValidationFailure{Fields: map[string]string{"topic": "is required"}},
		"fiber":      fiber.NewError(fiber.StatusBadRequest, "invalid job id"),
		"other":      fmt.Errorf("disk on fire"),
	}
	app := newApp(testConfig(), logger.NewNopLogger(), routes)

	tests := []struct {
		path       string
		status     int
		code       string
		retryAfter string
	}{
		{"config", http.StatusServiceUnavailable, "NOT_CONFIGURED", ""},
		{"ratelimit", http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "12"},
		{"outage", http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "5"},
		{"notfound", http.StatusNotFound, "NOT_FOUND", ""},
		{"transition", http.StatusConflict, "CONFLICT", ""},
		{"ended", http.StatusConflict, "CONFLICT", ""},
		{"validation", http.StatusBadRequest, "VALIDATION_FAILED", ""},
		{"fiber", http.StatusBadRequest, "", ""},
		{"other", http.StatusInternalServerError, "INTERNAL", ""},
		{"panic", http.StatusInternalServerError, "INTERNAL", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/fail/"+tt.path, nil))

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error)
			assert.Equal(t, tt.retryAfter, resp.Header.Get(fiber.HeaderRetryAfter))
			assert.Equal(t, tt.code == "PROVIDER_UNAVAILABLE", env.Retryable)
		})
	}
}

func TestErrorMapping_NotConfiguredListsMissing(t *testing.T) {
	app := newApp(testConfig(), logger.NewNopLogger(), failing{
		"config": &llm.ErrConfiguration{Provider: "retrieval", Missing: []string{"VECTOR_STORE_URL"}},
	})

	_, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/fail/config", nil))

	var data struct {
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, []string{"VECTOR_STORE_URL"}, data.Missing)
}

func TestUnknownRouteIs404(t *testing.T) {
	app := newApp(testConfig(), logger.NewNopLogger())

	resp, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestHealth(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		cfg := testConfig()
		app := newApp(cfg, logger.NewNopLogger(), controller.NewHealthController(cfg))

		resp, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"ok","ready":true,"missing":[],"llm_provider":"ollama","vector_store":"memory"}`, string(env.Data))
	})

	t.Run("degraded still answers 200", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ai.LLMProvider = "openai"
		cfg.Ai.VectorStoreURL = ""
		app := newApp(cfg, logger.NewNopLogger(), controller.NewHealthController(cfg))

		resp, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var data struct {
			Status  string   `json:"status"`
			Ready   bool     `json:"ready"`
			Missing []string `json:"missing"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "degraded", data.Status)
		assert.False(t, data.Ready)
		assert.ElementsMatch(t, []string{"OPENAI_API_KEY", "VECTOR_STORE_URL"}, data.Missing)
	})
}

func newTutorApp(t *testing.T, provider llm.LLMProvider, providerErr error, secret string) *fiber.App {
	t.Helper()
	log := logger.NewNopLogger()
	tuning := config.DefaultTuning()

	model := gateway.NewModelGateway(provider, providerErr, gateway.RetryPolicy{MaxAttempts: 1}, 0, log)
	retrieval := gateway.NewRetrievalGateway(vectorstore.NewMemoryStore(), embedding.NewHashingProvider(64), nil,
		gateway.RetrievalOptions{MinScore: -1}, log)
	factory := unitofwork.NewMemoryRepositoryFactory(memory.NewStore())
	svc := service.NewTutorService(factory, tutor.NewEngine(model, retrieval, tuning, log), model, nil, log)

	return newApp(testConfig(), log, controller.NewTutorController(svc, serverutils.NewJwtMiddleware(secret)))
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func TestTutorRoutes(t *testing.T) {
	provider := mock.NewProvider(mock.Reply{Content: `{"reply":"What does a loop repeat?","understanding":0.2}`})
	app := newTutorApp(t, provider, nil, "")

	resp, env := do(t, app, post("/api/tutor/session/start", `{"student_id":"s-1","activity_id":"loops-1"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var started struct {
		SessionId string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &started))
	require.NotEmpty(t, started.SessionId)

	resp, env = do(t, app, post("/api/tutor/session/message",
		fmt.Sprintf(`{"session_id":%q,"message":"how do I loop over a list?"}`, started.SessionId)))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var turn struct {
		Reply     string `json:"reply"`
		TurnIndex int    `json:"turn_index"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &turn))
	assert.Contains(t, turn.Reply, "?")
	assert.Equal(t, 0, turn.TurnIndex)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/tutor/session/"+started.SessionId, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTutorRoutes_ValidationAndConfig(t *testing.T) {
	t.Run("missing message", func(t *testing.T) {
		app := newTutorApp(t, mock.NewProvider(), nil, "")

		resp, env := do(t, app, post("/api/tutor/session/message", `{"session_id":"7d9f0c6e-3b1a-4c2d-9e8f-1a2b3c4d5e6f"}`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_FAILED", env.Error)
	})

	t.Run("no provider", func(t *testing.T) {
		app := newTutorApp(t, nil, &llm.ErrConfiguration{Provider: "openai", Missing: []string{"OPENAI_API_KEY"}}, "")

		resp, env := do(t, app, post("/api/tutor/session/message", `{"session_id":"7d9f0c6e-3b1a-4c2d-9e8f-1a2b3c4d5e6f","message":"hi"}`))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "NOT_CONFIGURED", env.Error)
	})

	t.Run("guarded without token", func(t *testing.T) {
		app := newTutorApp(t, mock.NewProvider(), nil, "secret")

		resp, _ := do(t, app, post("/api/tutor/session/start", `{"activity_id":"loops-1"}`))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
