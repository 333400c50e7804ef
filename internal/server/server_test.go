package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-console/internal/config"
	"github.com/nulzo/prism-console/internal/store/memory"
	"github.com/nulzo/prism-console/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, keys ...string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test", APIKeys: keys},
	}
	return New(cfg, memory.New(), zap.NewNop(), "1.2.0").Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) api.Response[T] {
	t.Helper()
	var out api.Response[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, "secret")

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, "secret")

	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, decode[any](t, w).Success)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[api.Status](t, rec)
	assert.True(t, status.Success)
	assert.Equal(t, "1.2.0", status.Data.Version)
	assert.True(t, status.Data.ServerRunning)
}

func TestProviders(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v2/providers", map[string]interface{}{
		"name":     "OpenAI",
		"api_base": "https://api.openai.com",
		"token":    "sk-1234567890abcdef",
		"models":   []string{"gpt-4", "gpt-4o"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[api.Provider](t, w).Data
	assert.NotEmpty(t, created.UUID)
	assert.Equal(t, "openai", created.APIStyle)
	assert.True(t, created.Enabled)

	list := decode[[]api.Provider](t, do(t, h, http.MethodGet, "/api/v2/providers", nil)).Data
	require.Len(t, list, 1)
	assert.Equal(t, "sk-1****cdef", list[0].Token)

	w = do(t, h, http.MethodPost, "/api/v2/providers", map[string]interface{}{"api_style": "gemini"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[any](t, w).Error, "name")

	w = do(t, h, http.MethodDelete, "/api/v2/providers/"+created.UUID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v2/providers/"+created.UUID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProviderModels(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/v2/providers", map[string]interface{}{
		"uuid": "p1", "name": "OpenAI", "models": []string{"gpt-4"},
	})

	// never probed
	w := do(t, h, http.MethodGet, "/api/v1/provider-models/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[api.ProviderModels](t, w).Data.Models)

	w = do(t, h, http.MethodPost, "/api/v1/provider-models/p1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refreshed := decode[api.ProviderModels](t, w).Data
	assert.Equal(t, []string{"gpt-4"}, refreshed.Models)
	assert.NotEmpty(t, refreshed.LastUpdated)

	w = do(t, h, http.MethodGet, "/api/v1/provider-models/p1", nil)
	assert.Equal(t, []string{"gpt-4"}, decode[api.ProviderModels](t, w).Data.Models)

	w = do(t, h, http.MethodGet, "/api/v1/provider-models/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProviderModels_Disabled(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/v2/providers", map[string]interface{}{
		"uuid": "p1", "name": "OpenAI", "enabled": false,
	})

	w := do(t, h, http.MethodPost, "/api/v1/provider-models/p1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "provider is disabled", decode[any](t, w).Error)
}

func TestRules(t *testing.T) {
	h := newTestServer(t)

	rule := map[string]interface{}{
		"uuid":          "tmp-1",
		"scenario":      "openai",
		"request_model": "gpt-x",
		"services": []map[string]interface{}{
			{"provider": "p1", "model": "gpt-4", "weight": 1},
		},
	}

	w := do(t, h, http.MethodPost, "/api/v1/rule", rule)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[api.CreateRuleResult](t, w).Data
	assert.Equal(t, "tmp-1", created.UUID)
	assert.True(t, created.Active)

	got := decode[api.Rule](t, do(t, h, http.MethodGet, "/api/v1/rule/tmp-1", nil)).Data
	require.Len(t, got.Services, 1)
	assert.True(t, got.Services[0].Active)

	// duplicate request model in the same scenario
	rule["uuid"] = "tmp-2"
	w = do(t, h, http.MethodPost, "/api/v1/rule", rule)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "rule with request model gpt-x already exists", decode[any](t, w).Error)

	// request models are unique across scenarios too
	rule["scenario"] = "anthropic"
	w = do(t, h, http.MethodPost, "/api/v1/rule", rule)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "rule with request model gpt-x already exists", decode[any](t, w).Error)

	rule["request_model"] = "claude-x"
	w = do(t, h, http.MethodPost, "/api/v1/rule", rule)
	assert.Equal(t, http.StatusOK, w.Code)

	list := decode[[]api.Rule](t, do(t, h, http.MethodGet, "/api/v1/rules?scenario=openai", nil)).Data
	assert.Len(t, list, 1)
	all := decode[[]api.Rule](t, do(t, h, http.MethodGet, "/api/v1/rules", nil)).Data
	assert.Len(t, all, 2)

	w = do(t, h, http.MethodPost, "/api/v1/rule/tmp-1", map[string]interface{}{
		"scenario": "openai", "request_model": "gpt-y",
	})
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[api.Rule](t, do(t, h, http.MethodGet, "/api/v1/rule/tmp-1", nil)).Data
	assert.Equal(t, "gpt-y", got.RequestModel)

	w = do(t, h, http.MethodDelete, "/api/v1/rule/tmp-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, "/api/v1/rule/tmp-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRules_KeepsRoutingSettings(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/rule/r1", map[string]interface{}{
		"scenario":      "openai",
		"request_model": "gpt-x",
		"lb_tactic":     map[string]interface{}{"type": "weighted", "retries": 2},
		"smart_enabled": true,
		"smart_routing": map[string]interface{}{"strategy": "latency"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/v1/rule/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.Rule](t, w).Data
	assert.JSONEq(t, `{"type":"weighted","retries":2}`, string(got.LBTactic))
	assert.True(t, got.SmartEnabled)
	assert.JSONEq(t, `{"strategy":"latency"}`, string(got.SmartRouting))
}

func TestRules_UpdateCreatesUnknown(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/rule/fresh", map[string]interface{}{
		"scenario": "openai", "request_model": "gpt-x",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", decode[api.CreateRuleResult](t, w).Data.UUID)
}

func TestRules_Validation(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/rule", map[string]interface{}{"scenario": "openai"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[any](t, w).Error, "request_model")

	w = do(t, h, http.MethodPost, "/api/v1/rule", map[string]interface{}{
		"request_model": "gpt-x",
		"services":      []map[string]interface{}{{"provider": "p1"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuardrails(t *testing.T) {
	h := newTestServer(t)

	rule := map[string]interface{}{
		"id": "block-rm", "name": "Block rm", "type": "text_match",
		"params": map[string]interface{}{"patterns": []string{"rm -rf"}},
	}

	w := do(t, h, http.MethodPost, "/api/v1/guardrails/rules", rule)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "block-rm", decode[api.GuardrailRuleResult](t, w).Data.RuleID)

	w = do(t, h, http.MethodPost, "/api/v1/guardrails/rules", rule)
	assert.Equal(t, http.StatusConflict, w.Code)

	rule["name"] = "Block destructive commands"
	w = do(t, h, http.MethodPut, "/api/v1/guardrails/rules/block-rm", rule)
	require.Equal(t, http.StatusOK, w.Code)

	list := decode[[]api.GuardrailRule](t, do(t, h, http.MethodGet, "/api/v1/guardrails/rules", nil)).Data
	require.Len(t, list, 1)
	assert.Equal(t, "Block destructive commands", list[0].Name)

	w = do(t, h, http.MethodPut, "/api/v1/guardrails/rules/missing", rule)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/guardrails/rules", map[string]interface{}{"id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
