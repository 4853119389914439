package policy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/password-policy/internal/middleware"
	"github.com/jwalitptl/password-policy/internal/policy"
	policyService "github.com/jwalitptl/password-policy/internal/service/policy"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*gin.Engine, *policy.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := policy.New()
	svc := policyService.NewService(engine, nil, nil, nil, policyService.Config{InstanceID: "test"})
	h := NewHandler(svc)

	r := gin.New()
	r.Use(middleware.ErrorHandler(), middleware.Validation(middleware.DefaultValidationConfig()))
	api := r.Group("/api/v1")
	h.RegisterRoutes(api)
	h.RegisterAdminRoutes(api)
	return r, engine
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestValidatePassword(t *testing.T) {
	r, _ := setup(t)

	tests := []struct {
		name      string
		password  string
		wantValid bool
		wantRules []policy.RuleKey
	}{
		{
			name:      "valid",
			password:  "Abcdef12",
			wantValid: true,
			wantRules: []policy.RuleKey{},
		},
		{
			name:      "short lowercase",
			password:  "abc",
			wantRules: []policy.RuleKey{policy.RuleMinLength, policy.RuleUppercase, policy.RuleDigits},
		},
		{
			name:      "empty",
			password:  "",
			wantRules: []policy.RuleKey{policy.RuleMinLength, policy.RuleUppercase, policy.RuleLowercase, policy.RuleDigits},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"password": tt.password})
			w := do(r, http.MethodPost, "/api/v1/passwords/validate", string(body))
			require.Equal(t, http.StatusOK, w.Code)

			var resp ValidateResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.wantValid, resp.Valid)

			rules := make([]policy.RuleKey, 0, len(resp.Violations))
			for _, v := range resp.Violations {
				rules = append(rules, v.Rule)
			}
			assert.Equal(t, tt.wantRules, rules)
			assert.Len(t, resp.Messages, len(tt.wantRules))
		})
	}
}

func TestValidatePasswordMessages(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodPost, "/api/v1/passwords/validate", `{"password":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ValidateResponse
	decode(t, w, &resp)
	assert.Equal(t, []string{
		"Password must be at least 8 characters long.",
		"Password must contain at least one uppercase letter.",
		"Password must contain at least one digit.",
	}, resp.Messages)
}

func TestValidatePasswordMissingField(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodPost, "/api/v1/passwords/validate", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"password"`)

	w = do(r, http.MethodPost, "/api/v1/passwords/validate", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPolicy(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodGet, "/api/v1/policy", "")
	require.Equal(t, http.StatusOK, w.Code)

	var cfg policy.Config
	decode(t, w, &cfg)
	assert.Equal(t, policy.DefaultConfig(), cfg)
}

func TestGetMessage(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodGet, "/api/v1/policy/messages/password_history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var msg MessageResponse
	decode(t, w, &msg)
	assert.Equal(t, policy.RulePasswordHistory, msg.Rule)
	assert.Equal(t, "Cannot reuse one of your last 5 passwords.", msg.Message)

	w = do(r, http.MethodGet, "/api/v1/policy/messages/shoe_size", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown policy rule")
}

func TestUpdatePolicy(t *testing.T) {
	r, engine := setup(t)

	w := do(r, http.MethodPut, "/api/v1/policy", `{"minimum_length":4,"maximum_length":10,"require_uppercase":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	cfg := engine.Config()
	assert.Equal(t, 4, cfg.MinimumLength)
	assert.Equal(t, 10, cfg.MaximumLength)
	assert.False(t, cfg.RequireUppercase)
	// Omitted fields fall back to defaults.
	assert.True(t, cfg.RequireLowercase)
	assert.Equal(t, policy.DefaultSpecialCharacters, cfg.SpecialCharacters)
}

func TestUpdatePolicyRejectsInvertedBounds(t *testing.T) {
	r, engine := setup(t)

	w := do(r, http.MethodPut, "/api/v1/policy", `{"minimum_length":20,"maximum_length":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "minimum_length")
	assert.Equal(t, policy.DefaultConfig(), engine.Config())
}

func TestPatchPolicy(t *testing.T) {
	r, engine := setup(t)

	w := do(r, http.MethodPatch, "/api/v1/policy", `{"require_special_chars":true,"special_characters":"#"}`)
	require.Equal(t, http.StatusOK, w.Code)

	cfg := engine.Config()
	assert.True(t, cfg.RequireSpecialChars)
	assert.Equal(t, "#", cfg.SpecialCharacters)
	assert.Equal(t, 8, cfg.MinimumLength)

	assert.True(t, engine.Validate("Abcdef1#").Valid())
	assert.False(t, engine.Validate("Abcdef1!").Valid())
}

func TestSetMessages(t *testing.T) {
	r, engine := setup(t)

	w := do(r, http.MethodPut, "/api/v1/policy/messages", `{"messages":{"uppercase":"Need a capital letter."}}`)
	require.Equal(t, http.StatusOK, w.Code)

	result := engine.Validate("abcdefg1")
	assert.Equal(t, []string{"Need a capital letter."}, result.Messages())

	w = do(r, http.MethodPut, "/api/v1/policy/messages", `{"messages":{"shoe_size":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOversizedChunkedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := policyService.NewService(policy.New(), nil, nil, nil, policyService.Config{})
	h := NewHandler(svc)

	r := gin.New()
	r.Use(
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: 32, ErrorMessage: "too big"}),
	)
	h.RegisterRoutes(r.Group("/api/v1"))

	body := `{"password":"` + strings.Repeat("a", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/passwords/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	// Unknown length, as with chunked transfer encoding.
	req.ContentLength = -1

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request body exceeds 32 bytes")
}
