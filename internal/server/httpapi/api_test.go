package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/codementor-ai/auth-service/internal/logging"
	"github.com/codementor-ai/auth-service/internal/server/config"
	"github.com/codementor-ai/auth-service/internal/server/metrics"
	"github.com/codementor-ai/auth-service/internal/server/models"
	"github.com/codementor-ai/auth-service/internal/server/ratelimit"
	"github.com/codementor-ai/auth-service/internal/server/repositories/repomanager"
	"github.com/codementor-ai/auth-service/internal/server/services"
)

type testHarness struct {
	router http.Handler
	rm     *repomanager.MemoryRepositoryManager
	mock   sqlmock.Sqlmock
}

// newHarness wires a real service over in-memory repositories behind the
// router. Limiter windows are wide open unless a test narrows them.
func newHarness(t *testing.T, limits ratelimit.Config) *testHarness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mtr := metrics.NewMetrics(prometheus.NewRegistry())

	rm := repomanager.NewMemoryRepositoryManager()
	svc := services.NewAuthService(db, rm, cfg, logger, mtr)

	api := New(svc, cfg, logger, mtr,
		ratelimit.NewMemoryLimiter(limits),
		ratelimit.NewMemoryLimiter(limits),
	)

	return &testHarness{router: api.Router(), rm: rm, mock: mock}
}

func openLimits() ratelimit.Config {
	return ratelimit.Config{Limit: 1000, Window: time.Minute}
}

// expectTx queues n begin/commit pairs on the sqlmock database.
func (h *testHarness) expectTx(n int) {
	for i := 0; i < n; i++ {
		h.mock.ExpectBegin()
		h.mock.ExpectCommit()
	}
}

func (h *testHarness) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type respEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) respEnvelope {
	t.Helper()
	var env respEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (h *testHarness) seedUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:            "u-" + email,
		Email:         email,
		Username:      "user-" + email,
		PasswordHash:  string(hash),
		LearningLevel: models.LevelBeginner,
		Preferences:   models.DefaultPreferences(models.LangPython),
		Progress:      models.Progress{CurrentLanguage: models.LangPython},
	}
	_, err = h.rm.Users(nil).Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func (h *testHarness) login(t *testing.T, email, password string) sessionResponse {
	t.Helper()
	h.expectTx(1)

	rec := h.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: password}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	var session sessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &session))
	return session
}

// --- registration ---

func TestRegisterEndpoint_Success(t *testing.T) {
	h := newHarness(t, openLimits())
	h.expectTx(1)

	rec := h.do(t, http.MethodPost, "/api/auth/register", registerRequest{
		Email:           "new@example.com",
		Username:        "new_user",
		Password:        "Sup3rSecret",
		InitialLanguage: "javascript",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)

	var session sessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "new@example.com", session.User.Email)
	assert.Equal(t, models.LevelBeginner, session.User.LearningLevel)
	assert.Equal(t, models.LangJavaScript, session.User.Progress.CurrentLanguage)
	assert.NotNil(t, session.User.Progress.CompletedModules)
	assert.NotEmpty(t, session.Token)
	assert.Len(t, session.RefreshToken, 64)

	// Consumers read data.token; the access token must travel under that key.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.Contains(t, raw, "token")
	assert.Contains(t, raw, "refreshToken")
	assert.NotContains(t, raw, "accessToken")

	// The sanitized view never carries credential material.
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), "Sup3rSecret")
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	h := newHarness(t, openLimits())

	tests := []struct {
		name     string
		req      registerRequest
		wantCode string
	}{
		{
			name:     "short password",
			req:      registerRequest{Email: "a@b.co", Username: "valid_name", Password: "Ab1"},
			wantCode: "WEAK_PASSWORD",
		},
		{
			name:     "no uppercase in password",
			req:      registerRequest{Email: "a@b.co", Username: "valid_name", Password: "alllower1"},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "bad email",
			req:      registerRequest{Email: "not-an-email", Username: "valid_name", Password: "G00dPassword"},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "username too short",
			req:      registerRequest{Email: "a@b.co", Username: "ab", Password: "G00dPassword"},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "unsupported language",
			req:      registerRequest{Email: "a@b.co", Username: "valid_name", Password: "G00dPassword", InitialLanguage: "cobol"},
			wantCode: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/auth/register", tt.req, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, http.StatusBadRequest, env.Error.StatusCode)
		})
	}
}

func TestRegisterEndpoint_Duplicate(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "dup@example.com", "Whatever1x")

	rec := h.do(t, http.MethodPost, "/api/auth/register", registerRequest{
		Email:    "dup@example.com",
		Username: "other_name",
		Password: "G00dPassword",
	}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "USER_EXISTS", env.Error.Code)
}

// --- login ---

func TestLoginEndpoint_SuccessAndFailure(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "bob@example.com", "pw-bob-123")

	session := h.login(t, "bob@example.com", "pw-bob-123")
	assert.NotEmpty(t, session.Token)

	rec := h.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "bob@example.com", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
}

func TestLoginEndpoint_Lockout(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "dave@example.com", "pw-dave-123")

	for i := 0; i < models.MaxLoginAttempts; i++ {
		rec := h.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "dave@example.com", Password: "wrong"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := h.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "dave@example.com", Password: "pw-dave-123"}, nil)
	assert.Equal(t, http.StatusLocked, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ACCOUNT_LOCKED", env.Error.Code)
}

func TestLoginEndpoint_RateLimited(t *testing.T) {
	h := newHarness(t, ratelimit.Config{Limit: 2, Window: time.Minute})
	h.seedUser(t, "eve@example.com", "pw-eve-1234")

	for i := 0; i < 2; i++ {
		rec := h.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "eve@example.com", Password: "wrong"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := h.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "eve@example.com", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

// --- refresh and logout ---

func TestRefreshEndpoint(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "gina@example.com", "pw-gina-123")
	session := h.login(t, "gina@example.com", "pw-gina-123")

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", refreshRequest{RefreshToken: session.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	var tokens tokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	assert.NotEmpty(t, tokens.Token)
	assert.NotEqual(t, session.RefreshToken, tokens.RefreshToken)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.Contains(t, raw, "token")
	assert.NotContains(t, raw, "accessToken")

	// Consumed token is rejected on replay.
	rec = h.do(t, http.MethodPost, "/api/auth/refresh", refreshRequest{RefreshToken: session.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env = decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", env.Error.Code)
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	h := newHarness(t, openLimits())

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", refreshRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MISSING_REFRESH_TOKEN", env.Error.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "jack@example.com", "pw-jack-123")
	session := h.login(t, "jack@example.com", "pw-jack-123")

	rec := h.do(t, http.MethodPost, "/api/auth/logout", refreshRequest{RefreshToken: session.RefreshToken}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second logout with the same token still succeeds.
	rec = h.do(t, http.MethodPost, "/api/auth/logout", refreshRequest{RefreshToken: session.RefreshToken}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Revoked token no longer refreshes.
	rec = h.do(t, http.MethodPost, "/api/auth/refresh", refreshRequest{RefreshToken: session.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- authenticated routes ---

func TestMeEndpoint(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "kate@example.com", "pw-kate-123")
	session := h.login(t, "kate@example.com", "pw-kate-123")

	rec := h.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + session.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// data is the sanitized user object itself, not a wrapper around it.
	env := decodeEnvelope(t, rec)
	var user models.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "kate@example.com", user.Email)
	assert.Equal(t, "user-kate@example.com", user.Username)
}

func TestMeEndpoint_TokenErrors(t *testing.T) {
	h := newHarness(t, openLimits())

	rec := h.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MISSING_TOKEN", env.Error.Code)

	rec = h.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env = decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TOKEN", env.Error.Code)
}

func TestAssessmentEndpoint(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "liam@example.com", "pw-liam-123")
	session := h.login(t, "liam@example.com", "pw-liam-123")

	headers := map[string]string{"Authorization": "Bearer " + session.Token}

	rec := h.do(t, http.MethodPost, "/api/auth/assessment", map[string]any{
		"responses": []map[string]bool{
			{"correct": true}, {"correct": true}, {"correct": false}, {"correct": true}, {"correct": true},
		},
	}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	var result struct {
		AssessmentScore  int          `json:"assessmentScore"`
		RecommendedLevel models.Level `json:"recommendedLevel"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 80, result.AssessmentScore)
	assert.Equal(t, models.LevelAdvanced, result.RecommendedLevel)

	// Empty responses score zero and stay beginner.
	rec = h.do(t, http.MethodPost, "/api/auth/assessment", map[string]any{
		"responses": []map[string]bool{},
	}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 0, result.AssessmentScore)
	assert.Equal(t, models.LevelBeginner, result.RecommendedLevel)
}

func TestAssessmentEndpoint_InvalidResponses(t *testing.T) {
	h := newHarness(t, openLimits())
	h.seedUser(t, "mona@example.com", "pw-mona-123")
	session := h.login(t, "mona@example.com", "pw-mona-123")

	headers := map[string]string{"Authorization": "Bearer " + session.Token}

	tests := []struct {
		name string
		body string
	}{
		{name: "absent", body: `{}`},
		{name: "null", body: `{"responses": null}`},
		{name: "not an array", body: `{"responses": 5}`},
		{name: "object", body: `{"responses": {"correct": true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/assessment", bytes.NewBufferString(tt.body))
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_RESPONSES", env.Error.Code)
		})
	}
}

// --- plumbing ---

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, openLimits())

	rec := h.do(t, http.MethodGet, "/api/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t, openLimits())

	rec := h.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, openLimits())

	// Drive one request through the instrumented router so the request
	// counter has a sample to export.
	h.do(t, http.MethodGet, "/health", nil, nil)

	rec := h.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_http_requests_total")
}

func TestBadJSONBody(t *testing.T) {
	h := newHarness(t, openLimits())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}
