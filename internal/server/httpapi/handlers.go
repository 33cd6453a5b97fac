package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/codementor-ai/auth-service/internal/common"
	"github.com/codementor-ai/auth-service/internal/server/models"
)

type registerRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	InitialLanguage string `json:"initialLanguage"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type assessmentRequest struct {
	Responses json.RawMessage `json:"responses"`
}

type sessionResponse struct {
	User         models.PublicUser `json:"user"`
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func decodeJSON(r *http.Request, dst any) *common.Error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.Validation("request body must be valid JSON")
	}
	return nil
}

// Register handles POST /api/auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if opErr := decodeJSON(r, &req); opErr != nil {
		writeError(w, opErr)
		return
	}

	if opErr := validateRegistration(&req); opErr != nil {
		writeError(w, opErr)
		return
	}

	language := models.SupportedLanguage(req.InitialLanguage)
	if language == "" {
		language = models.LangPython
	}

	user, pair, err := a.auth.Register(r.Context(), req.Email, req.Username, req.Password, language)
	if err != nil {
		a.logServiceError(r, "registration failed", err)
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusCreated, sessionResponse{
		User:         user.Public(),
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Login handles POST /api/auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if opErr := decodeJSON(r, &req); opErr != nil {
		writeError(w, opErr)
		return
	}

	if opErr := validateLogin(&req); opErr != nil {
		writeError(w, opErr)
		return
	}

	user, pair, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.logServiceError(r, "login failed", err)
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, sessionResponse{
		User:         user.Public(),
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh handles POST /api/auth/refresh.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if opErr := decodeJSON(r, &req); opErr != nil {
		writeError(w, opErr)
		return
	}

	if req.RefreshToken == "" {
		writeError(w, common.ErrMissingRefreshToken)
		return
	}

	pair, err := a.auth.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		a.logServiceError(r, "token refresh failed", err)
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, tokenResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /api/auth/logout.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if opErr := decodeJSON(r, &req); opErr != nil {
		writeError(w, opErr)
		return
	}

	if req.RefreshToken == "" {
		writeError(w, common.ErrMissingRefreshToken)
		return
	}

	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		a.logServiceError(r, "logout failed", err)
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me handles GET /api/auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, common.ErrInvalidToken)
		return
	}

	user, err := a.auth.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		a.logServiceError(r, "get user failed", err)
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, user.Public())
}

// Assessment handles POST /api/auth/assessment.
func (a *API) Assessment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, common.ErrInvalidToken)
		return
	}

	var req assessmentRequest
	if opErr := decodeJSON(r, &req); opErr != nil {
		writeError(w, opErr)
		return
	}

	// Absent, null, and non-array values of "responses" are all rejected
	// the same way; only a JSON array is acceptable.
	if len(req.Responses) == 0 {
		writeError(w, common.ErrInvalidResponses)
		return
	}
	var responses []models.AssessmentResponse
	if err := json.Unmarshal(req.Responses, &responses); err != nil || responses == nil {
		writeError(w, common.ErrInvalidResponses)
		return
	}

	score, level, err := a.auth.PerformKnowledgeAssessment(r.Context(), claims.UserID, responses)
	if err != nil {
		a.logServiceError(r, "assessment failed", err)
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"assessmentScore":  score,
		"recommendedLevel": level,
	})
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "auth-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// logServiceError records 5xx failures with their cause; expected
// operational errors only surface in the response.
func (a *API) logServiceError(r *http.Request, msg string, err error) {
	var opErr *common.Error
	if errors.As(err, &opErr) && opErr.StatusCode < http.StatusInternalServerError {
		return
	}
	a.logger.Error(r.Context(), msg, "method", r.Method, "path", r.URL.Path, "error", err)
}
