package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/codementor-ai/auth-service/internal/common"
)

// envelope is the uniform response body: exactly one of Data and Error is
// set, and Success mirrors which one.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Details    string `json:"details,omitempty"`
}

var notFoundError = common.Error{
	Code:       "NOT_FOUND",
	Message:    "Route not found",
	StatusCode: http.StatusNotFound,
}

var internalError = common.Error{
	Code:       "INTERNAL_ERROR",
	Message:    "An unexpected error occurred",
	StatusCode: http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeData sends a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError sends an error envelope for an operational error.
func writeError(w http.ResponseWriter, opErr *common.Error) {
	writeJSON(w, opErr.StatusCode, envelope{
		Success: false,
		Error: &errorBody{
			Code:       opErr.Code,
			Message:    opErr.Message,
			StatusCode: opErr.StatusCode,
			Details:    opErr.Details,
		},
	})
}

// writeServiceError maps any error coming out of the service layer onto the
// envelope. Unrecognized errors become a generic 500 so that internals never
// leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	var opErr *common.Error
	if errors.As(err, &opErr) {
		writeError(w, opErr)
		return
	}
	writeError(w, &internalError)
}
