package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/pan-validator/internal/pkg/logger"
)

// MaxBodyBytes caps request bodies read through Decode.
const MaxBodyBytes = 32 << 20

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data with the given status code. Encoding failures are logged;
// the status line has already been sent by then.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: encode response", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Accepted writes a 202 response with the given data.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, data)
}

// Error writes a JSON error response. Use for client errors (4xx).
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// ErrorCode writes a 4xx error carrying a machine-readable code.
func ErrorCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError logs err and writes a generic 500.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("httputil: internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// Decode reads JSON from the request body into dst. It returns false after
// writing a 400, or a 413 when the body exceeds MaxBodyBytes.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
