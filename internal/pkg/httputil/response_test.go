package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorCode(rec, http.StatusConflict, "run_in_progress", "busy")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{Error: "busy", Code: "run_in_progress"}, body)
}

func TestDecode(t *testing.T) {
	var dst struct{ PAN string }
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pan":"x"}`))
	assert.True(t, Decode(rec, req, &dst))
	assert.Equal(t, "x", dst.PAN)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pan":`))
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(rec, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
