package json

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()

	WriteUnauthorized(w, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		write   func(http.ResponseWriter)
		status  int
		errCode string
		message string
	}{
		{
			name:    "not_found",
			write:   func(w http.ResponseWriter) { WriteNotFound(w, "unknown provider") },
			status:  http.StatusNotFound,
			errCode: "not_found",
			message: "unknown provider",
		},
		{
			name:    "internal",
			write:   func(w http.ResponseWriter) { WriteInternalServerError(w, "boom") },
			status:  http.StatusInternalServerError,
			errCode: "internal_server_error",
			message: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.errCode, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()

	err := Write(w, map[string]int{"totalCount": 2})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"totalCount":2}`, w.Body.String())
}
