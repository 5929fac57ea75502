package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgellow/gamefront/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainMiddleware_Order(t *testing.T) {
	var order []string
	tag := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := ChainMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("inner"), tag("outer"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestResponseWriterDelegator(t *testing.T) {
	rec := httptest.NewRecorder()
	w := wrapResponseWriter(rec)

	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusOK)
	n, err := w.Write([]byte("short and stout"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, w.Status())
	assert.Equal(t, n, w.BytesWritten())
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Same(t, rec, w.Unwrap())
}

func TestRecoverMiddleware(t *testing.T) {
	handler := NewRecoverMiddleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/games", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_server_error","message":"Internal Server Error"}`, w.Body.String())
}

func TestLoggerMiddleware_PassesThrough(t *testing.T) {
	handler := NewLoggerMiddleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/auth/signout", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMetricsMiddleware_LabelsByPattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/linked-accounts/{provider}/{providerId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMetricsMiddleware(m)(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/linked-accounts/steam/1", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/linked-accounts/epic/2", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	count, err := testutil.GatherAndCount(m.Registry(), "gamefront_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	expected := `gamefront_http_requests_total{method="DELETE",route="DELETE /api/linked-accounts/{provider}/{providerId}",status="204"} 2`
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), expected)
	assert.Contains(t, body.String(), `route="unmatched",status="404"`)
}
