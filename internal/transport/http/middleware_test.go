package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), tag("outer"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/activities", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, called)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/activities", nil))
	require.True(t, called)
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/activities", nil))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "POST", fields["method"])
	require.Equal(t, "/v1/activities", fields["path"])
	require.EqualValues(t, http.StatusTeapot, fields["status"])
}

func TestNewServerAppliesTimeouts(t *testing.T) {
	srv := NewServer(DefaultServerConfig(":0"), http.NotFoundHandler())
	require.Equal(t, ":0", srv.Addr)
	require.NotZero(t, srv.ReadHeaderTimeout)
	require.NotZero(t, srv.WriteTimeout)
}
