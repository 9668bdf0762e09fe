package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("chatty")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zap.InfoLevel))
	require.False(t, logger.Core().Enabled(zap.DebugLevel))

	debug, err := NewLogger("DEBUG")
	require.NoError(t, err)
	require.True(t, debug.Core().Enabled(zap.DebugLevel))
}

func TestCloudTraceRoundTrip(t *testing.T) {
	t.Parallel()

	sc, ok := ParseCloudTrace("105445aa7843bc8bf206b12000100000/1;o=1")
	require.True(t, ok)
	require.True(t, sc.IsSampled())
	require.Equal(t, "105445aa7843bc8bf206b12000100000", sc.TraceID().String())
	require.Equal(t, "0000000000000001", sc.SpanID().String())

	header := FormatCloudTrace(TraceInfo{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String(), Sampled: true})
	require.Equal(t, "105445aa7843bc8bf206b12000100000/1;o=1", header)

	for _, bad := range []string{"", "abc/1", "105445aa7843bc8bf206b12000100000", "105445aa7843bc8bf206b12000100000/x"} {
		_, ok := ParseCloudTrace(bad)
		require.False(t, ok, bad)
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	handler := InjectLogger(zap.New(core))(RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en/home", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "inside", entries[0].Message)
	require.Equal(t, "/en/home", entries[0].ContextMap()["path"])
	completed := entries[1]
	require.Equal(t, "request completed", completed.Message)
	require.Equal(t, zap.WarnLevel, completed.Level)
	require.EqualValues(t, http.StatusTeapot, completed.ContextMap()["status"])
}

func TestRecoveryRendersFallback(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	handler := Recovery(zap.New(core), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("reload"))
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "reload", rec.Body.String())
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}
