package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/liftlog/gamify/internal/telemetry/metrics"
)

func TestPanicRecovery(t *testing.T) {
	metricsManager := metrics.NewTestManager()

	handler := PanicRecovery(metricsManager)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("you shall not pass")
	}))

	req := httptest.NewRequest("GET", "/gamification/complete", nil)
	rr := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		handler.ServeHTTP(rr, req)
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.CounterHandleRequestPanic))
}

func TestPanicRecovery_NoPanic(t *testing.T) {
	metricsManager := metrics.NewTestManager()

	handler := PanicRecovery(metricsManager)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, 0.0, testutil.ToFloat64(metricsManager.CounterHandleRequestPanic))
}
