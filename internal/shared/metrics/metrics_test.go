package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.ObserveRequest("/me", 200, 10*time.Millisecond)
	m.ObserveRequest("/me", 200, 10*time.Millisecond)
	m.ObserveRequest("/me", 0, time.Millisecond)
	m.PollTick("verification", nil)
	m.PollTick("verification", errors.New("boom"))
	m.Decision("approve_deposit", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/me", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/me", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollTicks.WithLabelValues("verification", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("approve_deposit", "ok")))
}

func TestHandler_Healthz(t *testing.T) {
	reg := prometheus.NewRegistry()
	healthy := true
	h := Handler(reg, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("store down")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "store down"))
}

func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)
	m.Decision("reject_deposit", nil)

	rec := httptest.NewRecorder()
	Handler(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "betref_admin_decisions_total")
}
