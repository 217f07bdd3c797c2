package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.RecordEvent()
	m.RecordEvent()
	m.RecordRejected("duplicate-in-window")
	m.RecordDiscarded("unroutable")
	m.RecordCheckpoint("15m", "exitable")
	m.SetOpenTrades(3)
	m.ObserveCall("birdeye", "price", time.Now(), errors.New("boom"))
	m.RecordSweep(time.Second, 2, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsRejected.WithLabelValues("duplicate-in-window")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsDiscarded.WithLabelValues("unroutable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointsRecorded.WithLabelValues("15m", "exitable")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OpenTrades))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalCallErrors.WithLabelValues("birdeye", "price")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccessfulSweep))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvent()
		m.RecordRejected("x")
		m.RecordSweep(time.Second, 0, time.Now())
		m.ObserveCall("a", "b", time.Now(), nil)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "")
	m.RecordConfirmed()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "curator_signal_lab_signals_confirmed_total 1"))
}
