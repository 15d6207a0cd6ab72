package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveChat("symptom", "symptom_explanation")
	m.ObserveAction("confirm_booking", "ok")
	m.ObserveBooking("conflict")
	m.ObserveBooking("conflict")
	m.ObserveLLM("symptom", 0.2, errors.New("timeout"))
	m.ObserveHTTP("/api/chat", 503, 0.01)
	m.AddPurged(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatTotal.WithLabelValues("symptom", "symptom_explanation")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingTotal.WithLabelValues("conflict")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessionPurged))
	assert.Equal(t, 1, testutil.CollectAndCount(m.llmLatency))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveChat("plain", "text")
		m.ObserveAction("select_date", "error")
		m.ObserveBooking("booked")
		m.ObserveLLM("plain", 1, nil)
		m.ObserveHTTP("/", 200, 0)
		m.AddPurged(1)
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "5xx", statusClass(503))
}
