package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for the chat and booking flows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	chatTotal     *prometheus.CounterVec
	actionTotal   *prometheus.CounterVec
	bookingTotal  *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	httpLatency   *prometheus.HistogramVec
	sessionPurged prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chatTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospiico",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages by classified intent and reply type",
		}, []string{"intent", "reply"}),
		actionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospiico",
			Subsystem: "booking",
			Name:      "actions_total",
			Help:      "Booking step actions by outcome",
		}, []string{"action", "outcome"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospiico",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Appointment commit attempts by outcome",
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hospiico",
			Subsystem: "llm",
			Name:      "completion_seconds",
			Help:      "Latency of completion calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"purpose", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hospiico",
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		sessionPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospiico",
			Subsystem: "session",
			Name:      "purged_total",
			Help:      "Expired sessions removed by the sweeper",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatTotal, m.actionTotal, m.bookingTotal, m.llmLatency, m.httpLatency, m.sessionPurged)
	return m
}

func (m *Metrics) ObserveChat(intent, reply string) {
	if m == nil {
		return
	}
	m.chatTotal.WithLabelValues(intent, reply).Inc()
}

func (m *Metrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actionTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLLM(purpose string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmLatency.WithLabelValues(purpose, status).Observe(seconds)
}

func (m *Metrics) ObserveHTTP(route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(route, statusClass(status)).Observe(seconds)
}

func (m *Metrics) AddPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionPurged.Add(float64(n))
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
