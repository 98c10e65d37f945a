package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - счетчики игры и http. Методы безопасны для nil
type Metrics struct {
	sessions        *prometheus.CounterVec
	rounds          prometheus.Counter
	choices         *prometheus.CounterVec
	conflictRetries *prometheus.CounterVec
	conflictFailed  *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New создает метрики и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dilemma",
			Name:      "sessions_total",
			Help:      "Session state transitions by resulting status.",
		}, []string{"status"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dilemma",
			Name:      "rounds_completed_total",
			Help:      "Rounds resolved.",
		}),
		choices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dilemma",
			Name:      "choices_total",
			Help:      "Recorded choices by value.",
		}, []string{"choice"}),
		conflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dilemma",
			Name:      "conflict_retries_total",
			Help:      "Store write conflicts that were retried.",
		}, []string{"op"}),
		conflictFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dilemma",
			Name:      "conflict_exhausted_total",
			Help:      "Operations that ran out of conflict retries.",
		}, []string{"op"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dilemma",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.sessions, m.rounds, m.choices, m.conflictRetries, m.conflictFailed, m.httpDuration)
	return m
}

func (m *Metrics) SessionTransition(status string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(status).Inc()
}

func (m *Metrics) RoundCompleted() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

func (m *Metrics) ChoiceRecorded(choice string) {
	if m == nil {
		return
	}
	m.choices.WithLabelValues(choice).Inc()
}

func (m *Metrics) ConflictRetry(op string) {
	if m == nil {
		return
	}
	m.conflictRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) ConflictExhausted(op string) {
	if m == nil {
		return
	}
	m.conflictFailed.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
