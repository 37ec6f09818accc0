// Package metrics holds the Prometheus instruments for the complaint store
// and the chat session. Each Metrics value owns its registry so several
// clients (and tests) can live in one process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "complaintdesk"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups every instrument the client records.
type Metrics struct {
	Registry *prometheus.Registry

	StoreOperations *prometheus.CounterVec
	StoreSize       prometheus.Gauge
	StatusChanges   *prometheus.CounterVec

	ChatMessages    *prometheus.CounterVec
	ChatDuplicates  prometheus.Counter
	ChatSessions    *prometheus.CounterVec
	ChatOpenSession prometheus.Gauge
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Complaint store operations by operation and result",
		}, []string{"op", "result"}),
		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "complaints",
			Help:      "Number of complaints in the local cache",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "status_changes_total",
			Help:      "Backend-driven complaint status transitions seen on reload",
		}, []string{"to"}),
		ChatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages appended to session logs by direction",
		}, []string{"direction"}),
		ChatDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "echo_dropped_total",
			Help:      "Inbound echoes of locally sent messages that were dropped",
		}),
		ChatSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "sessions_total",
			Help:      "Chat session lifecycle outcomes",
		}, []string{"outcome"}),
		ChatOpenSession: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "open_sessions",
			Help:      "Chat sessions currently open",
		}),
	}

	m.Registry.MustRegister(
		m.StoreOperations,
		m.StoreSize,
		m.StatusChanges,
		m.ChatMessages,
		m.ChatDuplicates,
		m.ChatSessions,
		m.ChatOpenSession,
	)
	return m
}

// ObserveStoreOp records one store operation outcome.
func (m *Metrics) ObserveStoreOp(op string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.StoreOperations.WithLabelValues(op, result).Inc()
}
