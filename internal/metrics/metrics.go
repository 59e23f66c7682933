// Package metrics holds the Prometheus collectors of the comment engine.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSent       = "sent"
	ResultSuppressed = "suppressed"
	ResultFailed     = "failed"
)

// Metrics contains the comment counters. A nil *Metrics records nothing.
type Metrics struct {
	CommentsCreated *prometheus.CounterVec
	CommentsRemoved *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	RemoveForbidden prometheus.Counter
}

// New creates the collectors and registers them on registry
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CommentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comments_created_total",
				Help: "Comments created, partitioned by kind (comment, reply, email_reply).",
			},
			[]string{"kind"},
		),
		CommentsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comments_removed_total",
				Help: "Comments removed, partitioned by outcome (softened, deleted).",
			},
			[]string{"outcome"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comment_notifications_total",
				Help: "Notification decisions, partitioned by kind and result.",
			},
			[]string{"kind", "result"},
		),
		RemoveForbidden: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "comment_remove_forbidden_total",
				Help: "Removal attempts on comments owned by someone else.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.CommentsCreated, m.CommentsRemoved, m.Notifications, m.RemoveForbidden} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register comment metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) CommentCreated(kind string) {
	if m == nil {
		return
	}
	m.CommentsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) CommentRemoved(outcome string) {
	if m == nil {
		return
	}
	m.CommentsRemoved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Forbidden() {
	if m == nil {
		return
	}
	m.RemoveForbidden.Inc()
}
