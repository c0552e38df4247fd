// Package metrics exposes Prometheus collectors for the state layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	storeWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Total number of collection writes.",
		},
		[]string{"domain", "op"},
	)

	storeNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "store",
			Name:      "notifications_total",
			Help:      "Total number of subscriber snapshot pushes.",
		},
		[]string{"domain"},
	)

	creditDeductions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "credits",
			Name:      "deductions_total",
			Help:      "Total number of successful credit deductions.",
		},
	)

	creditRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "credits",
			Name:      "rejections_total",
			Help:      "Total number of operations rejected for insufficient credits.",
		},
	)

	assistantRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studyflow",
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Total number of generative content requests.",
		},
		[]string{"task", "status"},
	)
)

func init() {
	Registry.MustRegister(
		storeWrites,
		storeNotifications,
		creditDeductions,
		creditRejections,
		assistantRequests,
	)
}

// StoreWrite records one collection write.
func StoreWrite(domain, op string) {
	storeWrites.WithLabelValues(domain, op).Inc()
}

// StoreNotification records one full-snapshot push to subscribers.
func StoreNotification(domain string) {
	storeNotifications.WithLabelValues(domain).Inc()
}

// CreditDeduction records a successful deduction.
func CreditDeduction() { creditDeductions.Inc() }

// CreditRejection records a rejected cost-bearing operation.
func CreditRejection() { creditRejections.Inc() }

// AssistantRequest records one generative content call.
func AssistantRequest(task, status string) {
	assistantRequests.WithLabelValues(task, status).Inc()
}
