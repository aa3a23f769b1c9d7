// Package metrics holds the Prometheus collectors shared by the transports
// and the ledger service. Collectors register with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledgerbot"

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
)

// CommandsTotal counts handled commands by intent and outcome.
var CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "commands",
	Name:      "handled_total",
	Help:      "Commands handled, by intent and outcome.",
}, []string{"intent", "outcome"})

// CommandDuration tracks time spent handling a command, store calls included.
var CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "commands",
	Name:      "duration_seconds",
	Help:      "Command handling latency in seconds.",
	Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
}, []string{"intent"})

var MessagesIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "transport",
	Name:      "messages_ignored_total",
	Help:      "Inbound messages that matched no command.",
}, []string{"transport"})

var RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "transport",
	Name:      "rate_limited_total",
	Help:      "Inbound messages dropped by the per-sender rate limit.",
}, []string{"transport"})

// SkippedRows counts stored rows the summary ignored because their amount did
// not parse.
var SkippedRows = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "summary",
	Name:      "skipped_rows_total",
	Help:      "Malformed ledger rows skipped while summarizing.",
})

var RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reminder",
	Name:      "sent_total",
	Help:      "Daily reminders delivered, by outcome.",
}, []string{"outcome"})

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Ledger events published to the broker, by outcome.",
}, []string{"outcome"})
