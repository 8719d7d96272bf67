package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tctk"

// BotMetrics holds all Prometheus metrics for the chat bot.
type BotMetrics struct {
	EventsTotal        *prometheus.CounterVec
	HandlerErrorsTotal *prometheus.CounterVec
	MessagesSentTotal  *prometheus.CounterVec
	ChatConnected      prometheus.Gauge
	ChatReconnects     prometheus.Counter

	ActivityFlushesTotal   *prometheus.CounterVec
	ActivityRotationsTotal prometheus.Counter
	ActivityRecordsTotal   prometheus.Counter
	ActivityBytesTotal     prometheus.Counter
	ActivityPending        prometheus.Gauge
	UnknownSignalsTotal    *prometheus.CounterVec

	StreamEventsTotal   *prometheus.CounterVec
	StreamAvailable     prometheus.Gauge
	ArchivedEventsTotal *prometheus.CounterVec
}

var (
	once    sync.Once
	current *BotMetrics
)

// NewBotMetrics initializes and registers the Prometheus metrics. The
// metrics are registered once per process; later calls return the same set.
func NewBotMetrics() *BotMetrics {
	once.Do(func() {
		current = newBotMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return current
}

// NewBotMetricsWithRegistry registers the metrics on reg, for tests.
func NewBotMetricsWithRegistry(reg prometheus.Registerer) *BotMetrics {
	return newBotMetrics(promauto.With(reg))
}

func newBotMetrics(f promauto.Factory) *BotMetrics {
	return &BotMetrics{
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "events_total",
			Help:      "Total number of chat events dispatched, by kind.",
		}, []string{"kind"}),
		HandlerErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "handler_errors_total",
			Help:      "Total number of feature handler failures, by feature and kind.",
		}, []string{"feature", "kind"}),
		MessagesSentTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent into the channel, by status.",
		}, []string{"status"}), // status: sent, error
		ChatConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connected",
			Help:      "1 while the chat connection is up, 0 otherwise.",
		}),
		ChatReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "reconnects_total",
			Help:      "Total number of chat reconnect attempts.",
		}),
		ActivityFlushesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "writes_total",
			Help:      "Total number of activity file writes, by update reason.",
		}, []string{"reason"}),
		ActivityRotationsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "rotations_total",
			Help:      "Total number of activity file rotations.",
		}),
		ActivityRecordsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "records_total",
			Help:      "Total number of activity records buffered.",
		}),
		ActivityBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "bytes_total",
			Help:      "Total number of bytes written to activity files.",
		}),
		ActivityPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "pending_records",
			Help:      "Number of activity records waiting for the next flush.",
		}),
		UnknownSignalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "unknown_signals_total",
			Help:      "Total number of signals routed to the error sink, by signal.",
		}, []string{"signal"}),
		StreamEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of chat events mirrored to the event stream, by status.",
		}, []string{"status"}), // status: buffered, error
		StreamAvailable: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "available",
			Help:      "1 while the event stream is reachable, 0 otherwise.",
		}),
		ArchivedEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "events_total",
			Help:      "Total number of archived events, by status.",
		}, []string{"status"}), // status: archived, dlq
	}
}
