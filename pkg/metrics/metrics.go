// Package metrics exposes the storefront Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transactions_total",
			Help:      "Purchases, deposits and withdrawals by outcome.",
		},
		[]string{"kind", "code"},
	)

	purchaseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "purchase_duration_seconds",
			Help:      "Duration of purchase attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13), // 1ms to ~4s
		},
	)

	balanceUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balance",
			Name:      "updates_total",
			Help:      "Balance mutations by journal type and outcome.",
		},
		[]string{"type", "code"},
	)

	balanceDrift = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balance",
			Name:      "cache_drift_total",
			Help:      "Reads where the cached balance disagreed with the database.",
		},
	)

	controlClicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controls",
			Name:      "clicks_total",
			Help:      "Interactive control invocations by control and outcome.",
		},
		[]string{"control", "code"},
	)

	displayUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "display",
			Name:      "updates_total",
			Help:      "Display refreshes by result.",
		},
		[]string{"result"},
	)

	donations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "donation",
			Name:      "messages_total",
			Help:      "Inbound donation messages by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		transactions,
		purchaseDuration,
		balanceUpdates,
		balanceDrift,
		controlClicks,
		displayUpdates,
		donations,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransaction counts one engine outcome. code is "" on success.
func RecordTransaction(kind, code string) {
	transactions.WithLabelValues(kind, outcome(code)).Inc()
}

// RecordPurchaseDuration observes one purchase attempt.
func RecordPurchaseDuration(d time.Duration) {
	purchaseDuration.Observe(d.Seconds())
}

// RecordBalanceUpdate counts one balance mutation.
func RecordBalanceUpdate(entryType, code string) {
	balanceUpdates.WithLabelValues(entryType, outcome(code)).Inc()
}

// RecordBalanceDrift counts one cache/database disagreement.
func RecordBalanceDrift() {
	balanceDrift.Inc()
}

// RecordControl counts one control click.
func RecordControl(control, code string) {
	controlClicks.WithLabelValues(control, outcome(code)).Inc()
}

// RecordDisplayUpdate counts one display refresh.
func RecordDisplayUpdate(result string) {
	displayUpdates.WithLabelValues(result).Inc()
}

// RecordDonation counts one donation message.
func RecordDonation(result string) {
	donations.WithLabelValues(result).Inc()
}

// RegisterGauge exposes a value computed at scrape time. Registering the
// same name twice is ignored.
func RegisterGauge(subsystem, name, help string, fn func() float64) {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
	if err := Registry.Register(g); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			panic(err)
		}
	}
}

func outcome(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}
