// Package metrics exports wallet initialization outcomes to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/OKaluzny/wallet-init/internal/wallet"
)

// Collector counts state transitions and per-stage failures. It implements
// wallet.Observer.
type Collector struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	completed   prometheus.Counter
}

// NewCollector registers the wallet init metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_init_transitions_total",
				Help: "Wallet initialization state transitions by target state",
			},
			[]string{"state"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_init_failures_total",
				Help: "Failed wallet initializations by the state they failed from",
			},
			[]string{"stage"},
		),
		completed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_init_completed_total",
				Help: "Wallet initializations that produced both envelopes",
			},
		),
	}
}

// Transition implements wallet.Observer.
func (c *Collector) Transition(from, to wallet.State, err error) {
	c.transitions.WithLabelValues(to.String()).Inc()
	switch to {
	case wallet.StateFailed:
		c.failures.WithLabelValues(from.String()).Inc()
	case wallet.StateDone:
		c.completed.Inc()
	}
}

// WriteTextfile dumps everything gathered by g in the node_exporter textfile
// format, for one-shot processes that never serve /metrics.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
