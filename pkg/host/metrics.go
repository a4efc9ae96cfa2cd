package host

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const resultSuccess = "success"

// Metrics holds the Prometheus collectors for invocations
type Metrics struct {
	invocationsTotal *prometheus.CounterVec
	upgradesTotal    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		invocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataversion_invocations_total",
				Help: "Total number of program invocations",
			},
			[]string{"command", "result"},
		),
		upgradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataversion_record_upgrades_total",
				Help: "Total number of records migrated to the current version",
			},
			[]string{"from_version"},
		),
	}
}

func (m *Metrics) recordInvocation(command, result string) {
	m.invocationsTotal.WithLabelValues(command, result).Inc()
}

func (m *Metrics) recordUpgrade(from uint8) {
	m.upgradesTotal.WithLabelValues(strconv.Itoa(int(from))).Inc()
}
