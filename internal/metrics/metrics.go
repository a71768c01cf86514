// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flapbus"

// Metrics holds the engine collectors on a private registry, so several
// engines (and tests) never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	Polls           prometheus.Counter
	ShortReads      prometheus.Counter
	BusFaults       prometheus.Counter
	CommitsSent     prometheus.Counter
	CommitsSkipped  prometheus.Counter
	CommitsFailed   prometheus.Counter
	LettersShown    prometheus.Counter
	LettersUnmapped prometheus.Counter
	UnitsConfigured prometheus.Gauge
	UnitsResponding prometheus.Gauge
	UnitsRotating   prometheus.Gauge
	UnitsStale      prometheus.Gauge
	UnitOffset      *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		Polls:           counter("polls_total", "Completed poll cycles."),
		ShortReads:      counter("short_reads_total", "Unit answers shorter than a full frame."),
		BusFaults:       counter("bus_faults_total", "Stuck data line recoveries."),
		CommitsSent:     counter("commit_sent_total", "UPDATE_OFFSET commands delivered."),
		CommitsSkipped:  counter("commit_skipped_total", "Units skipped by commit because nothing changed."),
		CommitsFailed:   counter("commit_failed_total", "UPDATE_OFFSET commands that failed."),
		LettersShown:    counter("letters_shown_total", "SHOW_LETTER commands delivered."),
		LettersUnmapped: counter("letters_unmapped_total", "Message characters without a flap."),
		UnitsConfigured: gauge("units_configured", "Configured unit count."),
		UnitsResponding: gauge("units_responding", "Units that answered the last poll."),
		UnitsRotating:   gauge("units_rotating", "Units rotating at the last poll."),
		UnitsStale:      gauge("units_stale", "Units silent for longer than the stale threshold."),
		UnitOffset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unit_offset",
			Help:      "Observed calibration offset per unit.",
		}, []string{"unit"}),
	}

	m.Registry.MustRegister(
		m.Polls,
		m.ShortReads,
		m.BusFaults,
		m.CommitsSent,
		m.CommitsSkipped,
		m.CommitsFailed,
		m.LettersShown,
		m.LettersUnmapped,
		m.UnitsConfigured,
		m.UnitsResponding,
		m.UnitsRotating,
		m.UnitsStale,
		m.UnitOffset,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}
