// Package metrics exports round and profile state to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

const namespace = "dnsq"

var _ ports.RoundObserver = (*Recorder)(nil)

// Recorder owns a private registry so tests and multiple instances never clash
// with the global one.
type Recorder struct {
	registry *prometheus.Registry

	rounds        prometheus.Counter
	roundDuration prometheus.Histogram
	probeResults  *prometheus.CounterVec
	seriesResets  *prometheus.CounterVec
	probeLatency  *prometheus.GaugeVec
	profileMean   *prometheus.GaugeVec
	profileStdDev *prometheus.GaugeVec
	profileCount  *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Number of completed measurement rounds",
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Wall time of a measurement round",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		probeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_results_total",
			Help:      "Per-domain round outcomes by status",
		}, []string{"domain", "status"}),
		seriesResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_resets_total",
			Help:      "Series resets caused by a negative variance",
		}, []string{"domain"}),
		probeLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Latency of the last successful probe",
		}, []string{"domain"}),
		profileMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profile_mean_seconds",
			Help:      "Running mean latency since the last series reset",
		}, []string{"domain"}),
		profileStdDev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profile_stddev_seconds",
			Help:      "Latency standard deviation since the last series reset",
		}, []string{"domain"}),
		profileCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profile_samples",
			Help:      "Samples accumulated since the last series reset",
		}, []string{"domain"}),
	}

	r.registry.MustRegister(
		r.rounds,
		r.roundDuration,
		r.probeResults,
		r.seriesResets,
		r.probeLatency,
		r.profileMean,
		r.profileStdDev,
		r.profileCount,
	)
	return r
}

// ObserveRound records one finished round.
func (r *Recorder) ObserveRound(report domain.RoundReport) {
	r.rounds.Inc()
	r.roundDuration.Observe(report.Duration().Seconds())

	for _, o := range report.Outcomes {
		r.probeResults.WithLabelValues(o.Domain, string(o.Status)).Inc()
		if o.SeriesReset {
			r.seriesResets.WithLabelValues(o.Domain).Inc()
		}
		if o.Profile == nil {
			continue
		}
		r.probeLatency.WithLabelValues(o.Domain).Set(o.LatencyMs / 1e3)
		r.profileMean.WithLabelValues(o.Domain).Set(o.Profile.RunningMean / 1e3)
		r.profileStdDev.WithLabelValues(o.Domain).Set(o.Profile.StdDev / 1e3)
		r.profileCount.WithLabelValues(o.Domain).Set(float64(o.Profile.SampleCount))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
