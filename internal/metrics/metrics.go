package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	samplingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbittool_sampling_duration_seconds",
			Help:    "Wall time spent sampling one trajectory.",
			Buckets: prometheus.DefBuckets,
		},
	)

	samplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbittool_samples_total",
			Help: "Total number of propagated states.",
		},
	)

	propagationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbittool_propagation_failures_total",
			Help: "Total number of sampling runs aborted by a propagator error.",
		},
	)

	fitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbittool_fits_total",
			Help: "Total number of orbit fits by target representation and outcome.",
		},
		[]string{"target", "converged"},
	)

	fitIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbittool_fit_iterations",
			Help:    "Iterations used by each orbit fit.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
		[]string{"target"},
	)

	comparisonMaxErrorMeters = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbittool_comparison_max_error_meters",
			Help: "Largest absolute relative-motion error of the last comparison, per axis.",
		},
		[]string{"axis"},
	)
)

func init() {
	prometheus.MustRegister(samplingDurationSeconds)
	prometheus.MustRegister(samplesTotal)
	prometheus.MustRegister(propagationFailuresTotal)
	prometheus.MustRegister(fitsTotal)
	prometheus.MustRegister(fitIterations)
	prometheus.MustRegister(comparisonMaxErrorMeters)
}

// ObserveSampling records one completed sampling run.
func ObserveSampling(d time.Duration, samples int) {
	samplingDurationSeconds.Observe(d.Seconds())
	samplesTotal.Add(float64(samples))
}

// RecordPropagationFailure counts a sampling run that stopped on an error.
func RecordPropagationFailure() {
	propagationFailuresTotal.Inc()
}

// ObserveFit records the outcome of one orbit fit.
func ObserveFit(target string, iterations int, converged bool) {
	label := "false"
	if converged {
		label = "true"
	}
	fitsTotal.WithLabelValues(target, label).Inc()
	fitIterations.WithLabelValues(target).Observe(float64(iterations))
}

// ObserveComparison stores the per-axis maxima of a comparison, in meters.
func ObserveComparison(radial, inTrack, crossTrack float64) {
	comparisonMaxErrorMeters.WithLabelValues("radial").Set(radial)
	comparisonMaxErrorMeters.WithLabelValues("in_track").Set(inTrack)
	comparisonMaxErrorMeters.WithLabelValues("cross_track").Set(crossTrack)
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format. The file is written atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
