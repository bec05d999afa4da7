// Package metrics records per-run analysis metrics and exports them in the
// Prometheus text format for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "baro_"

	ResultSuccess = "success"
	ResultError   = "error"

	ChannelAnalysed = "analysed"
	ChannelSkipped  = "skipped"
)

// Recorder owns a private registry so concurrent runs and tests do not share
// global collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	readingsLoaded   prometheus.Counter
	channels         *prometheus.CounterVec
	gapCells         prometheus.Counter
	events           *prometheus.CounterVec
	stageLatency     *prometheus.HistogramVec
	runDuration      prometheus.Histogram
	lastSuccessStamp prometheus.Gauge
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		readingsLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_loaded_total",
				Help: "Total raw readings loaded or imported",
			},
		),
		channels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "channels_total",
				Help: "Total channels by spectral estimation outcome",
			},
			[]string{"outcome"},
		),
		gapCells: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "gap_cells_total",
				Help: "Total aligned cells left without a value",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_total",
				Help: "Total analysed events by result",
			},
			[]string{"result"},
		),
		stageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "stage_latency_seconds",
				Help:    "Pipeline stage latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_duration_seconds",
				Help:    "Whole run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		lastSuccessStamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_success_timestamp_seconds",
				Help: "Unix time of the last run that finished without errors",
			},
		),
	}

	r.registry.MustRegister(
		r.readingsLoaded,
		r.channels,
		r.gapCells,
		r.events,
		r.stageLatency,
		r.runDuration,
		r.lastSuccessStamp,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ReadingsLoaded(n int) {
	if r == nil {
		return
	}
	r.readingsLoaded.Add(float64(n))
}

func (r *Recorder) ChannelAnalysed() {
	if r == nil {
		return
	}
	r.channels.WithLabelValues(ChannelAnalysed).Inc()
}

func (r *Recorder) ChannelSkipped() {
	if r == nil {
		return
	}
	r.channels.WithLabelValues(ChannelSkipped).Inc()
}

func (r *Recorder) GapCells(n int) {
	if r == nil {
		return
	}
	r.gapCells.Add(float64(n))
}

// EventFinished counts an event by the outcome of err.
func (r *Recorder) EventFinished(err error) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(result(err)).Inc()
}

// ObserveStage records how long a pipeline stage took since start.
func (r *Recorder) ObserveStage(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RunFinished records the run duration and, on success, the completion time.
func (r *Recorder) RunFinished(start time.Time, err error) {
	if r == nil {
		return
	}
	r.runDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		r.lastSuccessStamp.SetToCurrentTime()
	}
}

// WriteToTextfile writes all metrics to path atomically.
func (r *Recorder) WriteToTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
