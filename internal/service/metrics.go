package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	processed     *prometheus.CounterVec
	processTime   prometheus.Histogram
}

// NewMetrics creates the pipeline collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caption_stage_duration_seconds",
				Help:    "Duration of each caption pipeline stage in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caption_process_total",
				Help: "Total number of processed uploads by result",
			},
			[]string{"result"},
		),
		processTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caption_process_duration_seconds",
			Help:    "End to end duration of the caption pipeline in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	reg.MustRegister(m.stageDuration, m.processed, m.processTime)
	return m
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeResult(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.processed.WithLabelValues(result).Inc()
	m.processTime.Observe(d.Seconds())
}
