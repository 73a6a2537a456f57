// Package metrics provides Prometheus metrics for the frame pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framegrab",
		Subsystem: "pipeline",
		Name:      "frames_published_total",
		Help:      "Frames accepted from the capture source",
	})

	framesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framegrab",
		Subsystem: "pipeline",
		Name:      "frames_delivered_total",
		Help:      "Frames handed to a consumer via grab or push callback",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framegrab",
		Subsystem: "pipeline",
		Name:      "frames_dropped_total",
		Help:      "Frames evicted from the available queue under backpressure",
	})

	conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framegrab",
		Subsystem: "convert",
		Name:      "conversions_total",
		Help:      "Completed conversions by source format, output format, and backend",
	}, []string{"source", "output", "backend"})

	conversionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framegrab",
		Subsystem: "convert",
		Name:      "failures_total",
		Help:      "Conversions that downgraded delivery to the source format",
	}, []string{"kind"})

	conversionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "framegrab",
		Subsystem: "convert",
		Name:      "duration_seconds",
		Help:      "Wall time of one conversion pass",
		Buckets:   prometheus.ExponentialBuckets(100e-6, 2, 12),
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "framegrab",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Frames currently waiting in the available queue",
	})

	poolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "framegrab",
		Subsystem: "pipeline",
		Name:      "pool_size",
		Help:      "Frames currently registered in the reuse pool",
	})
)

// FramePublished counts a frame accepted from the capture source.
func FramePublished() { framesPublished.Inc() }

// FrameDelivered counts a frame handed to a consumer.
func FrameDelivered() { framesDelivered.Inc() }

// FrameDropped counts a backpressure eviction.
func FrameDropped() { framesDropped.Inc() }

// ConversionDone records one completed conversion.
func ConversionDone(source, output, backend string, seconds float64) {
	conversions.WithLabelValues(source, output, backend).Inc()
	conversionSeconds.Observe(seconds)
}

// ConversionFailed counts a downgraded delivery by failure kind.
func ConversionFailed(kind string) {
	conversionFailures.WithLabelValues(kind).Inc()
}

// SetQueueDepth sets the current available-queue depth.
func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

// SetPoolSize sets the current reuse-pool size.
func SetPoolSize(n int) { poolSize.Set(float64(n)) }
