// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the Prometheus metrics of the assembly
// pipeline. A nil *Collector is safe to call; every Record method is a
// no-op on it.
type Collector struct {
	assembliesTotal  *prometheus.CounterVec
	assemblyDuration *prometheus.HistogramVec
	assembledTokens  *prometheus.HistogramVec

	compressionsTotal      *prometheus.CounterVec
	compressionSavedTokens *prometheus.CounterVec
	compressionRatio       *prometheus.HistogramVec

	bucketsDroppedTotal *prometheus.CounterVec
	allocatedTokens     *prometheus.HistogramVec

	logger *zap.Logger
}

var tokenBuckets = []float64{100, 500, 1000, 2000, 4000, 8000, 16000, 32000}

// NewCollector registers the instrument set with reg under the given
// namespace. Passing nil for reg creates unregistered instruments, which is
// useful in tests.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.assembliesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assemblies_total",
			Help:      "Total number of assembly requests",
		},
		[]string{"policy", "status"},
	)

	c.assemblyDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_duration_seconds",
			Help:      "Assembly pipeline duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"policy"},
	)

	c.assembledTokens = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembled_tokens",
			Help:      "Total tokens in the assembled context",
			Buckets:   tokenBuckets,
		},
		[]string{"policy"},
	)

	c.compressionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compressions_total",
			Help:      "Total number of per-bucket compressions",
		},
		[]string{"strategy", "status"},
	)

	c.compressionSavedTokens = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compression_saved_tokens_total",
			Help:      "Total tokens removed by compression",
		},
		[]string{"strategy"},
	)

	c.compressionRatio = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio",
			Help:      "Compressed over original token count per compression",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1},
		},
		[]string{"strategy"},
	)

	c.bucketsDroppedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buckets_dropped_total",
			Help:      "Total buckets dropped from the assembled context",
		},
		[]string{"bucket", "reason"},
	)

	c.allocatedTokens = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocated_tokens",
			Help:      "Tokens allocated per bucket",
			Buckets:   tokenBuckets,
		},
		[]string{"bucket"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordAssembly records one completed assembly call.
func (c *Collector) RecordAssembly(policy, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.assembliesTotal.WithLabelValues(policy, status).Inc()
	c.assemblyDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// RecordAssembledTokens records the total token count of a successful
// assembly.
func (c *Collector) RecordAssembledTokens(policy string, tokens int) {
	if c == nil {
		return
	}
	c.assembledTokens.WithLabelValues(policy).Observe(float64(tokens))
}

// RecordCompression records one per-bucket compression outcome.
func (c *Collector) RecordCompression(strategy, status string, savedTokens int, ratio float64) {
	if c == nil {
		return
	}
	c.compressionsTotal.WithLabelValues(strategy, status).Inc()
	if savedTokens > 0 {
		c.compressionSavedTokens.WithLabelValues(strategy).Add(float64(savedTokens))
	}
	if status == "ok" {
		c.compressionRatio.WithLabelValues(strategy).Observe(ratio)
	}
}

// RecordDrop records a bucket removed from the assembled context.
func (c *Collector) RecordDrop(bucket, reason string) {
	if c == nil {
		return
	}
	c.bucketsDroppedTotal.WithLabelValues(bucket, reason).Inc()
}

// RecordAllocation records the budget decision for one bucket.
func (c *Collector) RecordAllocation(bucket string, tokens int) {
	if c == nil {
		return
	}
	c.allocatedTokens.WithLabelValues(bucket).Observe(float64(tokens))
}
