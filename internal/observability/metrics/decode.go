// Package metrics provides batch decode metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DecodeMetrics contains Prometheus metrics for batch decode operations
type DecodeMetrics struct {
	registry *prometheus.Registry

	// Batch level metrics
	batchesTotal  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchSize     prometheus.Histogram

	// Sample level metrics
	samplesTotal   *prometheus.CounterVec
	sampleDuration *prometheus.HistogramVec
	samplesDecoded *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec

	// Resampling metrics
	resamplesTotal *prometheus.CounterVec

	// Scratch arena metrics
	scratchBytesGauge *prometheus.GaugeVec
}

// NewDecodeMetrics creates and registers new batch decode metrics
func NewDecodeMetrics(registry *prometheus.Registry) (*DecodeMetrics, error) {
	m := &DecodeMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DecodeMetrics) initMetrics() error {
	m.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobatch_batches_total",
			Help: "Total number of decoded batches",
		},
		[]string{"status"}, // status: success, error
	)

	m.batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiobatch_batch_duration_seconds",
			Help:    "Time spent per batch phase",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"phase"}, // phase: setup, decode
	)

	m.batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audiobatch_batch_size_samples",
			Help:    "Number of samples per batch",
			Buckets: prometheus.ExponentialBuckets(1, BucketFactor2, BucketCount10),
		},
	)

	m.samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobatch_samples_total",
			Help: "Total number of samples processed",
		},
		[]string{"format", "status"}, // format: wav, flac, ogg, mp3
	)

	m.sampleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiobatch_sample_duration_seconds",
			Help:    "Time taken to decode a single sample",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"format"},
	)

	m.samplesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobatch_decoded_frames_total",
			Help: "Total number of decoded output frames",
		},
		[]string{"kind"}, // kind: int16, int32, float32
	)

	m.decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobatch_decode_errors_total",
			Help: "Total number of decode errors",
		},
		[]string{"format", "error_type"},
	)

	m.resamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiobatch_resamples_total",
			Help: "Total number of samples passed through the resampler",
		},
		[]string{"direction"}, // direction: up, down
	)

	m.scratchBytesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiobatch_scratch_bytes",
			Help: "Bytes currently held by per-worker scratch buffers",
		},
		[]string{"buffer"}, // buffer: decode, resample
	)

	return nil
}

// Describe implements the prometheus.Collector interface
func (m *DecodeMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.batchesTotal.Describe(ch)
	m.batchDuration.Describe(ch)
	m.batchSize.Describe(ch)
	m.samplesTotal.Describe(ch)
	m.sampleDuration.Describe(ch)
	m.samplesDecoded.Describe(ch)
	m.decodeErrors.Describe(ch)
	m.resamplesTotal.Describe(ch)
	m.scratchBytesGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *DecodeMetrics) Collect(ch chan<- prometheus.Metric) {
	m.batchesTotal.Collect(ch)
	m.batchDuration.Collect(ch)
	m.batchSize.Collect(ch)
	m.samplesTotal.Collect(ch)
	m.sampleDuration.Collect(ch)
	m.samplesDecoded.Collect(ch)
	m.decodeErrors.Collect(ch)
	m.resamplesTotal.Collect(ch)
	m.scratchBytesGauge.Collect(ch)
}

// RecordBatch records a completed batch with its status
func (m *DecodeMetrics) RecordBatch(status string, size int) {
	m.batchesTotal.WithLabelValues(status).Inc()
	m.batchSize.Observe(float64(size))
}

// RecordBatchDuration records time spent in a batch phase
func (m *DecodeMetrics) RecordBatchDuration(phase string, seconds float64) {
	m.batchDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordSample records a processed sample
func (m *DecodeMetrics) RecordSample(format, status string) {
	m.samplesTotal.WithLabelValues(format, status).Inc()
}

// RecordSampleDuration records the decode time of a single sample
func (m *DecodeMetrics) RecordSampleDuration(format string, seconds float64) {
	m.sampleDuration.WithLabelValues(format).Observe(seconds)
}

// RecordDecodedFrames records output frames written for a sample kind
func (m *DecodeMetrics) RecordDecodedFrames(kind string, frames int64) {
	m.samplesDecoded.WithLabelValues(kind).Add(float64(frames))
}

// RecordDecodeError records a decode failure
func (m *DecodeMetrics) RecordDecodeError(format, errorType string) {
	m.decodeErrors.WithLabelValues(format, errorType).Inc()
}

// RecordResample records a sample passing through the resampler
func (m *DecodeMetrics) RecordResample(direction string) {
	m.resamplesTotal.WithLabelValues(direction).Inc()
}

// UpdateScratchBytes updates the bytes held by a scratch buffer class
func (m *DecodeMetrics) UpdateScratchBytes(buffer string, bytes int64) {
	m.scratchBytesGauge.WithLabelValues(buffer).Set(float64(bytes))
}
