// Package metrics holds the Prometheus collectors for skydb storage components
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/skydb/pkg/codec"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for event storage. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Codec metrics
	eventsEncodedTotal *prometheus.CounterVec
	eventsDecodedTotal *prometheus.CounterVec
	encodedBytesTotal  *prometheus.CounterVec
	decodeErrorsTotal  *prometheus.CounterVec

	// Storage operation metrics
	storeOperationsTotal   *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	blocksAppendedTotal    prometheus.Counter
	segmentsCreatedTotal   prometheus.Counter
	recoveryTruncations    prometheus.Counter
	storeObjects           prometheus.Gauge
	storeDataSizeBytes     prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		eventsEncodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sky_events_encoded_total",
				Help: "Total number of events serialized",
			},
			[]string{"layout"},
		),

		eventsDecodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sky_events_decoded_total",
				Help: "Total number of events deserialized",
			},
			[]string{"layout"},
		),

		encodedBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sky_encoded_bytes_total",
				Help: "Total number of serialized event bytes",
			},
			[]string{"layout"},
		),

		decodeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sky_decode_errors_total",
				Help: "Total number of event decode failures by field",
			},
			[]string{"layout", "field"},
		),

		storeOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sky_store_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storeOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sky_store_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		blocksAppendedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sky_blocks_appended_total",
				Help: "Total number of event blocks appended to the log",
			},
		),

		segmentsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sky_segments_created_total",
				Help: "Total number of log segments created",
			},
		),

		recoveryTruncations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sky_recovery_truncations_total",
				Help: "Total number of corrupted segment tails truncated during recovery",
			},
		),

		storeObjects: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sky_store_objects",
				Help: "Number of objects with at least one event",
			},
		),

		storeDataSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sky_store_data_size_bytes",
				Help: "Size of the active log segment in bytes",
			},
		),
	}
}

// New creates metrics on a private registry and returns both
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

// RecordEncoded records n events serialized into size bytes
func (m *Metrics) RecordEncoded(layout codec.Layout, n int, size int) {
	if m == nil {
		return
	}
	m.eventsEncodedTotal.WithLabelValues(layout.String()).Add(float64(n))
	m.encodedBytesTotal.WithLabelValues(layout.String()).Add(float64(size))
}

// RecordDecoded records n events deserialized
func (m *Metrics) RecordDecoded(layout codec.Layout, n int) {
	if m == nil {
		return
	}
	m.eventsDecodedTotal.WithLabelValues(layout.String()).Add(float64(n))
}

// RecordDecodeError records a failed decode, labelled with the failing field
func (m *Metrics) RecordDecodeError(layout codec.Layout, err error) {
	if m == nil {
		return
	}
	field := "unknown"
	var decodeErr *codec.DecodeError
	if errors.As(err, &decodeErr) {
		field = decodeErr.Field
	}
	m.decodeErrorsTotal.WithLabelValues(layout.String(), field).Inc()
}

// RecordStoreOperation records a storage operation
func (m *Metrics) RecordStoreOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}

	m.storeOperationsTotal.WithLabelValues(operation, status).Inc()
	m.storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBlockAppended records one block written to the log
func (m *Metrics) RecordBlockAppended() {
	if m == nil {
		return
	}
	m.blocksAppendedTotal.Inc()
}

// RecordSegmentCreated records a new log segment
func (m *Metrics) RecordSegmentCreated() {
	if m == nil {
		return
	}
	m.segmentsCreatedTotal.Inc()
}

// RecordRecoveryTruncation records a truncated segment tail
func (m *Metrics) RecordRecoveryTruncation() {
	if m == nil {
		return
	}
	m.recoveryTruncations.Inc()
}

// UpdateStoreStats updates storage gauges
func (m *Metrics) UpdateStoreStats(objects int, dataSize int64) {
	if m == nil {
		return
	}
	m.storeObjects.Set(float64(objects))
	m.storeDataSizeBytes.Set(float64(dataSize))
}
