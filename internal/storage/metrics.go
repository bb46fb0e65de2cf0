package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var operationDurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

// Metrics holds the Prometheus instruments of a storage provider.
// A nil *Metrics records nothing.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BytesWritten      prometheus.Counter
	Registered        prometheus.Gauge
	FieldErrorsTotal  *prometheus.CounterVec
	MigrationsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the storage instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modsettings_storage_operations_total",
			Help: "Total number of storage operations.",
		}, []string{"op", "status"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modsettings_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds.",
			Buckets: operationDurationBuckets,
		}, []string{"op"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modsettings_storage_bytes_written_total",
			Help: "Total bytes written to settings files.",
		}),
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modsettings_storage_registered_settings",
			Help: "Number of registered settings instances.",
		}),
		FieldErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modsettings_storage_field_errors_total",
			Help: "Total number of persisted fields that failed to load.",
		}, []string{"settings_id"}),
		MigrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modsettings_storage_migrations_total",
			Help: "Total number of settings files migrated.",
		}, []string{"settings_id", "status"}),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.BytesWritten,
		m.Registered,
		m.FieldErrorsTotal,
		m.MigrationsTotal,
	)
	return m
}

// RecordOperation records one provider operation.
func (m *Metrics) RecordOperation(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.OperationsTotal.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordWrite records bytes written to a settings file.
func (m *Metrics) RecordWrite(n int) {
	if m == nil {
		return
	}
	m.BytesWritten.Add(float64(n))
}

// SetRegistered sets the number of registered instances.
func (m *Metrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.Registered.Set(float64(n))
}

// RecordFieldErrors records fields that kept their defaults on load.
func (m *Metrics) RecordFieldErrors(id string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FieldErrorsTotal.WithLabelValues(id).Add(float64(n))
}

// RecordMigration records a file migration.
func (m *Metrics) RecordMigration(id string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.MigrationsTotal.WithLabelValues(id, status).Inc()
}
