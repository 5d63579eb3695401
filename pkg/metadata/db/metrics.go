// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"errors"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for database operations
var (
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zapprops_db_query_duration_seconds",
			Help:    "Duration of container store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "status"},
	)

	dbQueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapprops_db_queries_total",
			Help: "Total number of container store operations",
		},
		[]string{"operation", "status"},
	)

	dbConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapprops_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapprops_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		dbQueryDuration,
		dbQueryTotal,
		dbConnectionsActive,
		dbConnectionsIdle,
	)
}

// UpdateConnectionMetrics updates connection pool metrics from sql.DBStats
func UpdateConnectionMetrics(inUse, idle int) {
	dbConnectionsActive.Set(float64(inUse))
	dbConnectionsIdle.Set(float64(idle))
}

// metricStatus maps an error to the status label.
func metricStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrContainerNotFound), errors.Is(err, ErrSnapshotNotFound):
		return "not_found"
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrContainerExists),
		errors.Is(err, ErrSnapshotExists), errors.Is(err, ErrSnapshotLimit):
		return "conflict"
	case errors.Is(err, property.ErrInvalidProperty), errors.Is(err, property.ErrUnknownProperty):
		return "invalid"
	case errors.Is(err, ErrNotLeader):
		return "not_leader"
	default:
		return "error"
	}
}

// recordMetric records timing and status for an operation
func recordMetric(operation string, start time.Time, err error) {
	status := metricStatus(err)
	dbQueryDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	dbQueryTotal.WithLabelValues(operation, status).Inc()
}

// MetricsDB wraps a DB implementation and adds metrics instrumentation
type MetricsDB struct {
	db DB
}

// NewMetricsDB creates a new metrics-instrumented DB wrapper
func NewMetricsDB(db DB) *MetricsDB {
	return &MetricsDB{db: db}
}

// Unwrap returns the underlying DB implementation
func (m *MetricsDB) Unwrap() DB {
	return m.db
}

func (m *MetricsDB) Close() error {
	return m.db.Close()
}

// Ping checks the wrapped backend if it supports health checks.
func (m *MetricsDB) Ping(ctx context.Context) error {
	return Ping(ctx, m.db)
}

func (m *MetricsDB) Migrate(ctx context.Context) error {
	start := time.Now()
	err := m.db.Migrate(ctx)
	recordMetric("migrate", start, err)
	return err
}

func (m *MetricsDB) CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error {
	start := time.Now()
	err := m.db.CreateContainer(ctx, info, props)
	recordMetric("create_container", start, err)
	return err
}

func (m *MetricsDB) GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error) {
	start := time.Now()
	info, err := m.db.GetContainer(ctx, id)
	recordMetric("get_container", start, err)
	return info, err
}

func (m *MetricsDB) GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error) {
	start := time.Now()
	props, version, err := m.db.GetProperties(ctx, id, ids)
	recordMetric("get_properties", start, err)
	return props, version, err
}

func (m *MetricsDB) PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	start := time.Now()
	version, err := m.db.PutProperties(ctx, id, props, expectedVersion)
	recordMetric("put_properties", start, err)
	return version, err
}

func (m *MetricsDB) DestroyContainer(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := m.db.DestroyContainer(ctx, id)
	recordMetric("destroy_container", start, err)
	return err
}

func (m *MetricsDB) ListContainers(ctx context.Context, params *ListContainersParams) (*ListContainersResult, error) {
	start := time.Now()
	result, err := m.db.ListContainers(ctx, params)
	recordMetric("list_containers", start, err)
	return result, err
}

func (m *MetricsDB) AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error {
	start := time.Now()
	err := m.db.AddSnapshot(ctx, id, epoch, limit)
	recordMetric("add_snapshot", start, err)
	return err
}

func (m *MetricsDB) DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error {
	start := time.Now()
	err := m.db.DeleteSnapshot(ctx, id, epoch)
	recordMetric("delete_snapshot", start, err)
	return err
}

var _ DB = (*MetricsDB)(nil)
