// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package compression

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamBytesRaw = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapprops",
			Subsystem: "compression",
			Name:      "raw_bytes_total",
			Help:      "Bytes written to compressed streams before compression",
		},
		[]string{"algorithm"},
	)

	streamBytesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapprops",
			Subsystem: "compression",
			Name:      "stored_bytes_total",
			Help:      "Bytes emitted by compressed streams, excluding headers",
		},
		[]string{"algorithm"},
	)

	streamRatio = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zapprops",
			Subsystem: "compression",
			Name:      "ratio",
			Help:      "Compression ratio (raw_bytes / stored_bytes) per stream",
			Buckets:   []float64{1.0, 1.25, 1.5, 2.0, 3.0, 4.0, 5.0, 10.0},
		},
		[]string{"algorithm"},
	)
)

func observe(algo Algorithm, raw, stored int64) {
	label := algo.String()
	streamBytesRaw.WithLabelValues(label).Add(float64(raw))
	streamBytesStored.WithLabelValues(label).Add(float64(stored))
	if stored > 0 {
		streamRatio.WithLabelValues(label).Observe(float64(raw) / float64(stored))
	}
}
