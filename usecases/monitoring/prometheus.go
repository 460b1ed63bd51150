//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package monitoring

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
	// ReportInterval is how often pool occupancy is pushed into the gauges.
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
}

// UnmarshalJSON accepts the report interval as a duration string like "30s",
// the same way it is written in yaml, or as a number of nanoseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		ReportInterval json.RawMessage `json:"report_interval"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ReportInterval) == 0 || string(aux.ReportInterval) == "null" {
		return nil
	}

	interval, err := parseDuration(aux.ReportInterval)
	if err != nil {
		return errors.Wrap(err, "report_interval")
	}
	c.ReportInterval = interval
	return nil
}

func parseDuration(data []byte) (time.Duration, error) {
	if nanos, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		return time.Duration(nanos), nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return 0, err
	}
	return time.ParseDuration(str)
}

const (
	DefaultMetricsPort    = 2112
	DefaultReportInterval = 10 * time.Second
)

type PrometheusMetrics struct {
	Registerer prometheus.Registerer

	BufferPoolQueued      *prometheus.GaugeVec
	BufferPoolTracked     *prometheus.GaugeVec
	BufferPoolOnLoan      *prometheus.GaugeVec
	BufferPoolMaxBuffers  *prometheus.GaugeVec
	BufferPoolPooledBytes *prometheus.GaugeVec

	BufferPoolAcquires      *prometheus.CounterVec
	BufferPoolReleases      *prometheus.CounterVec
	BufferPoolCleared       *prometheus.CounterVec
	BufferPoolWaitDurations *prometheus.HistogramVec

	MetricsServerConnections prometheus.Gauge
}

// NewPrometheusMetrics registers all metrics with reg. Pass
// NoopRegisterer() to get working metric objects without exposing them.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = noop
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		Registerer: reg,

		BufferPoolQueued: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "byte_buffer_pool_queued_buffers",
			Help: "Number of buffers sitting in the pool ready to be acquired",
		}, []string{"pool_name", "capacity"}),
		BufferPoolTracked: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "byte_buffer_pool_tracked_buffers",
			Help: "Number of buffers known to the pool, queued or on loan",
		}, []string{"pool_name", "capacity"}),
		BufferPoolOnLoan: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "byte_buffer_pool_on_loan_buffers",
			Help: "Number of pooled buffers currently held by callers",
		}, []string{"pool_name", "capacity"}),
		BufferPoolMaxBuffers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "byte_buffer_pool_max_buffers",
			Help: "Configured maximum number of buffers per size class",
		}, []string{"pool_name", "capacity"}),
		BufferPoolPooledBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "byte_buffer_pool_pooled_bytes",
			Help: "Bytes held by tracked buffers per size class",
		}, []string{"pool_name", "capacity"}),

		BufferPoolAcquires: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "byte_buffer_pool_acquires_total",
			Help: "Acquired buffers by size class and how they were obtained",
		}, []string{"pool_name", "capacity", "source"}),
		BufferPoolReleases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "byte_buffer_pool_releases_total",
			Help: "Released buffers by size class and ownership",
		}, []string{"pool_name", "capacity", "ownership"}),
		BufferPoolCleared: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "byte_buffer_pool_cleared_buffers_total",
			Help: "Queued buffers dropped by clearing the pool",
		}, []string{"pool_name", "capacity"}),
		BufferPoolWaitDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "byte_buffer_pool_wait_duration_seconds",
			Help:    "Time spent blocked waiting for an exhausted size class",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"pool_name", "capacity"}),

		MetricsServerConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "byte_buffer_pool_metrics_open_connections",
			Help: "Number of open connections to the metrics endpoint",
		}),
	}
}
