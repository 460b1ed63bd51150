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

package bytebuffer

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weaviate/bytebufferpool/usecases/monitoring"
)

type acquireSource string

const (
	sourceQueue    acquireSource = "queue"
	sourceCreated  acquireSource = "created"
	sourceWaited   acquireSource = "waited"
	sourceUnpooled acquireSource = "unpooled"
	sourceExcess   acquireSource = "excess"
)

// Metrics is a per-pool view on the prometheus metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	queued      *prometheus.GaugeVec
	tracked     *prometheus.GaugeVec
	onLoan      *prometheus.GaugeVec
	maxBuffers  *prometheus.GaugeVec
	pooledBytes *prometheus.GaugeVec

	acquires      *prometheus.CounterVec
	releases      *prometheus.CounterVec
	cleared       *prometheus.CounterVec
	waitDurations prometheus.ObserverVec
}

func NewMetrics(promMetrics *monitoring.PrometheusMetrics, poolName string) *Metrics {
	if promMetrics == nil {
		return nil
	}

	labels := prometheus.Labels{"pool_name": poolName}
	return &Metrics{
		queued:        promMetrics.BufferPoolQueued.MustCurryWith(labels),
		tracked:       promMetrics.BufferPoolTracked.MustCurryWith(labels),
		onLoan:        promMetrics.BufferPoolOnLoan.MustCurryWith(labels),
		maxBuffers:    promMetrics.BufferPoolMaxBuffers.MustCurryWith(labels),
		pooledBytes:   promMetrics.BufferPoolPooledBytes.MustCurryWith(labels),
		acquires:      promMetrics.BufferPoolAcquires.MustCurryWith(labels),
		releases:      promMetrics.BufferPoolReleases.MustCurryWith(labels),
		cleared:       promMetrics.BufferPoolCleared.MustCurryWith(labels),
		waitDurations: promMetrics.BufferPoolWaitDurations.MustCurryWith(labels),
	}
}

func (m *Metrics) acquired(capacity int, source acquireSource) {
	if m == nil {
		return
	}

	m.acquires.With(prometheus.Labels{
		"capacity": strconv.Itoa(capacity),
		"source":   string(source),
	}).Inc()
}

func (m *Metrics) released(capacity int, ownership Ownership) {
	if m == nil {
		return
	}

	m.releases.With(prometheus.Labels{
		"capacity":  strconv.Itoa(capacity),
		"ownership": ownership.String(),
	}).Inc()
}

func (m *Metrics) waited(capacity int, took time.Duration) {
	if m == nil {
		return
	}

	m.waitDurations.With(prometheus.Labels{
		"capacity": strconv.Itoa(capacity),
	}).Observe(took.Seconds())
}

func (m *Metrics) clearedBuffers(capacity, count int) {
	if m == nil || count == 0 {
		return
	}

	m.cleared.With(prometheus.Labels{
		"capacity": strconv.Itoa(capacity),
	}).Add(float64(count))
}

// Observe records an occupancy snapshot.
func (m *Metrics) Observe(info SystemInfo) {
	if m == nil {
		return
	}

	for _, class := range info.Classes {
		labels := prometheus.Labels{"capacity": strconv.Itoa(class.Capacity)}
		m.queued.With(labels).Set(float64(class.Available))
		m.tracked.With(labels).Set(float64(class.Tracked))
		m.onLoan.With(labels).Set(float64(class.OnLoan))
		m.maxBuffers.With(labels).Set(float64(class.ConfiguredMax))
		m.pooledBytes.With(labels).Set(float64(class.TotalBytes))
	}
}
