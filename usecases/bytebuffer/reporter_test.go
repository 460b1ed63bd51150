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
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/bytebufferpool/usecases/monitoring"
)

func newMetricsTestPool(t *testing.T, counts map[int]int) (*BufferPool, *Metrics, *monitoring.PrometheusMetrics) {
	t.Helper()

	promMetrics := monitoring.NewPrometheusMetrics(prometheus.NewPedanticRegistry())
	metrics := NewMetrics(promMetrics, "test")
	pool, _ := newTestPool(t, testConfig(counts), WithName("test"), WithMetrics(metrics))
	return pool, metrics, promMetrics
}

func TestMetrics_Events(t *testing.T) {
	block := false
	cfg := testConfig(map[int]int{10: 1, 100: 0, 1000: 1})
	cfg.BlockOnExhaustedPool = &block

	promMetrics := monitoring.NewPrometheusMetrics(prometheus.NewPedanticRegistry())
	pool, _ := newTestPool(t, cfg, WithName("test"), WithMetrics(NewMetrics(promMetrics, "test")))
	ctx := context.Background()

	first, err := pool.Acquire(ctx, 10)
	require.Nil(t, err)
	excess, err := pool.Acquire(ctx, 10)
	require.Nil(t, err)
	unpooled, err := pool.Acquire(ctx, 50)
	require.Nil(t, err)
	first.Release()
	excess.Release()
	unpooled.Release()

	again, err := pool.Acquire(ctx, 10)
	require.Nil(t, err)
	again.Release()
	pool.Clear()

	acquires := promMetrics.BufferPoolAcquires
	assert.Equal(t, 1.0, testutil.ToFloat64(acquires.WithLabelValues("test", "10", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(acquires.WithLabelValues("test", "10", "excess")))
	assert.Equal(t, 1.0, testutil.ToFloat64(acquires.WithLabelValues("test", "10", "queue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(acquires.WithLabelValues("test", "50", "unpooled")))

	releases := promMetrics.BufferPoolReleases
	assert.Equal(t, 2.0, testutil.ToFloat64(releases.WithLabelValues("test", "10", "pooled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(releases.WithLabelValues("test", "10", "unpooled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(releases.WithLabelValues("test", "50", "unpooled")))

	assert.Equal(t, 1.0, testutil.ToFloat64(promMetrics.BufferPoolCleared.WithLabelValues("test", "10")))
}

func TestMetrics_WaitDuration(t *testing.T) {
	pool, _, promMetrics := newMetricsTestPool(t, map[int]int{10: 1})

	held, err := pool.Acquire(context.Background(), 10)
	require.Nil(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, 10)
	require.NotNil(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(promMetrics.BufferPoolWaitDurations,
		"byte_buffer_pool_wait_duration_seconds"))
}

func TestMetrics_Nil(t *testing.T) {
	assert.Nil(t, NewMetrics(nil, "test"))

	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.acquired(10, sourceQueue)
		metrics.released(10, Pooled)
		metrics.waited(10, time.Second)
		metrics.clearedBuffers(10, 3)
		metrics.Observe(SystemInfo{Classes: []ClassInfo{{Capacity: 10}}})
	})
}

func TestReporter(t *testing.T) {
	pool, metrics, promMetrics := newMetricsTestPool(t, map[int]int{10: 4, 100: 2})
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	a, err := pool.Acquire(ctx, 10)
	require.Nil(t, err)
	b, err := pool.Acquire(ctx, 10)
	require.Nil(t, err)
	b.Release()
	defer a.Release()

	t.Run("report once", func(t *testing.T) {
		reporter := NewReporter(pool, metrics, time.Hour, logger)
		reporter.Report()

		assert.Equal(t, 1.0, testutil.ToFloat64(promMetrics.BufferPoolQueued.WithLabelValues("test", "10")))
		assert.Equal(t, 2.0, testutil.ToFloat64(promMetrics.BufferPoolTracked.WithLabelValues("test", "10")))
		assert.Equal(t, 1.0, testutil.ToFloat64(promMetrics.BufferPoolOnLoan.WithLabelValues("test", "10")))
		assert.Equal(t, 4.0, testutil.ToFloat64(promMetrics.BufferPoolMaxBuffers.WithLabelValues("test", "10")))
		assert.Equal(t, 20.0, testutil.ToFloat64(promMetrics.BufferPoolPooledBytes.WithLabelValues("test", "10")))
		assert.Equal(t, 2.0, testutil.ToFloat64(promMetrics.BufferPoolMaxBuffers.WithLabelValues("test", "100")))
	})

	t.Run("start and stop", func(t *testing.T) {
		reporter := NewReporter(pool, metrics, 5*time.Millisecond, logger)
		reporter.Start()
		reporter.Start()
		assert.True(t, reporter.Running())

		c, err := pool.Acquire(ctx, 100)
		require.Nil(t, err)
		defer c.Release()

		assert.Eventually(t, func() bool {
			return testutil.ToFloat64(promMetrics.BufferPoolOnLoan.WithLabelValues("test", "100")) == 1.0
		}, 2*time.Second, 5*time.Millisecond)

		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		require.Nil(t, reporter.StopAndWait(stopCtx))
		assert.False(t, reporter.Running())
		require.Nil(t, reporter.StopAndWait(stopCtx))
	})
}
