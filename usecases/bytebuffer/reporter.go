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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
	"github.com/weaviate/bytebufferpool/usecases/monitoring"
)

// Reporter periodically pushes the occupancy of a pool into its metrics.
type Reporter struct {
	sync.Mutex

	pool     *BufferPool
	metrics  *Metrics
	interval time.Duration
	logger   logrus.FieldLogger

	running    bool
	stopSignal chan struct{}
	stopped    chan struct{}
}

func NewReporter(pool *BufferPool, metrics *Metrics, interval time.Duration,
	logger logrus.FieldLogger,
) *Reporter {
	if interval <= 0 {
		interval = monitoring.DefaultReportInterval
	}
	return &Reporter{
		pool:     pool,
		metrics:  metrics,
		interval: interval,
		logger:   logger.WithField("action", "byte_buffer_pool_report"),
	}
}

// Report records a single snapshot right away.
func (r *Reporter) Report() {
	r.metrics.Observe(r.pool.SystemInfo())
}

// Starts reporting, does not block
// Does nothing if already started
func (r *Reporter) Start() {
	r.Lock()
	defer r.Unlock()

	if r.running {
		return
	}

	stopSignal := make(chan struct{})
	stopped := make(chan struct{})
	r.stopSignal, r.stopped = stopSignal, stopped

	enterrors.GoWrapper(func() {
		defer close(stopped)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.Report()
		for {
			select {
			case <-stopSignal:
				return
			case <-ticker.C:
				r.Report()
			}
		}
	}, r.logger)

	r.running = true
	r.logger.WithField("interval", r.interval.String()).Debug("started pool reporter")
}

// StopAndWait stops reporting and waits for the background goroutine to exit
// or ctx to expire, whichever comes first.
func (r *Reporter) StopAndWait(ctx context.Context) error {
	r.Lock()
	if !r.running {
		r.Unlock()
		return nil
	}
	close(r.stopSignal)
	r.running = false
	stopped := r.stopped
	r.Unlock()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) Running() bool {
	r.Lock()
	defer r.Unlock()

	return r.running
}
