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

// Package bytebuffer implements a bounded, self-populating pool of fixed
// capacity buffers, plus a growable output built on top of it.
//
// Buffers come in size classes whose capacities are powers of ten. A request
// for a buffer is served from the smallest class that fits, so a request for
// 50 bytes always gets a buffer of capacity 100. Each class has its own queue
// of available buffers and its own counter of known buffers, so callers only
// contend with others that want the same size. Buffers are created on demand
// up to the configured maximum of their class. Once a class is exhausted,
// acquire blocks until another caller releases a buffer of that class.
//
// Requests above the largest configured class, or for a class configured
// with a count of zero, are served with unpooled buffers that are allocated
// on demand and freed on release.
//
// Buffers are cleared before they are handed out. Once a buffer has been
// released it must not be used any more.
package bytebuffer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
)

// BufferPool is safe for concurrent use. Construct it once and pass it to
// every consumer.
type BufferPool struct {
	name             string
	config           Config
	table            *SizeClassTable
	allocator        Allocator
	logger           logrus.FieldLogger
	metrics          *Metrics
	blockOnExhausted bool

	// drainedSignals wakes up blocked acquirers after Clear lowered the
	// tracked counts, so they can create a buffer instead of waiting for a
	// release that may never come. Only touched on the blocking path.
	drainedLock    sync.Mutex
	drainedSignals []chan struct{}
}

type Option func(p *BufferPool)

// WithAllocator overrides the allocator selected in the config.
func WithAllocator(allocator Allocator) Option {
	return func(p *BufferPool) {
		p.allocator = allocator
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(p *BufferPool) {
		p.metrics = metrics
	}
}

func WithName(name string) Option {
	return func(p *BufferPool) {
		p.name = name
	}
}

func NewBufferPool(config Config, logger logrus.FieldLogger, opts ...Option) (*BufferPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &BufferPool{
		name:             "default",
		config:           config,
		logger:           logger,
		blockOnExhausted: config.blockOnExhausted(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.allocator == nil {
		allocator, err := NewAllocator(config.Allocator)
		if err != nil {
			return nil, enterrors.NewConfigurationError("%s", err)
		}
		p.allocator = allocator
	}
	p.logger = logger.WithField("pool_name", p.name)

	p.table = NewSizeClassTable(config.PooledByteBufferCounts,
		config.WarningThresholdPercentage, p.logger)
	p.drainedSignals = make([]chan struct{}, p.table.Len())
	for i := range p.drainedSignals {
		p.drainedSignals[i] = make(chan struct{})
	}

	p.logInit()
	return p, nil
}

func (p *BufferPool) logInit() {
	var maxPooledBytes uint64
	details := make([]string, 0, p.table.Len())
	for _, sc := range p.table.classes {
		configured := "default"
		if sc.configuredCount != nil {
			configured = fmt.Sprint(*sc.configuredCount)
		}
		classBytes := uint64(sc.capacity) * uint64(sc.maxCount)
		maxPooledBytes += classBytes

		details = append(details, fmt.Sprintf("%d: configured=%s effective=%d warn_at=%d max_pooled=%s",
			sc.capacity, configured, sc.maxCount, sc.warningThreshold, humanize.Bytes(classBytes)))
	}

	p.logger.WithField("action", "byte_buffer_pool_init").
		WithField("warning_threshold_percentage", p.config.WarningThresholdPercentage).
		WithField("block_on_exhausted_pool", p.blockOnExhausted).
		WithField("total_max_pooled", humanize.Bytes(maxPooledBytes)).
		Infof("initialising byte buffer pool, size classes: [%s]", strings.Join(details, ", "))

	totalMemory := memory.TotalMemory()
	pct := uint64(p.config.MemUseWarningPercentage)
	if pct > 0 && totalMemory > 0 && maxPooledBytes > totalMemory/100*pct {
		p.logger.WithField("action", "byte_buffer_pool_init").
			WithField("total_max_pooled", humanize.Bytes(maxPooledBytes)).
			WithField("total_memory", humanize.Bytes(totalMemory)).
			Warnf("fully populated pool would use more than %d%% of the system memory", pct)
	}
}

// Acquire returns a buffer with a capacity of at least minCapacity, cleared
// and ready for writing. Within the pooled range the capacity is exactly the
// capacity of the size class.
//
// Acquire blocks only if the size class is at its maximum and none of its
// buffers are available. If ctx is done while blocked, an error wrapping
// ErrWaitInterrupted is returned and nothing is taken from the pool.
func (p *BufferPool) Acquire(ctx context.Context, minCapacity int) (*PooledBuffer, error) {
	buf, ownership, err := p.acquire(ctx, minCapacity)
	if err != nil {
		return nil, err
	}
	return &PooledBuffer{buf: buf, ownership: ownership, pool: p}, nil
}

func (p *BufferPool) acquire(ctx context.Context, minCapacity int) (*Buffer, Ownership, error) {
	minCapacity = max(minCapacity, 0)
	offset := p.table.Resolve(minCapacity)
	sc := p.table.class(offset)
	if sc == nil {
		return p.allocateUnpooled(minCapacity)
	}

	select {
	case buf := <-sc.queue:
		buf.Clear()
		p.metrics.acquired(sc.capacity, sourceQueue)
		return buf, Pooled, nil
	default:
	}

	buf, err := p.createIfAllowed(sc)
	if err != nil || buf != nil {
		return buf, Pooled, err
	}

	if !p.blockOnExhausted {
		return p.allocateExcess(sc)
	}

	return p.waitForBuffer(ctx, sc)
}

// createIfAllowed returns nil without error if the class is at its maximum.
func (p *BufferPool) createIfAllowed(sc *sizeClass) (*Buffer, error) {
	count := sc.reserve()
	if count == 0 {
		return nil, nil
	}

	buf, err := p.allocator.Allocate(sc.capacity)
	if err != nil {
		sc.tracked.Add(-1)
		return nil, errors.Wrapf(err, "allocate pooled buffer of capacity %d", sc.capacity)
	}

	switch count {
	case int64(sc.warningThreshold):
		p.logger.WithField("action", "byte_buffer_pool_threshold").
			WithField("capacity", sc.capacity).
			WithField("tracked", count).
			WithField("max", sc.maxCount).
			Warnf("hit %d%% (%d) of the limit of %d for pooled buffers of size %d",
				p.config.WarningThresholdPercentage, sc.warningThreshold, sc.maxCount, sc.capacity)
	case int64(sc.maxCount):
		p.logger.WithField("action", "byte_buffer_pool_limit").
			WithField("capacity", sc.capacity).
			WithField("tracked", count).
			WithField("max", sc.maxCount).
			Warnf("hit limit of %d for pooled buffers of size %d, further requests for this size "+
				"will have to wait for a release, consider changing the pool settings",
				sc.maxCount, sc.capacity)
	}

	p.metrics.acquired(sc.capacity, sourceCreated)
	return buf, nil
}

func (p *BufferPool) waitForBuffer(ctx context.Context, sc *sizeClass) (*Buffer, Ownership, error) {
	start := time.Now()
	p.logger.WithField("action", "byte_buffer_pool_wait").
		WithField("capacity", sc.capacity).
		Debug("size class exhausted, waiting for a buffer to be released")

	for {
		drained := p.drainedSignal(sc.offset)

		// Clear may have lowered the tracked count since the last attempt
		buf, err := p.createIfAllowed(sc)
		if err != nil || buf != nil {
			return buf, Pooled, err
		}

		select {
		case buf := <-sc.queue:
			buf.Clear()
			p.metrics.acquired(sc.capacity, sourceWaited)
			p.metrics.waited(sc.capacity, time.Since(start))
			return buf, Pooled, nil
		case <-drained:
		case <-ctx.Done():
			p.metrics.waited(sc.capacity, time.Since(start))
			p.logger.WithField("action", "byte_buffer_pool_wait").
				WithField("capacity", sc.capacity).
				WithError(ctx.Err()).
				Debug("interrupted while waiting for a buffer")
			return nil, Pooled, enterrors.NewWaitInterrupted(sc.capacity, ctx.Err())
		}
	}
}

func (p *BufferPool) allocateUnpooled(minCapacity int) (*Buffer, Ownership, error) {
	p.logger.WithField("action", "byte_buffer_pool_unpooled").
		WithField("capacity", minCapacity).
		Warnf("using un-pooled buffer, size: %s", humanize.Comma(int64(minCapacity)))

	buf, err := p.allocator.Allocate(minCapacity)
	if err != nil {
		return nil, Unpooled, errors.Wrapf(err, "allocate unpooled buffer of capacity %d", minCapacity)
	}
	p.metrics.acquired(minCapacity, sourceUnpooled)
	return buf, Unpooled, nil
}

func (p *BufferPool) allocateExcess(sc *sizeClass) (*Buffer, Ownership, error) {
	p.logger.WithField("action", "byte_buffer_pool_excess").
		WithField("capacity", sc.capacity).
		Debug("creating new buffer beyond the pool limit")

	buf, err := p.allocator.Allocate(sc.capacity)
	if err != nil {
		return nil, Unpooled, errors.Wrapf(err, "allocate excess buffer of capacity %d", sc.capacity)
	}
	p.metrics.acquired(sc.capacity, sourceExcess)
	return buf, Unpooled, nil
}

// Release returns the buffer of pb to the pool. It is equivalent to
// pb.Release().
func (p *BufferPool) Release(pb *PooledBuffer) {
	pb.Release()
}

func (p *BufferPool) release(buf *Buffer, ownership Ownership) {
	if buf == nil {
		return
	}
	capacity := buf.Capacity()
	p.metrics.released(capacity, ownership)

	if ownership == Unpooled {
		p.free(buf)
		return
	}

	sc := p.table.class(p.table.Resolve(capacity))
	if sc == nil || sc.capacity != capacity {
		panic(enterrors.NewInvariantViolation(
			"pooled buffer of capacity %d does not belong to any size class", capacity))
	}

	// capacity for this buffer was reserved when it was created, so there
	// is always room in the queue
	select {
	case sc.queue <- buf:
	default:
		panic(enterrors.NewInvariantViolation(
			"no room to return buffer of capacity %d (queued: %d, tracked: %d, max: %d)",
			capacity, len(sc.queue), sc.tracked.Load(), sc.maxCount))
	}
}

func (p *BufferPool) free(buf *Buffer) {
	capacity := buf.Capacity()
	if err := p.allocator.Free(buf); err != nil {
		p.logger.WithField("action", "byte_buffer_pool_free").
			WithField("capacity", capacity).
			WithError(err).
			Error("error freeing buffer")
	}
}

// AcquirePair acquires a key buffer and then a value buffer. If acquiring the
// value buffer fails, the key buffer is released again.
//
// While blocked on the value buffer the caller still holds the key buffer, so
// size classes should be configured to make this rare.
func (p *BufferPool) AcquirePair(ctx context.Context, minKeyCapacity, minValueCapacity int,
) (*PooledBufferPair, error) {
	key, err := p.Acquire(ctx, minKeyCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "acquire key buffer")
	}
	value, err := p.Acquire(ctx, minValueCapacity)
	if err != nil {
		key.Release()
		return nil, errors.Wrap(err, "acquire value buffer")
	}
	return &PooledBufferPair{key: key, value: value}, nil
}

// WithBuffer runs fn with a buffer of at least minCapacity and releases the
// buffer afterwards, also if fn fails or panics.
func (p *BufferPool) WithBuffer(ctx context.Context, minCapacity int, fn func(buf *Buffer) error) error {
	pb, err := p.Acquire(ctx, minCapacity)
	if err != nil {
		return err
	}
	defer pb.Release()

	return fn(pb.Buffer())
}

// WithBufferPair is the key/value variant of WithBuffer.
func (p *BufferPool) WithBufferPair(ctx context.Context, minKeyCapacity, minValueCapacity int,
	fn func(key, value *Buffer) error,
) error {
	pair, err := p.AcquirePair(ctx, minKeyCapacity, minValueCapacity)
	if err != nil {
		return err
	}
	defer pair.Release()

	return fn(pair.KeyBuffer(), pair.ValueBuffer())
}

// GetWithBuffer is like WithBuffer but returns the result of fn.
func GetWithBuffer[T any](ctx context.Context, p *BufferPool, minCapacity int,
	fn func(buf *Buffer) (T, error),
) (T, error) {
	var zero T
	pb, err := p.Acquire(ctx, minCapacity)
	if err != nil {
		return zero, err
	}
	defer pb.Release()

	return fn(pb.Buffer())
}

// Clear drops all buffers that are currently queued and lowers the tracked
// counts accordingly. Buffers on loan are not affected and can be released as
// usual.
func (p *BufferPool) Clear() {
	msgs := make([]string, 0, p.table.Len())
	for _, sc := range p.table.classes {
		if !sc.pooled() {
			continue
		}

		drained := 0
	drain:
		for {
			select {
			case buf := <-sc.queue:
				p.free(buf)
				drained++
			default:
				break drain
			}
		}

		// queue first, counter second, so queued <= tracked holds throughout
		sc.tracked.Add(-int64(drained))
		if drained > 0 {
			p.signalDrained(sc.offset)
		}
		p.metrics.clearedBuffers(sc.capacity, drained)
		msgs = append(msgs, fmt.Sprintf("%d:%d", sc.capacity, drained))
	}

	p.logger.WithField("action", "byte_buffer_pool_clear").
		Infof("cleared the following buffers from the pool (buffer size:number cleared) - %s",
			strings.Join(msgs, ", "))
}

func (p *BufferPool) drainedSignal(offset int) <-chan struct{} {
	p.drainedLock.Lock()
	defer p.drainedLock.Unlock()

	return p.drainedSignals[offset]
}

func (p *BufferPool) signalDrained(offset int) {
	p.drainedLock.Lock()
	defer p.drainedLock.Unlock()

	close(p.drainedSignals[offset])
	p.drainedSignals[offset] = make(chan struct{})
}

// CurrentPoolSize is the number of buffers sitting in the pool across all
// size classes. It is meant for diagnostics only.
func (p *BufferPool) CurrentPoolSize() int {
	size := 0
	for _, sc := range p.table.classes {
		size += sc.queued()
	}
	return size
}

// PooledBufferCount is the number of buffers known to the pool for the size
// class serving minCapacity, i.e. queued or on loan.
func (p *BufferPool) PooledBufferCount(minCapacity int) int {
	sc := p.table.class(p.table.Resolve(minCapacity))
	if sc == nil {
		return 0
	}
	return int(sc.tracked.Load())
}

// AvailableBufferCount is the number of queued buffers for the size class
// serving minCapacity.
func (p *BufferPool) AvailableBufferCount(minCapacity int) int {
	sc := p.table.class(p.table.Resolve(minCapacity))
	if sc == nil {
		return 0
	}
	return sc.queued()
}

func (p *BufferPool) Name() string {
	return p.name
}

func (p *BufferPool) SizeClasses() *SizeClassTable {
	return p.table
}

func (p *BufferPool) String() string {
	var pooledBytes uint64
	pools := make([]string, 0, p.table.Len())
	for _, sc := range p.table.classes {
		if queued := sc.queued(); queued > 0 {
			pools = append(pools, fmt.Sprintf("%d:%d", sc.capacity, queued))
			pooledBytes += uint64(sc.capacity) * uint64(queued)
		}
	}

	return fmt.Sprintf("BufferPool %s - Pooled buffer count: %d, pooled size: %s, pools: {%s}",
		p.name, p.CurrentPoolSize(), humanize.Bytes(pooledBytes), strings.Join(pools, ", "))
}
