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
	"sync/atomic"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
)

// Ownership tells whether a loaned buffer goes back into a size class queue
// on release or is freed.
type Ownership int

const (
	// Pooled buffers are tracked by their size class and re-queued on release.
	Pooled Ownership = iota
	// Unpooled buffers were allocated outside of the size class accounting,
	// either because the requested capacity is not pooled or as an excess
	// buffer of an exhausted class. They are freed on release.
	Unpooled
)

func (o Ownership) String() string {
	switch o {
	case Pooled:
		return "pooled"
	case Unpooled:
		return "unpooled"
	default:
		return "unknown"
	}
}

// PooledBuffer is the single-owner handle for a buffer on loan from a
// BufferPool. Release must be called exactly once. Any later access to the
// buffer through the handle panics.
type PooledBuffer struct {
	buf       *Buffer
	ownership Ownership
	pool      *BufferPool
	released  atomic.Bool
}

// Buffer returns the loaned buffer. It panics if the handle was released.
func (pb *PooledBuffer) Buffer() *Buffer {
	if pb.released.Load() {
		panic(enterrors.ErrReleased)
	}
	return pb.buf
}

func (pb *PooledBuffer) Capacity() int {
	return pb.Buffer().Capacity()
}

func (pb *PooledBuffer) Ownership() Ownership {
	return pb.ownership
}

func (pb *PooledBuffer) IsPooled() bool {
	return pb.ownership == Pooled
}

func (pb *PooledBuffer) Released() bool {
	return pb.released.Load()
}

// Release hands the buffer back to the pool. Calling it again is a no-op, so
// it can be deferred right after a successful acquire even if the buffer is
// released explicitly on the happy path.
func (pb *PooledBuffer) Release() {
	if pb == nil || !pb.released.CompareAndSwap(false, true) {
		return
	}
	pb.pool.release(pb.buf, pb.ownership)
	pb.buf = nil
}

// PooledBufferPair holds a key and a value buffer acquired together.
type PooledBufferPair struct {
	key   *PooledBuffer
	value *PooledBuffer
}

func (p *PooledBufferPair) KeyBuffer() *Buffer {
	return p.key.Buffer()
}

func (p *PooledBufferPair) ValueBuffer() *Buffer {
	return p.value.Buffer()
}

func (p *PooledBufferPair) Key() *PooledBuffer {
	return p.key
}

func (p *PooledBufferPair) Value() *PooledBuffer {
	return p.value
}

// Release releases both buffers.
func (p *PooledBufferPair) Release() {
	if p == nil {
		return
	}
	p.key.Release()
	p.value.Release()
}
