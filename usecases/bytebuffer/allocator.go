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
	"fmt"

	"github.com/pkg/errors"

	"github.com/weaviate/bytebufferpool/usecases/mmap"
)

const (
	AllocatorHeap = "heap"
	AllocatorMmap = "mmap"
)

// Allocator is the raw buffer allocation primitive used by the pool. Buffers
// returned by Allocate have a capacity of exactly the requested size.
type Allocator interface {
	Allocate(capacity int) (*Buffer, error)
	// Free gives the memory of a buffer back. The buffer must not be used
	// afterwards.
	Free(buf *Buffer) error
}

func NewAllocator(name string) (Allocator, error) {
	switch name {
	case AllocatorHeap:
		return HeapAllocator{}, nil
	case AllocatorMmap, "":
		return MmapAllocator{}, nil
	default:
		return nil, fmt.Errorf("unknown allocator %q, use %q or %q", name, AllocatorHeap, AllocatorMmap)
	}
}

// HeapAllocator allocates on the Go heap, Free leaves the memory to the
// garbage collector.
type HeapAllocator struct{}

func (HeapAllocator) Allocate(capacity int) (*Buffer, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("allocate buffer: negative capacity %d", capacity)
	}
	return newBuffer(make([]byte, capacity), nil), nil
}

func (HeapAllocator) Free(buf *Buffer) error {
	return buf.release()
}

// MmapAllocator allocates anonymous mappings outside of the Go heap.
type MmapAllocator struct{}

func (MmapAllocator) Allocate(capacity int) (*Buffer, error) {
	if capacity == 0 {
		// a zero length mapping is not possible, nothing to free either
		return newBuffer([]byte{}, nil), nil
	}

	m, err := mmap.MapAnonymous(capacity)
	if err != nil {
		return nil, errors.Wrapf(err, "map %d bytes", capacity)
	}
	return newBuffer(m, m.Unmap), nil
}

func (MmapAllocator) Free(buf *Buffer) error {
	return errors.Wrap(buf.release(), "unmap buffer")
}
