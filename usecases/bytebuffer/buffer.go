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
	"io"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
)

// Buffer is a fixed capacity block of memory with a write cursor (position)
// and a limit. A freshly cleared buffer has position 0 and limit == capacity.
//
// Writes advance the position. After Flip the written region [0, position)
// can be read back with Read, which advances the position up to the limit.
//
// A Buffer is not safe for concurrent mutation.
type Buffer struct {
	data     []byte
	position int
	limit    int

	// free releases the backing memory, nil for memory owned by the Go heap
	free func() error
}

func newBuffer(data []byte, free func() error) *Buffer {
	return &Buffer{
		data:  data,
		limit: len(data),
		free:  free,
	}
}

// NewHeapBuffer wraps a regular Go slice. It is mostly useful in tests and for
// callers that want to hand their own memory to code expecting a *Buffer.
func NewHeapBuffer(capacity int) *Buffer {
	return newBuffer(make([]byte, capacity), nil)
}

func (b *Buffer) Capacity() int {
	return len(b.data)
}

func (b *Buffer) Position() int {
	return b.position
}

func (b *Buffer) Limit() int {
	return b.limit
}

func (b *Buffer) Remaining() int {
	return b.limit - b.position
}

// Clear resets the cursors, it does not zero the content.
func (b *Buffer) Clear() {
	b.position = 0
	b.limit = len(b.data)
}

// Flip prepares the written region for reading.
func (b *Buffer) Flip() {
	b.limit = b.position
	b.position = 0
}

// SetPosition moves the cursor to an absolute position within [0, limit].
func (b *Buffer) SetPosition(pos int) {
	if pos < 0 || pos > b.limit {
		panic("bytebuffer: position out of range")
	}
	b.position = pos
}

// Write appends p at the current position. It either writes all of p or
// nothing, in which case ErrBufferFull is returned.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Remaining() {
		return 0, enterrors.ErrBufferFull
	}
	n := copy(b.data[b.position:b.limit], p)
	b.position += n
	return n, nil
}

func (b *Buffer) WriteByte(c byte) error {
	if b.Remaining() < 1 {
		return enterrors.ErrBufferFull
	}
	b.data[b.position] = c
	b.position++
	return nil
}

// Read copies from the current position up to the limit.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.Remaining() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.data[b.position:b.limit])
	b.position += n
	return n, nil
}

// Bytes returns the bytes written so far, i.e. [0, position). The slice
// aliases the buffer memory and is only valid while the buffer is on loan.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.position]
}

// Raw returns the whole backing memory [0, capacity).
func (b *Buffer) Raw() []byte {
	return b.data
}

func (b *Buffer) release() error {
	data := b.data
	b.data = nil
	b.position, b.limit = 0, 0
	if b.free == nil || data == nil {
		return nil
	}
	return b.free()
}
