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
	"io"

	"github.com/pkg/errors"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
)

const DefaultMaxCapacity = MaxBufferCapacity

var (
	_ io.Writer       = (*GrowableBufferOutput)(nil)
	_ io.ByteWriter   = (*GrowableBufferOutput)(nil)
	_ io.StringWriter = (*GrowableBufferOutput)(nil)
	_ io.WriterTo     = (*GrowableBufferOutput)(nil)
	_ io.Closer       = (*GrowableBufferOutput)(nil)
)

// GrowableBufferOutput is an append-only sink backed by a pooled buffer. When
// a write does not fit, the content is moved to a larger pooled buffer and
// the old one is released. Any *Buffer obtained from CurrentBuffer before such
// a move must not be used any more.
//
// It is not safe for concurrent use.
type GrowableBufferOutput struct {
	ctx         context.Context
	pool        *BufferPool
	current     *PooledBuffer
	written     int
	maxCapacity int
	closed      bool
}

type OutputOption func(o *GrowableBufferOutput)

// WithMaxCapacity limits how far the output may grow. The limit applies even
// if the underlying buffer happens to be larger.
func WithMaxCapacity(maxCapacity int) OutputOption {
	return func(o *GrowableBufferOutput) {
		o.maxCapacity = maxCapacity
	}
}

// NewGrowableBufferOutput acquires the first buffer right away. ctx is used
// for this and every later acquire caused by growth, so it should live as
// long as the output.
func NewGrowableBufferOutput(ctx context.Context, pool *BufferPool, initialCapacity int,
	opts ...OutputOption,
) (*GrowableBufferOutput, error) {
	o := &GrowableBufferOutput{
		ctx:         ctx,
		pool:        pool,
		maxCapacity: DefaultMaxCapacity,
	}
	for _, opt := range opts {
		opt(o)
	}

	if initialCapacity > o.maxCapacity {
		return nil, enterrors.NewOverflow(initialCapacity, o.maxCapacity)
	}

	current, err := pool.Acquire(ctx, initialCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "acquire initial output buffer")
	}
	o.current = current
	return o, nil
}

// Capacity is the number of bytes that fit without growing.
func (o *GrowableBufferOutput) Capacity() int {
	if o.closed {
		return 0
	}
	return min(o.current.Capacity(), o.maxCapacity)
}

func (o *GrowableBufferOutput) MaxCapacity() int {
	return o.maxCapacity
}

// Len is the number of bytes written so far.
func (o *GrowableBufferOutput) Len() int {
	return o.written
}

func (o *GrowableBufferOutput) Write(p []byte) (int, error) {
	if err := o.ensure(len(p)); err != nil {
		return 0, err
	}

	n, err := o.cursor().Write(p)
	o.written += n
	return n, err
}

func (o *GrowableBufferOutput) WriteByte(c byte) error {
	if err := o.ensure(1); err != nil {
		return err
	}

	if err := o.cursor().WriteByte(c); err != nil {
		return err
	}
	o.written++
	return nil
}

func (o *GrowableBufferOutput) WriteString(s string) (int, error) {
	return o.Write([]byte(s))
}

// ensure grows the output so that n more bytes fit.
func (o *GrowableBufferOutput) ensure(n int) error {
	if o.closed {
		return enterrors.ErrOutputClosed
	}

	required := o.written + n
	if required <= o.Capacity() {
		return nil
	}
	if required > o.maxCapacity {
		return enterrors.NewOverflow(required, o.maxCapacity)
	}

	newCapacity := max(o.Capacity(), 1)
	for newCapacity < required {
		newCapacity = min(newCapacity*2, o.maxCapacity)
	}

	return o.grow(newCapacity)
}

// grow only releases the old buffer once the new one holds a copy of the
// written bytes, so a failed acquire leaves the output as it was.
func (o *GrowableBufferOutput) grow(newCapacity int) error {
	next, err := o.pool.Acquire(o.ctx, newCapacity)
	if err != nil {
		return errors.Wrapf(err, "grow output to %d bytes", newCapacity)
	}

	if _, err := next.Buffer().Write(o.current.Buffer().Raw()[:o.written]); err != nil {
		next.Release()
		return errors.Wrapf(err, "copy %d bytes to grown output", o.written)
	}

	old := o.current
	o.current = next
	old.Release()
	return nil
}

// cursor positions the current buffer at the end of the written content.
// Callers may have moved the cursors of CurrentBuffer, e.g. to read it back,
// so they are never trusted.
func (o *GrowableBufferOutput) cursor() *Buffer {
	buf := o.current.Buffer()
	buf.Clear()
	buf.SetPosition(o.written)
	return buf
}

// CurrentBuffer returns the live buffer holding the content in
// [0, Len). Moving its cursors, e.g. Flip and Read, does not affect the
// output.
func (o *GrowableBufferOutput) CurrentBuffer() *Buffer {
	if o.closed {
		return nil
	}
	return o.current.Buffer()
}

// Bytes returns the written content. The slice aliases pooled memory and is
// only valid until the next growth, Reset or Close.
func (o *GrowableBufferOutput) Bytes() []byte {
	if o.closed {
		return nil
	}
	return o.current.Buffer().Raw()[:o.written]
}

// Reset discards the written content but keeps the current buffer.
func (o *GrowableBufferOutput) Reset() {
	if o.closed {
		return
	}
	o.written = 0
	o.current.Buffer().Clear()
}

func (o *GrowableBufferOutput) WriteTo(w io.Writer) (int64, error) {
	if o.closed {
		return 0, enterrors.ErrOutputClosed
	}
	n, err := w.Write(o.Bytes())
	return int64(n), err
}

// Close releases the current buffer. It is safe to call more than once.
func (o *GrowableBufferOutput) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	o.current.Release()
	o.current = nil
	return nil
}
