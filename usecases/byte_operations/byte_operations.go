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

// Package byte_operations provides helper functions to (un-) marshal values
// from or into a pooled buffer, advancing the buffer cursor
package byte_operations

import (
	"encoding/binary"
	"io"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
	"github.com/weaviate/bytebufferpool/usecases/bytebuffer"
)

const (
	Uint16Len = 2
	Uint32Len = 4
	Uint64Len = 8
)

type ByteOperations struct {
	Buffer *bytebuffer.Buffer
}

func New(buf *bytebuffer.Buffer) *ByteOperations {
	return &ByteOperations{Buffer: buf}
}

func (bo *ByteOperations) Position() int {
	return bo.Buffer.Position()
}

// next returns the n bytes at the cursor and moves the cursor past them.
func (bo *ByteOperations) next(n int) ([]byte, bool) {
	pos := bo.Buffer.Position()
	if n < 0 || n > bo.Buffer.Remaining() {
		return nil, false
	}
	bo.Buffer.SetPosition(pos + n)
	return bo.Buffer.Raw()[pos : pos+n], true
}

func (bo *ByteOperations) WriteUint64(value uint64) error {
	out, ok := bo.next(Uint64Len)
	if !ok {
		return enterrors.ErrBufferFull
	}
	binary.LittleEndian.PutUint64(out, value)
	return nil
}

func (bo *ByteOperations) WriteUint32(value uint32) error {
	out, ok := bo.next(Uint32Len)
	if !ok {
		return enterrors.ErrBufferFull
	}
	binary.LittleEndian.PutUint32(out, value)
	return nil
}

func (bo *ByteOperations) WriteUint16(value uint16) error {
	out, ok := bo.next(Uint16Len)
	if !ok {
		return enterrors.ErrBufferFull
	}
	binary.LittleEndian.PutUint16(out, value)
	return nil
}

func (bo *ByteOperations) WriteByte(b byte) error {
	return bo.Buffer.WriteByte(b)
}

func (bo *ByteOperations) CopyBytesToBuffer(copyBytes []byte) error {
	_, err := bo.Buffer.Write(copyBytes)
	return err
}

// Writes a uint32 length indicator about the bytes that are about to follow,
// then writes the bytes themselves. Nothing is written if both do not fit.
func (bo *ByteOperations) CopyBytesToBufferWithUint32LengthIndicator(copyBytes []byte) error {
	if Uint32Len+len(copyBytes) > bo.Buffer.Remaining() {
		return enterrors.ErrBufferFull
	}
	if err := bo.WriteUint32(uint32(len(copyBytes))); err != nil {
		return err
	}
	return bo.CopyBytesToBuffer(copyBytes)
}

func (bo *ByteOperations) ReadUint64() (uint64, error) {
	in, ok := bo.next(Uint64Len)
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint64(in), nil
}

func (bo *ByteOperations) ReadUint32() (uint32, error) {
	in, ok := bo.next(Uint32Len)
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint32(in), nil
}

func (bo *ByteOperations) ReadUint16() (uint16, error) {
	in, ok := bo.next(Uint16Len)
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint16(in), nil
}

// ReadBytesFromBuffer returns a sub slice of the buffer memory, it is only
// valid while the buffer is on loan.
func (bo *ByteOperations) ReadBytesFromBuffer(length int) ([]byte, error) {
	in, ok := bo.next(length)
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return in, nil
}

func (bo *ByteOperations) ReadBytesFromBufferWithUint32LengthIndicator() ([]byte, error) {
	pos := bo.Buffer.Position()
	bufLen, err := bo.ReadUint32()
	if err != nil {
		return nil, err
	}
	in, err := bo.ReadBytesFromBuffer(int(bufLen))
	if err != nil {
		bo.Buffer.SetPosition(pos)
		return nil, err
	}
	return in, nil
}

// CompositeKeyLen is the number of bytes WriteCompositeKey needs for parts.
func CompositeKeyLen(parts ...[]byte) int {
	size := Uint16Len
	for _, part := range parts {
		size += Uint32Len + len(part)
	}
	return size
}

// WriteCompositeKey writes the number of parts followed by every part with
// its length indicator.
func (bo *ByteOperations) WriteCompositeKey(parts ...[]byte) error {
	if CompositeKeyLen(parts...) > bo.Buffer.Remaining() {
		return enterrors.ErrBufferFull
	}
	if err := bo.WriteUint16(uint16(len(parts))); err != nil {
		return err
	}
	for _, part := range parts {
		if err := bo.CopyBytesToBufferWithUint32LengthIndicator(part); err != nil {
			return err
		}
	}
	return nil
}

// ReadCompositeKey is the counterpart of WriteCompositeKey. The parts alias
// the buffer memory.
func (bo *ByteOperations) ReadCompositeKey() ([][]byte, error) {
	count, err := bo.ReadUint16()
	if err != nil {
		return nil, err
	}
	parts := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		part, err := bo.ReadBytesFromBufferWithUint32LengthIndicator()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}
