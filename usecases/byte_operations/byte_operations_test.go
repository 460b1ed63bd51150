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

package byte_operations

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
	"github.com/weaviate/bytebufferpool/usecases/bytebuffer"
)

func TestReadWriteScalars(t *testing.T) {
	bo := New(bytebuffer.NewHeapBuffer(100))

	require.Nil(t, bo.WriteUint64(1<<40+7))
	require.Nil(t, bo.WriteUint32(1<<20+3))
	require.Nil(t, bo.WriteUint16(513))
	require.Nil(t, bo.WriteByte(9))
	require.Nil(t, bo.CopyBytesToBufferWithUint32LengthIndicator([]byte("hello")))
	assert.Equal(t, Uint64Len+Uint32Len+Uint16Len+1+Uint32Len+5, bo.Position())

	bo.Buffer.Flip()

	u64, err := bo.ReadUint64()
	require.Nil(t, err)
	assert.Equal(t, uint64(1<<40+7), u64)

	u32, err := bo.ReadUint32()
	require.Nil(t, err)
	assert.Equal(t, uint32(1<<20+3), u32)

	u16, err := bo.ReadUint16()
	require.Nil(t, err)
	assert.Equal(t, uint16(513), u16)

	b, err := bo.ReadBytesFromBuffer(1)
	require.Nil(t, err)
	assert.Equal(t, []byte{9}, b)

	s, err := bo.ReadBytesFromBufferWithUint32LengthIndicator()
	require.Nil(t, err)
	assert.Equal(t, []byte("hello"), s)

	_, err = bo.ReadUint16()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteIsAllOrNothing(t *testing.T) {
	bo := New(bytebuffer.NewHeapBuffer(10))

	require.Nil(t, bo.WriteUint32(1))
	assert.ErrorIs(t, bo.WriteUint64(2), enterrors.ErrBufferFull)
	assert.ErrorIs(t, bo.CopyBytesToBufferWithUint32LengthIndicator([]byte("abc")), enterrors.ErrBufferFull)
	assert.Equal(t, Uint32Len, bo.Position())

	require.Nil(t, bo.CopyBytesToBufferWithUint32LengthIndicator([]byte("ab")))
	assert.Equal(t, 10, bo.Position())
}

func TestTruncatedLengthIndicator(t *testing.T) {
	bo := New(bytebuffer.NewHeapBuffer(20))
	require.Nil(t, bo.WriteUint32(50))
	require.Nil(t, bo.CopyBytesToBuffer([]byte("short")))
	bo.Buffer.Flip()

	_, err := bo.ReadBytesFromBufferWithUint32LengthIndicator()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 0, bo.Position(), "cursor is restored")
}

func TestCompositeKeyInPooledBuffer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := bytebuffer.DefaultConfig()
	cfg.Allocator = bytebuffer.AllocatorHeap
	pool, err := bytebuffer.NewBufferPool(cfg, logger)
	require.Nil(t, err)

	parts := [][]byte{[]byte("tenant-a"), []byte("collection"), {}, []byte("object-17")}

	err = pool.WithBuffer(context.Background(), CompositeKeyLen(parts...), func(buf *bytebuffer.Buffer) error {
		bo := New(buf)
		if err := bo.WriteCompositeKey(parts...); err != nil {
			return err
		}
		assert.Equal(t, CompositeKeyLen(parts...), buf.Position())

		buf.Flip()
		decoded, err := bo.ReadCompositeKey()
		if err != nil {
			return err
		}
		assert.Equal(t, parts, decoded)
		return nil
	})
	require.Nil(t, err)

	t.Run("key too large for the buffer", func(t *testing.T) {
		bo := New(bytebuffer.NewHeapBuffer(CompositeKeyLen(parts...) - 1))
		assert.ErrorIs(t, bo.WriteCompositeKey(parts...), enterrors.ErrBufferFull)
		assert.Equal(t, 0, bo.Position())
	})
}
