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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
)

func TestBuffer(t *testing.T) {
	buf := NewHeapBuffer(8)

	assert.Equal(t, 8, buf.Capacity())
	assert.Equal(t, 0, buf.Position())
	assert.Equal(t, 8, buf.Limit())

	n, err := buf.Write([]byte("hello"))
	require.Nil(t, err)
	assert.Equal(t, 5, n)
	require.Nil(t, buf.WriteByte('!'))
	assert.Equal(t, []byte("hello!"), buf.Bytes())
	assert.Equal(t, 2, buf.Remaining())

	t.Run("write is all or nothing", func(t *testing.T) {
		n, err := buf.Write([]byte("abc"))
		assert.ErrorIs(t, err, enterrors.ErrBufferFull)
		assert.Equal(t, 0, n)
		assert.Equal(t, 6, buf.Position())
	})

	t.Run("flip and read", func(t *testing.T) {
		buf.Flip()
		assert.Equal(t, 0, buf.Position())
		assert.Equal(t, 6, buf.Limit())

		out, err := io.ReadAll(buf)
		require.Nil(t, err)
		assert.Equal(t, []byte("hello!"), out)
	})

	t.Run("clear", func(t *testing.T) {
		buf.Clear()
		assert.Equal(t, 0, buf.Position())
		assert.Equal(t, 8, buf.Limit())
		assert.Empty(t, buf.Bytes())
		assert.Len(t, buf.Raw(), 8)
	})

	t.Run("set position", func(t *testing.T) {
		buf.SetPosition(3)
		assert.Equal(t, 3, buf.Position())
		assert.Panics(t, func() { buf.SetPosition(9) })
		assert.Panics(t, func() { buf.SetPosition(-1) })
	})
}

func TestBuffer_FullWriteByte(t *testing.T) {
	buf := NewHeapBuffer(1)

	require.Nil(t, buf.WriteByte(1))
	assert.ErrorIs(t, buf.WriteByte(2), enterrors.ErrBufferFull)
}

func TestAllocators(t *testing.T) {
	for _, name := range []string{AllocatorHeap, AllocatorMmap} {
		t.Run(name, func(t *testing.T) {
			allocator, err := NewAllocator(name)
			require.Nil(t, err)

			for _, capacity := range []int{0, 1, 4096, 100_000} {
				buf, err := allocator.Allocate(capacity)
				require.Nil(t, err)
				assert.Equal(t, capacity, buf.Capacity())

				data := make([]byte, capacity)
				for i := range data {
					data[i] = byte(i)
				}
				_, err = buf.Write(data)
				require.Nil(t, err)
				assert.Equal(t, data, buf.Bytes())

				require.Nil(t, allocator.Free(buf))
				assert.Equal(t, 0, buf.Capacity())
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := NewAllocator("jemalloc")
		assert.NotNil(t, err)
	})
}
