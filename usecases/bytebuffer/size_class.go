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
	"math"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// sizeClass is the bucket for all pooled buffers of one capacity. The queue
// holds the buffers that are currently available, tracked counts every buffer
// the pool knows about, whether queued or on loan.
//
// Invariant: len(queue) <= tracked <= maxCount
type sizeClass struct {
	offset           int
	capacity         int
	configuredCount  *int
	maxCount         int
	warningThreshold int

	queue   chan *Buffer
	tracked atomic.Int64
}

func newSizeClass(offset, maxCount int, configured *int, warningThresholdPercentage int) *sizeClass {
	sc := &sizeClass{
		offset:           offset,
		capacity:         capacityOf(offset),
		configuredCount:  configured,
		maxCount:         maxCount,
		warningThreshold: warningThreshold(maxCount, warningThresholdPercentage),
	}
	if maxCount > 0 {
		sc.queue = make(chan *Buffer, maxCount)
	}
	return sc
}

// warningThreshold returns the tracked count at which to warn, or -1 if the
// class is too small for a threshold to be meaningful.
func warningThreshold(maxCount, percentage int) int {
	if maxCount <= 1 {
		return -1
	}
	return int(math.Ceil(float64(maxCount) * float64(percentage) / 100))
}

func (sc *sizeClass) pooled() bool {
	return sc.maxCount > 0
}

func (sc *sizeClass) queued() int {
	if sc.queue == nil {
		return 0
	}
	return len(sc.queue)
}

// reserve increments the tracked count if the class is below its maximum.
// It returns the new count, or 0 if no reservation was made.
func (sc *sizeClass) reserve() int64 {
	for {
		curr := sc.tracked.Load()
		if curr >= int64(sc.maxCount) {
			return 0
		}
		if sc.tracked.CompareAndSwap(curr, curr+1) {
			return curr + 1
		}
	}
}

// SizeClassTable maps requested capacities to size classes. Offsets are the
// base 10 logarithm of the class capacity, i.e. 1 => 0, 10 => 1, 100 => 2.
// The table is contiguous from offset 0 up to the largest configured
// capacity.
type SizeClassTable struct {
	classes []*sizeClass
}

// NewSizeClassTable builds the table from the configured counts. Capacities
// that are not a power of ten between 1 and MaxBufferCapacity are ignored.
// Gaps below the largest configured capacity get DefaultMaxBuffersPerClass.
func NewSizeClassTable(counts map[int]int, warningThresholdPercentage int,
	logger logrus.FieldLogger,
) *SizeClassTable {
	maxOffset := -1
	capacities := make([]int, 0, len(counts))
	for capacity := range counts {
		capacities = append(capacities, capacity)
	}
	sort.Ints(capacities)

	for _, capacity := range capacities {
		if !isPowerOfTen(capacity) {
			logger.WithField("action", "byte_buffer_pool_config").
				WithField("capacity", capacity).
				WithField("count", counts[capacity]).
				Warnf("configured buffer count entry %d:%d is not valid, the capacity must be "+
					"a power of ten between 1 and %d, the entry will be ignored",
					capacity, counts[capacity], MaxBufferCapacity)
			continue
		}
		maxOffset = max(maxOffset, offsetOf(capacity))
	}

	classes := make([]*sizeClass, maxOffset+1)
	for offset := range classes {
		var configured *int
		maxCount := DefaultMaxBuffersPerClass
		if count, ok := counts[capacityOf(offset)]; ok {
			configured = &count
			maxCount = count
		}
		classes[offset] = newSizeClass(offset, maxCount, configured, warningThresholdPercentage)
	}

	return &SizeClassTable{classes: classes}
}

// Resolve returns the offset of the smallest size class whose capacity is at
// least minCapacity, i.e. ceil(log10(minCapacity)). It does not check whether
// the offset is part of the table.
func (t *SizeClassTable) Resolve(minCapacity int) int {
	offset := 0
	for capacity := 1; capacity < minCapacity; offset++ {
		if capacity > math.MaxInt/10 {
			return offset + 1
		}
		capacity *= 10
	}
	return offset
}

// IsPooled is false for offsets above the largest configured capacity and for
// classes explicitly configured with a count of zero.
func (t *SizeClassTable) IsPooled(offset int) bool {
	if offset < 0 || offset >= len(t.classes) {
		return false
	}
	return t.classes[offset].pooled()
}

// Len is the number of size classes, pooled or not.
func (t *SizeClassTable) Len() int {
	return len(t.classes)
}

// Capacity returns the buffer capacity of the class at offset.
func (t *SizeClassTable) Capacity(offset int) int {
	return capacityOf(offset)
}

// MaxCount returns the configured (or default) maximum of the class at
// offset, or 0 if the offset is outside the table.
func (t *SizeClassTable) MaxCount(offset int) int {
	if offset < 0 || offset >= len(t.classes) {
		return 0
	}
	return t.classes[offset].maxCount
}

func (t *SizeClassTable) class(offset int) *sizeClass {
	if !t.IsPooled(offset) {
		return nil
	}
	return t.classes[offset]
}

func isPowerOfTen(n int) bool {
	for capacity := 1; capacity <= MaxBufferCapacity; capacity *= 10 {
		if n == capacity {
			return true
		}
	}
	return false
}

func offsetOf(powerOfTen int) int {
	offset := 0
	for n := powerOfTen; n > 1; n /= 10 {
		offset++
	}
	return offset
}

func capacityOf(offset int) int {
	capacity := 1
	for i := 0; i < offset; i++ {
		capacity *= 10
	}
	return capacity
}
