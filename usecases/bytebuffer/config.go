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
	"github.com/hashicorp/go-multierror"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
)

const (
	// DefaultMaxBuffersPerClass is used for every size class below the largest
	// configured one that has no explicit count.
	DefaultMaxBuffersPerClass = 50

	DefaultWarningThresholdPercentage = 90
	DefaultMemUseWarningPercentage    = 80

	// MaxBufferCapacity is the largest size class that can be configured.
	MaxBufferCapacity = 1_000_000_000
)

// Config describes the size classes of a pool. All settings require a new
// pool to take effect.
type Config struct {
	// PooledByteBufferCounts maps a buffer capacity (a power of ten) to the
	// maximum number of buffers of that capacity the pool will track. A count
	// of zero means buffers of that capacity are never pooled.
	PooledByteBufferCounts map[int]int `json:"pooled_byte_buffer_counts" yaml:"pooled_byte_buffer_counts"`

	// WarningThresholdPercentage is the occupancy of a size class, relative to
	// its maximum, at which a warning is logged.
	WarningThresholdPercentage int `json:"warning_threshold_percentage" yaml:"warning_threshold_percentage"`

	// BlockOnExhaustedPool makes acquire wait for a release when a size class
	// is at its maximum. When false an excess, unpooled buffer is allocated
	// instead and freed again on release.
	BlockOnExhaustedPool *bool `json:"block_on_exhausted_pool" yaml:"block_on_exhausted_pool"`

	// Allocator is either "mmap" (off-heap, default) or "heap".
	Allocator string `json:"allocator" yaml:"allocator"`

	// MemUseWarningPercentage triggers a warning at construction time if the
	// maximum number of pooled bytes exceeds this share of the system memory.
	MemUseWarningPercentage int `json:"mem_use_warning_percentage" yaml:"mem_use_warning_percentage"`
}

func DefaultConfig() Config {
	return Config{
		PooledByteBufferCounts: map[int]int{
			1:         50,
			10:        50,
			100:       50,
			1_000:     50,
			10_000:    50,
			100_000:   10,
			1_000_000: 3,
		},
		WarningThresholdPercentage: DefaultWarningThresholdPercentage,
		Allocator:                  AllocatorMmap,
		MemUseWarningPercentage:    DefaultMemUseWarningPercentage,
	}
}

func (c Config) blockOnExhausted() bool {
	if c.BlockOnExhaustedPool == nil {
		return true
	}
	return *c.BlockOnExhaustedPool
}

// Validate checks the settings that cannot be ignored. Capacities that are not
// a power of ten are not an error, they are skipped with a warning when the
// size class table is built.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.WarningThresholdPercentage < 1 || c.WarningThresholdPercentage > 100 {
		result = multierror.Append(result, enterrors.NewConfigurationError(
			"warning threshold percentage must be between 1 and 100, got %d",
			c.WarningThresholdPercentage))
	}

	for capacity, count := range c.PooledByteBufferCounts {
		if count < 0 {
			result = multierror.Append(result, enterrors.NewConfigurationError(
				"buffer count for capacity %d must not be negative, got %d", capacity, count))
		}
	}

	if c.MemUseWarningPercentage < 0 || c.MemUseWarningPercentage > 100 {
		result = multierror.Append(result, enterrors.NewConfigurationError(
			"memory use warning percentage must be between 0 and 100, got %d",
			c.MemUseWarningPercentage))
	}

	switch c.Allocator {
	case "", AllocatorHeap, AllocatorMmap:
	default:
		result = multierror.Append(result, enterrors.NewConfigurationError(
			"allocator must be %q or %q, got %q", AllocatorHeap, AllocatorMmap, c.Allocator))
	}

	return result.ErrorOrNil()
}
