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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when the pool cannot be built from the given
	// settings. It is never retried.
	ErrConfiguration = errors.New("invalid byte buffer pool configuration")

	// ErrWaitInterrupted is returned when an acquire that was blocked on an
	// exhausted size class is cancelled before a buffer became available.
	ErrWaitInterrupted = errors.New("interrupted while waiting for a buffer from the pool")

	// ErrInvariantViolation indicates corrupted pool accounting. It is raised
	// as a panic, callers are not expected to handle it.
	ErrInvariantViolation = errors.New("byte buffer pool invariant violated")

	// ErrOverflow is returned when a growable output would need to exceed its
	// maximum capacity.
	ErrOverflow = errors.New("buffer output would exceed its maximum capacity")

	ErrOutputClosed = errors.New("buffer output is closed")
	ErrBufferFull   = errors.New("not enough remaining capacity in buffer")
	ErrReleased     = errors.New("pooled buffer has already been released")
)

// IsRecoverable reports whether the caller may retry the failed operation or
// fail its own enclosing operation gracefully.
func IsRecoverable(err error) bool {
	if errors.Is(err, ErrWaitInterrupted) || errors.Is(err, ErrOverflow) {
		return true
	}

	return false
}

func NewConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConfiguration)
}

func NewWaitInterrupted(capacity int, cause error) error {
	return fmt.Errorf("capacity %d: %w: %w", capacity, ErrWaitInterrupted, cause)
}

func NewInvariantViolation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvariantViolation)
}

func NewOverflow(required, maxCapacity int) error {
	return fmt.Errorf("%d bytes required, maximum is %d: %w", required, maxCapacity, ErrOverflow)
}
