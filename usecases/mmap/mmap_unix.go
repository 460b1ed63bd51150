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

//go:build darwin || linux

package mmap

import (
	"golang.org/x/sys/unix"
)

// MapAnonymous returns a read/write mapping of length bytes that is not backed
// by a file.
func MapAnonymous(length int) (MMap, error) {
	if err := checkLength(length); err != nil {
		return nil, err
	}

	b, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return MMap(b), nil
}

// Unmap releases the mapping. The slice must not be used afterwards.
func (m MMap) Unmap() error {
	return unix.Munmap(m)
}
