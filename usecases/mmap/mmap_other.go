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

//go:build !(darwin || linux)

package mmap

import (
	"github.com/edsrzf/mmap-go"
)

// MapAnonymous returns a read/write mapping of length bytes that is not backed
// by a file.
func MapAnonymous(length int) (MMap, error) {
	if err := checkLength(length); err != nil {
		return nil, err
	}

	m, err := mmap.MapRegion(nil, length, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, err
	}
	return MMap(m), nil
}

// Unmap releases the mapping. The slice must not be used afterwards.
func (m MMap) Unmap() error {
	mm := mmap.MMap(m)
	return mm.Unmap()
}
