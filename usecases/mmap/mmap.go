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

// Package mmap provides anonymous memory mappings that live outside of the Go
// heap. Memory obtained here is not scanned or moved by the garbage collector
// and has to be released explicitly with Unmap.
package mmap

import "fmt"

type MMap []byte

func checkLength(length int) error {
	if length <= 0 {
		return fmt.Errorf("mmap: invalid length %d", length)
	}
	return nil
}
