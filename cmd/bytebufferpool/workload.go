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

package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
	"github.com/weaviate/bytebufferpool/usecases/bytebuffer"
)

type WorkloadOptions struct {
	Workers int           `long:"workers" description:"number of concurrent workers" default:"8"`
	Cycles  int           `long:"cycles" description:"acquire/release cycles per worker" default:"1000"`
	MaxSize int           `long:"max-size" description:"largest requested buffer size in bytes" default:"100000"`
	Hold    time.Duration `long:"hold" description:"how long a worker holds each buffer" default:"0s"`
	Seed    int64         `long:"seed" description:"random seed, 0 picks one" default:"0"`
}

// runWorkload mixes plain acquires, key/value pairs and growable outputs and
// checks every buffer reads back what was written to it.
func runWorkload(ctx context.Context, pool *bytebuffer.BufferPool, opts WorkloadOptions,
	logger logrus.FieldLogger,
) error {
	if opts.Workers <= 0 || opts.Cycles <= 0 || opts.MaxSize <= 0 {
		return fmt.Errorf("workers, cycles and max size must be positive")
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	started := time.Now()
	eg, ctx := enterrors.NewErrorGroupWithContextWrapper(ctx, logger, "workload")
	for i := 0; i < opts.Workers; i++ {
		worker := i
		eg.Go(func() error {
			r := rand.New(rand.NewSource(seed + int64(worker)))
			for cycle := 0; cycle < opts.Cycles; cycle++ {
				if err := runCycle(ctx, pool, r, opts); err != nil {
					return fmt.Errorf("worker %d, cycle %d: %w", worker, cycle, err)
				}
			}
			return nil
		}, worker)
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	logger.WithField("action", "workload_done").
		WithField("workers", opts.Workers).
		WithField("cycles", opts.Cycles).
		WithField("seed", seed).
		WithField("took", time.Since(started).String()).
		Infof("workload done, %s", pool)
	return nil
}

func runCycle(ctx context.Context, pool *bytebuffer.BufferPool, r *rand.Rand, opts WorkloadOptions) error {
	size := r.Intn(opts.MaxSize) + 1
	payload := make([]byte, size)
	r.Read(payload)

	switch r.Intn(3) {
	case 0:
		return pool.WithBuffer(ctx, size, func(buf *bytebuffer.Buffer) error {
			hold(ctx, opts.Hold)
			return writeAndVerify(buf, payload)
		})
	case 1:
		keySize := r.Intn(100) + 1
		return pool.WithBufferPair(ctx, keySize, size, func(key, value *bytebuffer.Buffer) error {
			hold(ctx, opts.Hold)
			if err := writeAndVerify(key, payload[:min(keySize, size)]); err != nil {
				return err
			}
			return writeAndVerify(value, payload)
		})
	default:
		out, err := bytebuffer.NewGrowableBufferOutput(ctx, pool, max(size/8, 1))
		if err != nil {
			return err
		}
		defer out.Close()

		for written := 0; written < size; {
			chunk := min(r.Intn(1000)+1, size-written)
			if _, err := out.Write(payload[written : written+chunk]); err != nil {
				return err
			}
			written += chunk
		}
		hold(ctx, opts.Hold)
		if !bytes.Equal(payload, out.Bytes()) {
			return fmt.Errorf("growable output of %s does not read back what was written",
				humanize.Bytes(uint64(size)))
		}
		return nil
	}
}

func writeAndVerify(buf *bytebuffer.Buffer, payload []byte) error {
	if _, err := buf.Write(payload); err != nil {
		return err
	}
	if !bytes.Equal(payload, buf.Bytes()) {
		return fmt.Errorf("buffer of capacity %d does not read back what was written", buf.Capacity())
	}
	return nil
}

func hold(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
