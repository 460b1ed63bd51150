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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/bytebufferpool/usecases/bytebuffer"
)

func parseOptions(t *testing.T, args ...string) Options {
	t.Helper()

	var opts Options
	_, err := flags.ParseArgs(&opts, args)
	require.Nil(t, err)
	return opts
}

func TestOptions(t *testing.T) {
	opts := parseOptions(t)
	assert.Equal(t, "yaml", opts.Format)
	assert.Equal(t, 8, opts.Workload.Workers)
	assert.Equal(t, 1000, opts.Workload.Cycles)
	assert.Equal(t, 100_000, opts.Workload.MaxSize)

	opts = parseOptions(t, "--format", "json", "--workers", "2", "--cycles", "5", "-c", "pool.yaml")
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, 2, opts.Workload.Workers)
	assert.Equal(t, 5, opts.Workload.Cycles)
	assert.Equal(t, "pool.yaml", opts.ConfigFile)

	var invalid Options
	_, err := flags.ParseArgs(&invalid, []string{"--format", "xml"})
	assert.NotNil(t, err)
}

func TestRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	configFile := filepath.Join(t.TempDir(), "pool.yaml")
	require.Nil(t, os.WriteFile(configFile, []byte(`
buffer_pool:
  allocator: heap
  pooled_byte_buffer_counts:
    10: 10
    100: 10
    1000: 10
    10000: 10
`), 0o600))

	t.Run("yaml", func(t *testing.T) {
		opts := parseOptions(t, "-c", configFile, "--workers", "4", "--cycles", "50",
			"--max-size", "20000", "--seed", "42")

		var stdout bytes.Buffer
		require.Nil(t, run(context.Background(), opts, &stdout, logger))

		var info bytebuffer.SystemInfo
		require.Nil(t, yaml.Unmarshal(stdout.Bytes(), &info))
		require.Len(t, info.Classes, 5)
		for _, class := range info.Classes {
			assert.Equal(t, 0, class.OnLoan, "capacity %d", class.Capacity)
			assert.LessOrEqual(t, class.Tracked, class.ConfiguredMax, "capacity %d", class.Capacity)
		}
		assert.Equal(t, info.TotalTracked, info.TotalQueued)
	})

	t.Run("json", func(t *testing.T) {
		opts := parseOptions(t, "-c", configFile, "--workers", "2", "--cycles", "10",
			"--max-size", "5000", "--format", "json")

		var stdout bytes.Buffer
		require.Nil(t, run(context.Background(), opts, &stdout, logger))

		var info bytebuffer.SystemInfo
		require.Nil(t, json.Unmarshal(stdout.Bytes(), &info))
		assert.Equal(t, "default", info.PoolName)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Setenv("BYTE_BUFFER_POOL_WARNING_THRESHOLD_PERCENTAGE", "0")
		opts := parseOptions(t, "-c", configFile)

		err := run(context.Background(), opts, &bytes.Buffer{}, logger)
		assert.NotNil(t, err)
	})
}

func TestRunWorkloadRejectsInvalidOptions(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := bytebuffer.DefaultConfig()
	cfg.Allocator = bytebuffer.AllocatorHeap
	pool, err := bytebuffer.NewBufferPool(cfg, logger)
	require.Nil(t, err)

	err = runWorkload(context.Background(), pool, WorkloadOptions{Workers: 0, Cycles: 1, MaxSize: 1}, logger)
	assert.NotNil(t, err)
}
