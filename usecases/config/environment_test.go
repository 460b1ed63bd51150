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

package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentBufferCounts(t *testing.T) {
	factors := []struct {
		name        string
		value       string
		expected    map[int]int
		expectedErr bool
	}{
		{"single", "10=20", map[int]int{10: 20}, false},
		{"multiple", "10=20,100=10", map[int]int{10: 20, 100: 10}, false},
		{"with spaces", " 10 = 20 , 1000=0 ,", map[int]int{10: 20, 1000: 0}, false},
		{"missing separator", "10:20", nil, true},
		{"capacity not a number", "ten=20", nil, true},
		{"count not a number", "10=many", nil, true},
	}
	for _, tt := range factors {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BYTE_BUFFER_POOL_COUNTS", tt.value)
			conf := DefaultConfig()
			err := FromEnv(&conf)

			if tt.expectedErr {
				require.NotNil(t, err)
			} else {
				require.Nil(t, err)
				require.Equal(t, tt.expected, conf.BufferPool.PooledByteBufferCounts)
			}
		})
	}
}

func TestEnvironmentBlockOnExhausted(t *testing.T) {
	factors := []struct {
		name        string
		value       string
		expected    *bool
		expectedErr bool
	}{
		{"not given", "", nil, false},
		{"enabled", "true", boolPtr(true), false},
		{"on", "on", boolPtr(true), false},
		{"disabled", "false", boolPtr(false), false},
		{"off", "0", boolPtr(false), false},
		{"not a boolean", "sometimes", nil, true},
	}
	for _, tt := range factors {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BYTE_BUFFER_POOL_BLOCK_ON_EXHAUSTED", tt.value)
			conf := DefaultConfig()
			err := FromEnv(&conf)

			if tt.expectedErr {
				require.NotNil(t, err)
			} else {
				require.Nil(t, err)
				require.Equal(t, tt.expected, conf.BufferPool.BlockOnExhaustedPool)
			}
		})
	}
}

func TestEnvironmentScalars(t *testing.T) {
	t.Setenv("BYTE_BUFFER_POOL_WARNING_THRESHOLD_PERCENTAGE", "60")
	t.Setenv("BYTE_BUFFER_POOL_ALLOCATOR", "HEAP")
	t.Setenv("BYTE_BUFFER_POOL_MEM_USE_WARNING_PERCENTAGE", "0")
	t.Setenv("PROMETHEUS_MONITORING_ENABLED", "true")
	t.Setenv("PROMETHEUS_MONITORING_PORT", "9100")
	t.Setenv("BYTE_BUFFER_POOL_REPORT_INTERVAL", "250ms")

	conf := DefaultConfig()
	require.Nil(t, FromEnv(&conf))

	assert.Equal(t, 60, conf.BufferPool.WarningThresholdPercentage)
	assert.Equal(t, "heap", conf.BufferPool.Allocator)
	assert.Equal(t, 0, conf.BufferPool.MemUseWarningPercentage)
	assert.True(t, conf.Monitoring.Enabled)
	assert.Equal(t, 9100, conf.Monitoring.Port)
	assert.Equal(t, 250*time.Millisecond, conf.Monitoring.ReportInterval)
}

func TestEnvironmentParseErrors(t *testing.T) {
	for _, name := range []string{
		"BYTE_BUFFER_POOL_WARNING_THRESHOLD_PERCENTAGE",
		"BYTE_BUFFER_POOL_MEM_USE_WARNING_PERCENTAGE",
		"PROMETHEUS_MONITORING_PORT",
		"BYTE_BUFFER_POOL_REPORT_INTERVAL",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, "not parsable")
			conf := DefaultConfig()
			err := FromEnv(&conf)
			require.NotNil(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := writeConfigFile(t, "pool.yaml", `
buffer_pool:
  pooled_byte_buffer_counts:
    10: 20
  warning_threshold_percentage: 75
`)
	t.Setenv("BYTE_BUFFER_POOL_COUNTS", "100=3")

	config, err := Load(path, logger)
	require.Nil(t, err)

	assert.Equal(t, map[int]int{100: 3}, config.BufferPool.PooledByteBufferCounts)
	assert.Equal(t, 75, config.BufferPool.WarningThresholdPercentage)
}

func boolPtr(b bool) *bool {
	return &b
}
