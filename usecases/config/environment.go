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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	entcfg "github.com/weaviate/bytebufferpool/entities/config"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if v := os.Getenv("BYTE_BUFFER_POOL_COUNTS"); v != "" {
		counts, err := parseBufferCounts(v)
		if err != nil {
			return errors.Wrapf(err, "parse BYTE_BUFFER_POOL_COUNTS")
		}
		config.BufferPool.PooledByteBufferCounts = counts
	}

	if err := parseInt("BYTE_BUFFER_POOL_WARNING_THRESHOLD_PERCENTAGE", func(val int) {
		config.BufferPool.WarningThresholdPercentage = val
	}); err != nil {
		return err
	}

	if v := os.Getenv("BYTE_BUFFER_POOL_BLOCK_ON_EXHAUSTED"); v != "" {
		block := entcfg.Enabled(v)
		if !block && !entcfg.Disabled(v) {
			return fmt.Errorf("parse BYTE_BUFFER_POOL_BLOCK_ON_EXHAUSTED: %q is not a boolean", v)
		}
		config.BufferPool.BlockOnExhaustedPool = &block
	}

	if v := os.Getenv("BYTE_BUFFER_POOL_ALLOCATOR"); v != "" {
		config.BufferPool.Allocator = strings.ToLower(v)
	}

	if err := parseInt("BYTE_BUFFER_POOL_MEM_USE_WARNING_PERCENTAGE", func(val int) {
		config.BufferPool.MemUseWarningPercentage = val
	}); err != nil {
		return err
	}

	if entcfg.Enabled(os.Getenv("PROMETHEUS_MONITORING_ENABLED")) {
		config.Monitoring.Enabled = true
	}

	if err := parseInt("PROMETHEUS_MONITORING_PORT", func(val int) {
		config.Monitoring.Port = val
	}); err != nil {
		return err
	}

	if v := os.Getenv("BYTE_BUFFER_POOL_REPORT_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse BYTE_BUFFER_POOL_REPORT_INTERVAL as duration")
		}
		config.Monitoring.ReportInterval = interval
	}

	return nil
}

func parseInt(envName string, cb func(val int)) error {
	if v := os.Getenv(envName); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s as int", envName)
		}
		cb(asInt)
	}
	return nil
}

// parseBufferCounts parses a list like "10=20,100=10" into capacity => count.
func parseBufferCounts(v string) (map[int]int, error) {
	counts := map[int]int{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		capacity, count, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected <capacity>=<count>, got %q", pair)
		}
		c, err := strconv.Atoi(strings.TrimSpace(capacity))
		if err != nil {
			return nil, errors.Wrapf(err, "capacity of %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return nil, errors.Wrapf(err, "count of %q", pair)
		}
		counts[c] = n
	}
	return counts, nil
}
