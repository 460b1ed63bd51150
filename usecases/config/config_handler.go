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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/bytebufferpool/usecases/bytebuffer"
	"github.com/weaviate/bytebufferpool/usecases/monitoring"
)

// Config outline of the config file
type Config struct {
	BufferPool bytebuffer.Config `json:"buffer_pool" yaml:"buffer_pool"`
	Monitoring monitoring.Config `json:"monitoring" yaml:"monitoring"`
}

func DefaultConfig() Config {
	return Config{
		BufferPool: bytebuffer.DefaultConfig(),
		Monitoring: monitoring.Config{
			Enabled:        false,
			Port:           monitoring.DefaultMetricsPort,
			ReportInterval: monitoring.DefaultReportInterval,
		},
	}
}

func (c *Config) Validate() error {
	if err := c.BufferPool.Validate(); err != nil {
		return configErr(err)
	}

	if c.Monitoring.Enabled && (c.Monitoring.Port <= 0 || c.Monitoring.Port > 65535) {
		return configErr(fmt.Errorf("monitoring.port must be between 1 and 65535, got %d",
			c.Monitoring.Port))
	}

	if c.Monitoring.ReportInterval < 0 {
		return configErr(fmt.Errorf("monitoring.report_interval must not be negative, got %s",
			c.Monitoring.ReportInterval))
	}

	return nil
}

// Load builds the config from the defaults, the optional config file at path
// and the environment, in that order, and validates the result.
func Load(path string, logger logrus.FieldLogger) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return config, configErr(errors.Wrapf(err, "read config file %q", path))
		}

		logger.WithField("action", "config_load").WithField("config_file_path", path).
			Info("loading config file")
		if err := parseConfigFile(file, path, &config); err != nil {
			return config, configErr(err)
		}
	}

	if err := FromEnv(&config); err != nil {
		return config, configErr(err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// parseConfigFile decodes on top of the given defaults. The buffer counts
// are replaced as a whole if the file contains any.
func parseConfigFile(file []byte, name string, config *Config) error {
	defaultCounts := config.BufferPool.PooledByteBufferCounts
	config.BufferPool.PooledByteBufferCounts = nil

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return fmt.Errorf("config file does not have a file ending, got '%s'", name)
	}

	switch ext {
	case "json":
		err := json.Unmarshal(file, config)
		if err != nil {
			return fmt.Errorf("error unmarshalling the json config file: %w", err)
		}
	case "yaml", "yml":
		err := yaml.Unmarshal(file, config)
		if err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml or .json", ext)
	}

	if config.BufferPool.PooledByteBufferCounts == nil {
		config.BufferPool.PooledByteBufferCounts = defaultCounts
	}
	return nil
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
