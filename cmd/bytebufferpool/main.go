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
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
	"github.com/weaviate/bytebufferpool/usecases/bytebuffer"
	"github.com/weaviate/bytebufferpool/usecases/config"
	"github.com/weaviate/bytebufferpool/usecases/monitoring"
)

// Options represents Command line options
type Options struct {
	ConfigFile string        `long:"config-file" short:"c" description:"path to a yaml or json config file"`
	LogLevel   string        `long:"log-level" description:"debug, info, warning or error" default:"info"`
	Format     string        `long:"format" description:"output format of the system info" choice:"yaml" choice:"json" default:"yaml"`
	Linger     time.Duration `long:"linger" description:"keep the pool and the metrics endpoint alive after the workload" default:"0s"`

	Workload WorkloadOptions `group:"Workload Options"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		logger.WithError(err).Fatal("failed to parse log level")
	}
	logger.SetLevel(level)
	log := logger.WithField("app", "bytebufferpool")

	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		log.WithError(err).Debug("GOMEMLIMIT not set")
	} else {
		log.WithField("limit", limit).Debug("set GOMEMLIMIT")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout, log); err != nil {
		log.WithError(err).Fatal("byte buffer pool run failed")
	}
}

func run(ctx context.Context, opts Options, stdout io.Writer, logger logrus.FieldLogger) error {
	cfg, err := config.Load(opts.ConfigFile, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	registerer := monitoring.NoopRegisterer()
	if cfg.Monitoring.Enabled {
		registerer = reg
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	promMetrics := monitoring.NewPrometheusMetrics(registerer)
	metrics := bytebuffer.NewMetrics(promMetrics, "default")

	pool, err := bytebuffer.NewBufferPool(cfg.BufferPool, logger, bytebuffer.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer pool.Clear()

	reporter := bytebuffer.NewReporter(pool, metrics, cfg.Monitoring.ReportInterval, logger)
	reporter.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reporter.StopAndWait(stopCtx); err != nil {
			logger.WithError(err).Warn("failed to stop pool reporter")
		}
	}()

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	if cfg.Monitoring.Enabled {
		enterrors.GoWrapper(func() {
			if err := monitoring.Serve(serveCtx, cfg.Monitoring.Port, reg, promMetrics, logger); err != nil {
				logger.WithField("action", "metrics_serve").WithError(err).Error("metrics server failed")
			}
		}, logger)
	}

	if err := runWorkload(ctx, pool, opts.Workload, logger); err != nil {
		return err
	}
	reporter.Report()

	if err := printSystemInfo(stdout, opts.Format, pool.SystemInfo()); err != nil {
		return err
	}

	if opts.Linger > 0 {
		logger.WithField("action", "linger").WithField("duration", opts.Linger.String()).
			Info("workload done, keeping the pool alive")
		select {
		case <-ctx.Done():
		case <-time.After(opts.Linger):
		}
	}

	return nil
}

func printSystemInfo(w io.Writer, format string, info bytebuffer.SystemInfo) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(info)
}
