package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"logbook/internal/config"
	"logbook/internal/ingest"
	"logbook/internal/logging"
	"logbook/internal/metrics"
	"logbook/internal/pipeline"
	"logbook/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./logbook.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, logs)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, logs); err != nil {
		logger.WithError(err).Fatal("logbook failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger, logs *web.LogBuffer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	s, err := buildSink(ctx, cfg.Sink, logger)
	if err != nil {
		return fmt.Errorf("sink init failed: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.WithError(err).Warn("sink close failed")
		}
	}()

	p := pipeline.New(s, pipeline.Config{
		Interval:     cfg.Pipeline.Interval,
		Tick:         cfg.Pipeline.Tick,
		WriteTimeout: cfg.Sink.WriteTimeout,
		Queue:        cfg.Pipeline.Queue,
		Log:          logger,
		Metrics:      m,
	})

	lc, err := ingest.NewLineClient(ingest.LineClientConfig{
		Source:         cfg.Ingest.Source,
		Addr:           cfg.Ingest.Addr,
		Device:         cfg.Ingest.Device,
		Baud:           cfg.Ingest.Baud,
		DialTimeout:    cfg.Ingest.DialTimeout,
		ReconnectDelay: cfg.Ingest.ReconnectDelay,
		ReconnectMax:   cfg.Ingest.ReconnectMax,
		MaxLineBytes:   cfg.Ingest.MaxLineBytes,
		Log:            logger.WithField("component", "ingest"),
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("ingest init failed: %w", err)
	}
	if err := lc.Start(ctx, p.Feed); err != nil {
		return fmt.Errorf("ingest start failed: %w", err)
	}
	defer lc.Close()

	if cfg.Web.Enable {
		deps := web.Deps{
			Status:  web.NewStatus(p, lc),
			Logs:    logs,
			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}
		if h := p.History(); h != nil {
			deps.History = h
		}
		go func() {
			logger.Infof("web listening on %s", cfg.Web.Listen)
			if err := web.Serve(ctx, cfg.Web.Listen, web.Handler(deps)); err != nil {
				logger.WithError(err).Error("web server stopped")
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"source": cfg.Ingest.Source,
		"sink":   s.Name(),
	}).Info("logbook starting")
	err = p.Run(ctx)
	logger.Info("logbook stopping")
	return err
}
