package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"logbook/internal/config"
	"logbook/internal/sink"
)

// buildSink opens the configured backend and wraps it with retries.
func buildSink(ctx context.Context, cfg config.SinkConfig, log logrus.FieldLogger) (sink.Sink, error) {
	var s sink.Sink
	switch cfg.Kind {
	case config.SinkSQL:
		db, err := sink.OpenSQL(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.SQL.CreateSchema {
			sctx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
			err := db.EnsureSchema(sctx)
			cancel()
			if err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		s = db
	case config.SinkPush:
		s = sink.NewPush(cfg.Push.URL, cfg.Push.Vessel, &http.Client{Timeout: cfg.WriteTimeout + time.Second})
	case config.SinkKafka:
		s = sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Vessel)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}

	retries := 1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	return sink.WithRetry(s, retries, cfg.RetryDelay, log), nil
}
