package sink

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"logbook/internal/telemetry"
)

// WithRetry wraps s so failed writes are retried up to retries times, the
// delay doubling after each attempt. The last error is returned to the
// caller. History reads are not retried. If s is a HistoryStore the result
// is one too.
func WithRetry(s Sink, retries int, delay time.Duration, log logrus.FieldLogger) Sink {
	if retries < 0 {
		retries = 0
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	r := &retrying{Sink: s, retries: retries, delay: delay, log: log.WithField("sink", s.Name())}
	if h, ok := s.(HistoryStore); ok {
		return &retryingHistory{retrying: r, history: h}
	}
	return r
}

type retrying struct {
	Sink
	retries int
	delay   time.Duration
	log     logrus.FieldLogger
}

func (r *retrying) WriteSnapshot(ctx context.Context, rec telemetry.Record) error {
	return r.do(ctx, "snapshot", func() error { return r.Sink.WriteSnapshot(ctx, rec) })
}

func (r *retrying) do(ctx context.Context, what string, write func() error) error {
	backoff := r.delay
	var err error
	for attempt := 0; ; attempt++ {
		if err = write(); err == nil {
			return nil
		}
		if attempt >= r.retries {
			return err
		}
		r.log.WithError(err).Warnf("%s write failed (attempt %d/%d), retrying in %s", what, attempt+1, r.retries+1, backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		backoff *= 2
	}
}

type retryingHistory struct {
	*retrying
	history HistoryStore
}

func (r *retryingHistory) Samples(ctx context.Context, from, to time.Time) ([]telemetry.Record, error) {
	return r.history.Samples(ctx, from, to)
}

func (r *retryingHistory) WriteSummary(ctx context.Context, s telemetry.Summary) error {
	return r.do(ctx, "summary", func() error { return r.history.WriteSummary(ctx, s) })
}

func (r *retryingHistory) Summaries(ctx context.Context, limit int) ([]telemetry.Summary, error) {
	return r.history.Summaries(ctx, limit)
}
