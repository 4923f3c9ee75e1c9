// Package pipeline turns the raw line stream into periodic snapshot writes
// and hourly summaries.
//
// A single goroutine (Run) owns the snapshot and the flush schedule. Line
// producers hand lines over with Feed.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"logbook/internal/metrics"
	"logbook/internal/nmea"
	"logbook/internal/sink"
	"logbook/internal/summary"
	"logbook/internal/telemetry"
)

type Config struct {
	// Interval is the minimum time between flushes.
	Interval time.Duration
	// Tick is how often the flush condition is checked.
	Tick         time.Duration
	WriteTimeout time.Duration
	Queue        int

	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Pipeline struct {
	cfg     Config
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	sink       sink.Sink
	history    sink.HistoryStore
	summarizer *summary.Summarizer

	lines   chan []byte
	stopped chan struct{}
	once    sync.Once

	// Owned by the Run goroutine.
	snap        *telemetry.Snapshot
	start       time.Time
	lastSummary time.Time

	mu     sync.RWMutex
	status Status
}

// Status is the JSON view served at /api/status.
type Status struct {
	Sink            string `json:"sink"`
	Interval        string `json:"interval"`
	Summaries       bool   `json:"summaries"`
	Pending         int    `json:"pending_fields"`
	Lines           uint64 `json:"lines"`
	Ignored         uint64 `json:"ignored"`
	ParseErrors     uint64 `json:"parse_errors"`
	Flushes         uint64 `json:"flushes"`
	WriteFailures   uint64 `json:"write_failures"`
	LastFlushUTC    string `json:"last_flush_utc,omitempty"`
	LastFlushFields int    `json:"last_flush_fields,omitempty"`
	LastError       string `json:"last_error,omitempty"`
	LastSummaryHour string `json:"last_summary_hour,omitempty"`
}

func New(s sink.Sink, cfg Config) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Second
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 1024
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	p := &Pipeline{
		cfg:     cfg,
		log:     log.WithField("component", "pipeline"),
		metrics: cfg.Metrics,
		sink:    s,
		lines:   make(chan []byte, cfg.Queue),
		stopped: make(chan struct{}),
		snap:    telemetry.NewSnapshot(),
	}
	if h, ok := s.(sink.HistoryStore); ok {
		p.history = h
		p.summarizer = summary.New(h)
	}
	p.status = Status{Sink: s.Name(), Interval: cfg.Interval.String(), Summaries: p.history != nil}
	return p
}

// Feed queues one raw line. It blocks while the queue is full and drops the
// line once Run has returned.
func (p *Pipeline) Feed(line []byte) {
	select {
	case <-p.stopped:
		return
	default:
	}
	select {
	case p.lines <- line:
	case <-p.stopped:
	}
}

// Run processes lines and flushes until ctx is cancelled. Lines already
// queued are then applied and a last flush is written with a fresh
// timeout.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.once.Do(func() { close(p.stopped) })

	p.start = p.cfg.Now().Truncate(time.Second)
	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	p.log.Infof("flushing to %s every %s", p.sink.Name(), p.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			p.drain()
			fctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
			p.flush(fctx, p.cfg.Now())
			cancel()
			p.log.Info("pipeline stopped")
			return nil
		case line := <-p.lines:
			p.handleLine(line)
		case <-ticker.C:
			p.tick(ctx, p.cfg.Now())
		}
	}
}

func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// History exposes the summary store, or nil when the sink has none.
func (p *Pipeline) History() sink.HistoryStore { return p.history }

func (p *Pipeline) drain() {
	for {
		select {
		case line := <-p.lines:
			p.handleLine(line)
		default:
			return
		}
	}
}

// handleLine applies one raw line to the snapshot. Unknown prefixes and
// parse failures leave the snapshot unchanged.
func (p *Pipeline) handleLine(raw []byte) {
	line := string(raw)
	kind, ok := nmea.Lookup(line)
	if !ok {
		p.metrics.Sentence("", metrics.ResultIgnored)
		p.update(func(s *Status) { s.Lines++; s.Ignored++ })
		return
	}

	fields, err := nmea.Parse(line)
	if err != nil {
		p.log.WithError(err).WithField("line", line).Debug("dropping sentence")
		p.metrics.Sentence(kind.String(), metrics.ResultError)
		p.update(func(s *Status) { s.Lines++; s.ParseErrors++ })
		return
	}

	p.snap.Update(fields)
	p.metrics.Sentence(kind.String(), metrics.ResultOK)
	pending := p.snap.Len()
	p.update(func(s *Status) { s.Lines++; s.Pending = pending })
}

// tick flushes once more than Interval has passed since the last flush and,
// right after an hour boundary, summarizes the previous hour.
func (p *Pipeline) tick(ctx context.Context, now time.Time) {
	if now.Sub(p.start) <= p.cfg.Interval {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	p.flush(wctx, now)
	cancel()
	p.start = now.Truncate(time.Second)

	if p.history != nil && time.Duration(now.Unix()%3600)*time.Second < p.cfg.Interval {
		sctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
		p.summarize(sctx, now)
		cancel()
	}
}

func (p *Pipeline) flush(ctx context.Context, now time.Time) {
	vals := p.snap.TakeAndReset()
	p.update(func(s *Status) { s.Pending = 0 })
	if len(vals) == 0 {
		p.log.Debug("nothing to flush")
		return
	}

	if err := telemetry.EnrichTrueWind(vals); err != nil {
		var missing *telemetry.MissingInputError
		if errors.As(err, &missing) {
			p.metrics.TrueWindSkipped.Inc()
			p.log.WithError(err).Debug("flushing without true wind")
		}
	}

	rec := telemetry.Record{Time: now.UTC(), Values: vals}
	began := time.Now()
	err := p.sink.WriteSnapshot(ctx, rec)
	p.metrics.SinkWrite(time.Since(began).Seconds())
	if err != nil {
		p.metrics.SinkFailed(p.sink.Name())
		p.log.WithError(err).WithField("fields", len(vals)).Error("snapshot write failed, interval dropped")
		p.update(func(s *Status) { s.WriteFailures++; s.LastError = err.Error() })
		return
	}

	p.metrics.Flushed(len(vals))
	p.log.WithField("fields", len(vals)).Debug("snapshot flushed")
	p.update(func(s *Status) {
		s.Flushes++
		s.LastFlushUTC = rec.Time.Format(time.RFC3339)
		s.LastFlushFields = len(vals)
		s.LastError = ""
	})
}

func (p *Pipeline) summarize(ctx context.Context, now time.Time) {
	from, to := summary.HourWindow(now)
	if from.Equal(p.lastSummary) {
		return
	}

	sum, err := p.summarizer.Run(ctx, from, to)
	if err != nil {
		p.metrics.Summary(metrics.ResultError)
		p.log.WithError(err).WithField("hour", from.Format(time.RFC3339)).Error("hourly summary failed")
		p.update(func(s *Status) { s.LastError = err.Error() })
		return
	}

	p.lastSummary = from
	p.metrics.Summary(metrics.ResultOK)
	entry := p.log.WithField("hour", from.Format(time.RFC3339))
	if sum.Empty() {
		entry.Warn("hourly summary written without data")
	} else {
		entry.Info("hourly summary written")
	}
	p.update(func(s *Status) { s.LastSummaryHour = from.Format(time.RFC3339) })
}

func (p *Pipeline) update(fn func(s *Status)) {
	p.mu.Lock()
	fn(&p.status)
	p.mu.Unlock()
}
