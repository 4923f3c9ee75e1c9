// Package ingest reads newline-delimited NMEA 0183 text from a TCP
// multiplexer or a local serial device.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"logbook/internal/metrics"
)

const (
	SourceTCP    = "tcp"
	SourceUDP    = "udp"
	SourceSerial = "serial"
)

type LineClientConfig struct {
	Source string
	Addr   string
	Device string
	Baud   int

	DialTimeout time.Duration
	// ReconnectDelay is the first wait after a failure; it doubles up to
	// ReconnectMax and resets once a connection delivers data.
	ReconnectDelay time.Duration
	ReconnectMax   time.Duration
	MaxLineBytes   int

	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
}

type LineClient struct {
	cfg LineClientConfig
	log logrus.FieldLogger

	started atomic.Bool
	closed  atomic.Bool

	mu        sync.RWMutex
	state     string
	lastErr   string
	lastSeen  time.Time
	session   string
	lines     uint64
	oversized uint64
	connects  uint64
	local     string

	cancel context.CancelFunc
	done   chan struct{}
}

// Status is the JSON view served at /api/status.
type Status struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	LocalAddr   string `json:"local_addr,omitempty"`
	State       string `json:"state"`
	Session     string `json:"session,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Lines       uint64 `json:"lines"`
	Oversized   uint64 `json:"oversized_lines,omitempty"`
	Connects    uint64 `json:"connects"`
}

func NewLineClient(cfg LineClientConfig) (*LineClient, error) {
	if cfg.Source == "" {
		cfg.Source = SourceTCP
	}
	switch cfg.Source {
	case SourceTCP, SourceUDP:
		if cfg.Addr == "" {
			return nil, fmt.Errorf("line client addr is required")
		}
	case SourceSerial:
		if cfg.Device == "" {
			return nil, fmt.Errorf("line client device is required")
		}
		if cfg.Baud <= 0 {
			cfg.Baud = 4800
		}
	default:
		return nil, fmt.Errorf("unknown line source %q", cfg.Source)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectDelay {
		cfg.ReconnectMax = 30 * time.Second
		if cfg.ReconnectMax < cfg.ReconnectDelay {
			cfg.ReconnectMax = cfg.ReconnectDelay
		}
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4096
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &LineClient{
		cfg:   cfg,
		log:   log.WithFields(logrus.Fields{"source": cfg.Source, "target": target(cfg)}),
		state: "stopped",
		done:  make(chan struct{}),
	}, nil
}

// Start opens the source and reads lines until ctx is cancelled or Close
// is called. onLine receives each trimmed, non-empty line as a copy it may
// keep. onLine runs on the reader goroutine.
func (c *LineClient) Start(ctx context.Context, onLine func(line []byte)) error {
	if c == nil {
		return fmt.Errorf("line client is nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("line client is closed")
	}
	if onLine == nil {
		return fmt.Errorf("line onLine is nil")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("line client already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setState("connecting", "")

	go func() {
		defer close(c.done)
		c.runLoop(runCtx, onLine)
	}()
	return nil
}

func (c *LineClient) Close() {
	if c == nil {
		return
	}
	if c.closed.Swap(true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.started.Load() {
		<-c.done
	}
}

func (c *LineClient) Status() Status {
	if c == nil {
		return Status{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Status{
		Source:    c.cfg.Source,
		Target:    target(c.cfg),
		LocalAddr: c.local,
		State:     c.state,
		Session:   c.session,
		LastError: c.lastErr,
		Lines:     c.lines,
		Oversized: c.oversized,
		Connects:  c.connects,
	}
	if !c.lastSeen.IsZero() {
		out.LastSeenUTC = c.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (c *LineClient) runLoop(ctx context.Context, onLine func(line []byte)) {
	backoff := c.cfg.ReconnectDelay
	for {
		if ctx.Err() != nil {
			c.setState("stopped", "")
			return
		}

		c.setState("connecting", "")
		rc, err := c.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState("stopped", "")
				return
			}
			c.setState("error", err.Error())
			c.log.WithError(err).Warnf("connect failed, retrying in %s", backoff)
		} else {
			delivered := c.serve(ctx, rc, onLine)
			if ctx.Err() != nil {
				c.setState("stopped", "")
				return
			}
			if delivered {
				backoff = c.cfg.ReconnectDelay
			}
			c.log.Infof("disconnected, reconnecting in %s", backoff)
		}

		if !sleepCtx(ctx, backoff) {
			c.setState("stopped", "")
			return
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

func (c *LineClient) open(ctx context.Context) (io.ReadCloser, error) {
	switch c.cfg.Source {
	case SourceUDP:
		r, err := listenUDP(c.cfg.Addr)
		if err != nil {
			return nil, err
		}
		c.setLocalAddr(r.LocalAddr())
		return r, nil
	case SourceSerial:
		f, err := openSerial(c.cfg.Device, c.cfg.Baud)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
		if err != nil {
			return nil, err
		}
		c.setLocalAddr(conn.LocalAddr())
		return conn, nil
	}
}

// serve reads one connection to completion and reports whether any line
// was delivered.
func (c *LineClient) serve(ctx context.Context, rc io.ReadCloser, onLine func(line []byte)) bool {
	stop := context.AfterFunc(ctx, func() { _ = rc.Close() })
	defer func() {
		stop()
		_ = rc.Close()
	}()

	session := uuid.NewString()
	c.mu.Lock()
	c.session = session
	c.connects++
	c.mu.Unlock()
	c.setState("connected", "")
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.Reconnects.Inc()
	}
	log := c.log.WithField("session", session)
	log.Info("connected")

	reader := bufio.NewReaderSize(rc, c.cfg.MaxLineBytes)
	delivered := false
	skipping := false
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !skipping {
				c.mu.Lock()
				c.oversized++
				c.mu.Unlock()
				log.Warnf("line exceeds %d bytes, discarding", c.cfg.MaxLineBytes)
			}
			skipping = true
			continue
		}
		if len(line) > 0 && !skipping {
			if c.deliver(line, onLine) {
				delivered = true
			}
		}
		if err == nil && skipping {
			skipping = false
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				c.setState("disconnected", "")
			default:
				c.setState("disconnected", err.Error())
				log.WithError(err).Warn("read failed")
			}
			return delivered
		}
	}
}

func (c *LineClient) deliver(line []byte, onLine func(line []byte)) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}
	onLine(append([]byte(nil), line...))

	c.mu.Lock()
	c.lastSeen = time.Now().UTC()
	c.lines++
	c.mu.Unlock()
	return true
}

func (c *LineClient) setLocalAddr(a net.Addr) {
	if a == nil {
		return
	}
	c.mu.Lock()
	c.local = a.String()
	c.mu.Unlock()
}

func (c *LineClient) setState(state string, lastErr string) {
	c.mu.Lock()
	c.state = state
	if lastErr != "" {
		c.lastErr = lastErr
	} else if state == "connected" || state == "connecting" || state == "stopped" {
		c.lastErr = ""
	}
	c.mu.Unlock()
}

func target(cfg LineClientConfig) string {
	if cfg.Source == SourceSerial {
		return cfg.Device
	}
	return cfg.Addr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
