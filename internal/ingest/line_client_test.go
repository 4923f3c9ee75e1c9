package ingest

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"logbook/internal/metrics"
)

type lineSink struct {
	mu    sync.Mutex
	lines []string
	ch    chan struct{}
}

func newLineSink() *lineSink { return &lineSink{ch: make(chan struct{}, 64)} }

func (s *lineSink) add(line []byte) {
	s.mu.Lock()
	s.lines = append(s.lines, string(line))
	s.mu.Unlock()
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *lineSink) waitN(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		if len(s.lines) >= n {
			out := append([]string(nil), s.lines...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		select {
		case <-s.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d lines", n)
		}
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestLineClient_ManyLinesBeforeWait(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte(strings.Repeat("$GPHDG,90.0,,,,\n", 200)))
		time.Sleep(200 * time.Millisecond)
	}()

	c, err := NewLineClient(LineClientConfig{Addr: ln.Addr().String()})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	sink := newLineSink()
	if err := c.Start(context.Background(), sink.add); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	time.Sleep(100 * time.Millisecond)
	if got := sink.waitN(t, 200); len(got) != 200 {
		t.Fatalf("lines=%d want 200", len(got))
	}
}

func TestLineClient_setState_ClearsStaleErrorOnConnected(t *testing.T) {
	c, err := NewLineClient(LineClientConfig{Addr: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}

	c.setState("error", "dial tcp: connection refused")
	c.setState("connected", "")

	st := c.Status()
	if st.State != "connected" {
		t.Fatalf("state=%q want %q", st.State, "connected")
	}
	if st.LastError != "" {
		t.Fatalf("last_error=%q want empty", st.LastError)
	}
}

func TestNewLineClient_Validation(t *testing.T) {
	if _, err := NewLineClient(LineClientConfig{}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
	if _, err := NewLineClient(LineClientConfig{Source: SourceSerial}); err == nil {
		t.Fatalf("expected error for missing device")
	}
	if _, err := NewLineClient(LineClientConfig{Source: "can", Addr: "x"}); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestLineClient_LinesSplitAcrossWrites(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		chunks := []string{
			"$GPMWV,45.0,R,10",
			".0,N,A*2B\r\n$GPR",
			"MC,120000,A\r\n\r\n",
			"$GPDPT,3.4,0.0*",
			"4F\r\n",
		}
		for _, ch := range chunks {
			_, _ = conn.Write([]byte(ch))
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(200 * time.Millisecond)
	}()

	c, err := NewLineClient(LineClientConfig{Addr: ln.Addr().String(), ReconnectDelay: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	sink := newLineSink()
	if err := c.Start(context.Background(), sink.add); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	got := sink.waitN(t, 3)
	want := []string{"$GPMWV,45.0,R,10.0,N,A*2B", "$GPRMC,120000,A", "$GPDPT,3.4,0.0*4F"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q want %q", i, got[i], want[i])
		}
	}
	if st := c.Status(); st.Lines < 3 || st.Session == "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestLineClient_FinalLineWithoutNewline(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("$GPHDG,90.0,,,,\n$GPMTW,12.5,C"))
		_ = conn.Close()
	}()

	c, err := NewLineClient(LineClientConfig{Addr: ln.Addr().String(), ReconnectDelay: time.Second})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	sink := newLineSink()
	if err := c.Start(context.Background(), sink.add); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	got := sink.waitN(t, 2)
	if got[1] != "$GPMTW,12.5,C" {
		t.Fatalf("last line = %q", got[1])
	}
}

func TestLineClient_OversizedLineSkipped(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte(strings.Repeat("x", 200) + "\n$GPHDG,1.0,,,,\n"))
		time.Sleep(200 * time.Millisecond)
	}()

	c, err := NewLineClient(LineClientConfig{Addr: ln.Addr().String(), MaxLineBytes: 64})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	sink := newLineSink()
	if err := c.Start(context.Background(), sink.add); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	got := sink.waitN(t, 1)
	if got[0] != "$GPHDG,1.0,,,," {
		t.Fatalf("line = %q", got[0])
	}
	if st := c.Status(); st.Oversized != 1 {
		t.Fatalf("oversized=%d want 1", st.Oversized)
	}
}

func TestLineClient_ReconnectsAfterEOF(t *testing.T) {
	ln := listen(t)
	go func() {
		for i := 0; i < 2; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("$GPROT,1.5,A\n"))
			_ = conn.Close()
		}
	}()

	m := metrics.New(nil)
	c, err := NewLineClient(LineClientConfig{
		Addr:           ln.Addr().String(),
		ReconnectDelay: 20 * time.Millisecond,
		ReconnectMax:   50 * time.Millisecond,
		Metrics:        m,
	})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	sink := newLineSink()
	if err := c.Start(context.Background(), sink.add); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	sink.waitN(t, 2)
	if st := c.Status(); st.Connects < 2 {
		t.Fatalf("connects=%d want >= 2", st.Connects)
	}
	if got := testutil.ToFloat64(m.Reconnects); got < 2 {
		t.Fatalf("reconnect metric=%f want >= 2", got)
	}
}

func TestLineClient_CloseStopsBlockedRead(t *testing.T) {
	ln := listen(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	c, err := NewLineClient(LineClientConfig{Addr: ln.Addr().String()})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	if err := c.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatalf("client never connected")
	}
	defer server.Close()

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Close did not return")
	}
	if st := c.Status(); st.State != "stopped" {
		t.Fatalf("state=%q want stopped", st.State)
	}
	if err := c.Start(context.Background(), func([]byte) {}); err == nil {
		t.Fatalf("expected Start after Close to fail")
	}
}

func TestLineClient_UDPDatagrams(t *testing.T) {
	c, err := NewLineClient(LineClientConfig{Source: SourceUDP, Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewLineClient: %v", err)
	}
	sink := newLineSink()
	if err := c.Start(context.Background(), sink.add); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	var local string
	deadline := time.Now().Add(5 * time.Second)
	for local == "" && time.Now().Before(deadline) {
		if st := c.Status(); st.State == "connected" {
			local = st.LocalAddr
		}
		time.Sleep(5 * time.Millisecond)
	}
	if local == "" {
		t.Fatalf("udp listener never came up")
	}

	conn, err := net.Dial("udp", local)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_, _ = conn.Write([]byte("$GPHDG,90.0,,,,\r\n$GPMTW,12.5,C"))
	_, _ = conn.Write([]byte("$GPDPT,3.4,0.0\r\n"))

	got := sink.waitN(t, 3)
	want := []string{"$GPHDG,90.0,,,,", "$GPMTW,12.5,C", "$GPDPT,3.4,0.0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q want %q", i, got[i], want[i])
		}
	}
}
