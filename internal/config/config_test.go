package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const minimalSQL = "ingest:\n  addr: '127.0.0.1:10110'\nsink:\n  sql:\n    dsn: 'host=localhost dbname=nav'\n"

func TestLoad_RequiresAddr(t *testing.T) {
	path := writeTempConfig(t, "sink:\n  sql:\n    dsn: x\n")
	_, err := Load(path)
	requireErrEq(t, err, "ingest.addr is required when ingest.source is 'tcp'")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeTempConfig(t, "")
	_, err := Load(path)
	requireErrEq(t, err, "ingest.addr is required when ingest.source is 'tcp'")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalSQL))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ingest.Source != "tcp" {
		t.Fatalf("source=%q want tcp", cfg.Ingest.Source)
	}
	if cfg.Ingest.DialTimeout != 5*time.Second || cfg.Ingest.ReconnectDelay != time.Second || cfg.Ingest.ReconnectMax != 30*time.Second {
		t.Fatalf("unexpected ingest timing defaults: %+v", cfg.Ingest)
	}
	if cfg.Sink.Kind != SinkSQL || cfg.Sink.SQL.Driver != "postgres" {
		t.Fatalf("sink=%+v", cfg.Sink)
	}
	if cfg.Pipeline.Interval != 20*time.Second {
		t.Fatalf("interval=%s want 20s", cfg.Pipeline.Interval)
	}
	if cfg.Pipeline.Tick != 100*time.Millisecond {
		t.Fatalf("tick=%s want 100ms", cfg.Pipeline.Tick)
	}
	if cfg.Sink.Retries == nil || *cfg.Sink.Retries != 1 {
		t.Fatalf("retries=%v want 1", cfg.Sink.Retries)
	}
	if cfg.Sink.WriteTimeout != 10*time.Second {
		t.Fatalf("write_timeout=%s want 10s", cfg.Sink.WriteTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log=%+v", cfg.Log)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("listen=%q", cfg.Web.Listen)
	}
}

func TestLoad_PushIntervalDefault(t *testing.T) {
	path := writeTempConfig(t, "ingest:\n  addr: 'x:1'\nsink:\n  kind: push\n  push:\n    url: 'http://vm:8428'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Pipeline.Interval != 5*time.Second {
		t.Fatalf("interval=%s want 5s", cfg.Pipeline.Interval)
	}
	if cfg.Sink.Push.Vessel != "logbook" {
		t.Fatalf("vessel=%q", cfg.Sink.Push.Vessel)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeTempConfig(t, `
ingest:
  addr: '192.168.76.51:10110'
  reconnect_delay: 2s
pipeline:
  interval: 30s
  tick: 250ms
sink:
  kind: kafka
  retries: 0
  kafka:
    brokers: ['k1:9092', 'k2:9092']
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Pipeline.Interval != 30*time.Second || cfg.Pipeline.Tick != 250*time.Millisecond {
		t.Fatalf("pipeline=%+v", cfg.Pipeline)
	}
	if cfg.Ingest.ReconnectDelay != 2*time.Second {
		t.Fatalf("reconnect_delay=%s", cfg.Ingest.ReconnectDelay)
	}
	if *cfg.Sink.Retries != 0 {
		t.Fatalf("retries=%d want 0", *cfg.Sink.Retries)
	}
	if len(cfg.Sink.Kafka.Brokers) != 2 || cfg.Sink.Kafka.Topic != "logbook.snapshots" {
		t.Fatalf("kafka=%+v", cfg.Sink.Kafka)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "UnknownSource",
			body: "ingest:\n  source: can\n",
			want: "ingest.source must be one of tcp, udp, serial",
		},
		{
			name: "UDPRequiresAddr",
			body: "ingest:\n  source: udp\n",
			want: "ingest.addr is required when ingest.source is 'udp'",
		},
		{
			name: "SerialRequiresDevice",
			body: "ingest:\n  source: serial\n",
			want: "ingest.device is required when ingest.source is 'serial'",
		},
		{
			name: "UnknownSink",
			body: "ingest:\n  addr: 'x:1'\nsink:\n  kind: influx\n",
			want: "sink.kind must be one of sql, push, kafka",
		},
		{
			name: "SQLRequiresDSN",
			body: "ingest:\n  addr: 'x:1'\n",
			want: "sink.sql.dsn is required",
		},
		{
			name: "SQLDriver",
			body: "ingest:\n  addr: 'x:1'\nsink:\n  sql:\n    driver: mysql\n    dsn: x\n",
			want: "sink.sql.driver must be one of postgres, sqlite",
		},
		{
			name: "PushRequiresURL",
			body: "ingest:\n  addr: 'x:1'\nsink:\n  kind: push\n",
			want: "sink.push.url is required",
		},
		{
			name: "KafkaRequiresBrokers",
			body: "ingest:\n  addr: 'x:1'\nsink:\n  kind: kafka\n",
			want: "sink.kafka.brokers is required",
		},
		{
			name: "NegativeRetries",
			body: minimalSQL + "  retries: -1\n",
			want: "sink.retries must be >= 0",
		},
		{
			name: "TickTooLarge",
			body: minimalSQL + "pipeline:\n  interval: 1s\n  tick: 1s\n",
			want: "pipeline.tick must be smaller than pipeline.interval",
		},
		{
			name: "ReconnectMax",
			body: "ingest:\n  addr: 'x:1'\n  reconnect_delay: 10s\n  reconnect_max: 1s\n",
			want: "ingest.reconnect_max must be >= ingest.reconnect_delay",
		},
		{
			name: "LogFormat",
			body: minimalSQL + "log:\n  format: xml\n",
			want: "log.format must be one of text, json",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, minimalSQL+"  mode: fast\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field mode not found in type config.SinkConfig")
}
