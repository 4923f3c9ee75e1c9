package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ingest   IngestConfig   `yaml:"ingest"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sink     SinkConfig     `yaml:"sink"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

type IngestConfig struct {
	// Source is "tcp" (NMEA multiplexer), "udp" (listen for broadcast
	// datagrams on Addr) or "serial" (local device).
	Source string `yaml:"source"`
	Addr   string `yaml:"addr"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	ReconnectMax   time.Duration `yaml:"reconnect_max"`
	MaxLineBytes   int           `yaml:"max_line_bytes"`
}

type PipelineConfig struct {
	// Interval between snapshot flushes. Defaults depend on sink.kind.
	Interval time.Duration `yaml:"interval"`
	Tick     time.Duration `yaml:"tick"`
	Queue    int           `yaml:"queue"`
}

type SinkConfig struct {
	Kind         string        `yaml:"kind"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// Retries after the first failed write. Nil means one retry.
	Retries    *int          `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	SQL   SQLConfig   `yaml:"sql"`
	Push  PushConfig  `yaml:"push"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type SQLConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	CreateSchema bool   `yaml:"create_schema"`
}

type PushConfig struct {
	URL    string `yaml:"url"`
	Vessel string `yaml:"vessel"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Vessel  string   `yaml:"vessel"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	SinkSQL   = "sql"
	SinkPush  = "push"
	SinkKafka = "kafka"
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) && unknownFieldsOnly(te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(stripLines(te.Errors), "; "))
		}
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills defaults in place and rejects inconsistent
// settings.
func DefaultAndValidate(cfg *Config) error {
	in := &cfg.Ingest
	in.Source = strings.ToLower(strings.TrimSpace(in.Source))
	if in.Source == "" {
		in.Source = "tcp"
	}
	switch in.Source {
	case "tcp", "udp":
		if strings.TrimSpace(in.Addr) == "" {
			return fmt.Errorf("ingest.addr is required when ingest.source is '%s'", in.Source)
		}
	case "serial":
		if strings.TrimSpace(in.Device) == "" {
			return fmt.Errorf("ingest.device is required when ingest.source is 'serial'")
		}
		if in.Baud == 0 {
			in.Baud = 4800
		}
	default:
		return fmt.Errorf("ingest.source must be one of tcp, udp, serial")
	}
	if in.DialTimeout <= 0 {
		in.DialTimeout = 5 * time.Second
	}
	if in.ReconnectDelay <= 0 {
		in.ReconnectDelay = 1 * time.Second
	}
	if in.ReconnectMax <= 0 {
		in.ReconnectMax = 30 * time.Second
	}
	if in.ReconnectMax < in.ReconnectDelay {
		return fmt.Errorf("ingest.reconnect_max must be >= ingest.reconnect_delay")
	}
	if in.MaxLineBytes <= 0 {
		in.MaxLineBytes = 4096
	}

	sk := &cfg.Sink
	sk.Kind = strings.ToLower(strings.TrimSpace(sk.Kind))
	if sk.Kind == "" {
		sk.Kind = SinkSQL
	}
	switch sk.Kind {
	case SinkSQL:
		if sk.SQL.Driver == "" {
			sk.SQL.Driver = "postgres"
		}
		if sk.SQL.Driver != "postgres" && sk.SQL.Driver != "sqlite" {
			return fmt.Errorf("sink.sql.driver must be one of postgres, sqlite")
		}
		if strings.TrimSpace(sk.SQL.DSN) == "" {
			return fmt.Errorf("sink.sql.dsn is required")
		}
	case SinkPush:
		if strings.TrimSpace(sk.Push.URL) == "" {
			return fmt.Errorf("sink.push.url is required")
		}
		if sk.Push.Vessel == "" {
			sk.Push.Vessel = "logbook"
		}
	case SinkKafka:
		if len(sk.Kafka.Brokers) == 0 {
			return fmt.Errorf("sink.kafka.brokers is required")
		}
		if sk.Kafka.Topic == "" {
			sk.Kafka.Topic = "logbook.snapshots"
		}
		if sk.Kafka.Vessel == "" {
			sk.Kafka.Vessel = "logbook"
		}
	default:
		return fmt.Errorf("sink.kind must be one of sql, push, kafka")
	}
	if sk.WriteTimeout <= 0 {
		sk.WriteTimeout = 10 * time.Second
	}
	if sk.Retries == nil {
		one := 1
		sk.Retries = &one
	}
	if *sk.Retries < 0 {
		return fmt.Errorf("sink.retries must be >= 0")
	}
	if sk.RetryDelay <= 0 {
		sk.RetryDelay = 500 * time.Millisecond
	}

	p := &cfg.Pipeline
	if p.Interval <= 0 {
		// The relational logger historically flushed every 20s; push
		// endpoints expect a denser series.
		if sk.Kind == SinkSQL {
			p.Interval = 20 * time.Second
		} else {
			p.Interval = 5 * time.Second
		}
	}
	if p.Tick <= 0 {
		p.Tick = 100 * time.Millisecond
	}
	if p.Tick >= p.Interval {
		return fmt.Errorf("pipeline.tick must be smaller than pipeline.interval")
	}
	if p.Queue <= 0 {
		p.Queue = 1024
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be one of text, json")
	}
	return nil
}

func unknownFieldsOnly(te *yaml.TypeError) bool {
	for _, e := range te.Errors {
		if !strings.Contains(e, "not found in type") {
			return false
		}
	}
	return len(te.Errors) > 0
}

// stripLines drops the "line N: " prefix yaml.v3 puts on each message.
func stripLines(errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if strings.HasPrefix(e, "line ") {
			if _, rest, ok := strings.Cut(e, ": "); ok {
				e = rest
			}
		}
		out = append(out, e)
	}
	return out
}
