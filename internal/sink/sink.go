// Package sink persists flushed snapshots.
//
// Every backend implements Sink. Backends that can read their own history
// also implement HistoryStore, which enables the hourly summary.
package sink

import (
	"context"
	"time"

	"logbook/internal/telemetry"
)

type Sink interface {
	Name() string
	// WriteSnapshot persists one record. Absent fields are omitted, never
	// written as zero.
	WriteSnapshot(ctx context.Context, rec telemetry.Record) error
	Close() error
}

// HistoryStore is the optional capability of sinks with durable read-back.
type HistoryStore interface {
	Sink
	Samples(ctx context.Context, from, to time.Time) ([]telemetry.Record, error)
	WriteSummary(ctx context.Context, s telemetry.Summary) error
	// Summaries lists summary rows newest first; limit <= 0 means all.
	Summaries(ctx context.Context, limit int) ([]telemetry.Summary, error)
}
