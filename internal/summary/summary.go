// Package summary computes the hourly rollup of persisted snapshots.
package summary

import (
	"context"
	"fmt"
	"math"
	"time"

	"logbook/internal/telemetry"
)

// Store is the history a summarizer reads from and writes to. Samples must
// return every record with from <= Time < to, oldest first.
type Store interface {
	Samples(ctx context.Context, from, to time.Time) ([]telemetry.Record, error)
	WriteSummary(ctx context.Context, s telemetry.Summary) error
}

type Summarizer struct {
	store Store
}

func New(store Store) *Summarizer {
	return &Summarizer{store: store}
}

// Summarize builds the summary of [hourStart, hourEnd). Averages skip
// records where the field is absent; the last-fix fields come from the most
// recent record in the window.
func (s *Summarizer) Summarize(ctx context.Context, hourStart, hourEnd time.Time) (telemetry.Summary, error) {
	if !hourEnd.After(hourStart) {
		return telemetry.Summary{}, fmt.Errorf("summary window is empty: %s..%s", hourStart, hourEnd)
	}
	recs, err := s.store.Samples(ctx, hourStart, hourEnd)
	if err != nil {
		return telemetry.Summary{}, fmt.Errorf("read samples: %w", err)
	}
	return Compute(hourStart, hourEnd, recs), nil
}

// Run summarizes the window and persists the result.
func (s *Summarizer) Run(ctx context.Context, hourStart, hourEnd time.Time) (telemetry.Summary, error) {
	sum, err := s.Summarize(ctx, hourStart, hourEnd)
	if err != nil {
		return telemetry.Summary{}, err
	}
	if err := s.store.WriteSummary(ctx, sum); err != nil {
		return sum, fmt.Errorf("write summary: %w", err)
	}
	return sum, nil
}

// Compute is the pure part of Summarize. Records outside [hourStart,
// hourEnd) are ignored.
func Compute(hourStart, hourEnd time.Time, recs []telemetry.Record) telemetry.Summary {
	out := telemetry.Summary{Hour: hourStart}

	var (
		twa, tws, awa, aws, hdg, spd mean
		last                         *telemetry.Record
	)
	for i := range recs {
		r := &recs[i]
		if r.Time.Before(hourStart) || !r.Time.Before(hourEnd) {
			continue
		}
		twa.add(r.Values, telemetry.TWA)
		tws.add(r.Values, telemetry.TWS)
		awa.add(r.Values, telemetry.AWA)
		aws.add(r.Values, telemetry.AWS)
		hdg.add(r.Values, telemetry.HeadingMagnetic)
		spd.add(r.Values, telemetry.Speed)
		if last == nil || !r.Time.Before(last.Time) {
			last = r
		}
	}

	out.TWA = twa.value()
	out.TWS = tws.value()
	out.AWA = awa.value()
	out.AWS = aws.value()
	out.Heading = hdg.value()
	out.Speed = spd.value()

	if last != nil {
		v := last.Values
		out.Altitude = floatPtr(v, telemetry.Altitude)
		out.Latitude = floatPtr(v, telemetry.Lat)
		out.LatDir = textPtr(v, telemetry.LatDir)
		out.Longitude = floatPtr(v, telemetry.Lon)
		out.LonDir = textPtr(v, telemetry.LonDir)
		out.Depth = floatPtr(v, telemetry.Depth)
		out.Temp = floatPtr(v, telemetry.Temperature)
	}
	return out
}

// HourWindow returns the clock hour that ended at or before now (UTC).
func HourWindow(now time.Time) (start, end time.Time) {
	end = now.UTC().Truncate(time.Hour)
	return end.Add(-time.Hour), end
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v telemetry.Values, f telemetry.Field) {
	x, ok := v.Float(f)
	if !ok {
		return
	}
	m.sum += x
	m.n++
}

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := math.Round(m.sum/float64(m.n)*100) / 100
	return &v
}

func floatPtr(v telemetry.Values, f telemetry.Field) *float64 {
	x, ok := v.Float(f)
	if !ok {
		return nil
	}
	return &x
}

func textPtr(v telemetry.Values, f telemetry.Field) *string {
	s, ok := v.Text(f)
	if !ok {
		return nil
	}
	return &s
}
