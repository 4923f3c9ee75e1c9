package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logbook/internal/telemetry"
)

type memStore struct {
	recs    []telemetry.Record
	written []telemetry.Summary
	readErr error
}

func (m *memStore) Samples(_ context.Context, from, to time.Time) ([]telemetry.Record, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []telemetry.Record
	for _, r := range m.recs {
		if !r.Time.Before(from) && r.Time.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) WriteSummary(_ context.Context, s telemetry.Summary) error {
	m.written = append(m.written, s)
	return nil
}

var hour = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func TestSummarize_AveragesAndLastFix(t *testing.T) {
	st := &memStore{recs: []telemetry.Record{
		{Time: hour.Add(5 * time.Minute), Values: telemetry.Values{
			telemetry.AWA: telemetry.Number(40), telemetry.AWS: telemetry.Number(10),
			telemetry.Speed: telemetry.Number(5), telemetry.HeadingMagnetic: telemetry.Number(90),
			telemetry.Depth: telemetry.Number(12), telemetry.Lat: telemetry.Number(4807.038),
		}},
		{Time: hour.Add(30 * time.Minute), Values: telemetry.Values{
			telemetry.AWA: telemetry.Number(50), telemetry.AWS: telemetry.Number(11),
			telemetry.Speed: telemetry.Number(6), telemetry.TWS: telemetry.Number(7.333),
			telemetry.Lat: telemetry.Number(4808.5), telemetry.LatDir: telemetry.Text("N"),
			telemetry.Temperature: telemetry.Number(17.5),
		}},
	}}

	sum, err := New(st).Run(context.Background(), hour, hour.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, st.written, 1)

	assert.Equal(t, hour, sum.Hour)
	assert.Equal(t, 45.0, *sum.AWA)
	assert.Equal(t, 10.5, *sum.AWS)
	assert.Equal(t, 5.5, *sum.Speed)
	assert.Equal(t, 90.0, *sum.Heading, "absent values are skipped, not zero-averaged")
	assert.Equal(t, 7.33, *sum.TWS)
	assert.Nil(t, sum.TWA)

	// Last fix comes from the latest record only.
	assert.Equal(t, 4808.5, *sum.Latitude)
	assert.Equal(t, "N", *sum.LatDir)
	assert.Equal(t, 17.5, *sum.Temp)
	assert.Nil(t, sum.Depth, "depth was only in the earlier record")
}

func TestSummarize_HalfOpenWindow(t *testing.T) {
	recs := []telemetry.Record{
		{Time: hour, Values: telemetry.Values{telemetry.Speed: telemetry.Number(4)}},
		{Time: hour.Add(time.Hour), Values: telemetry.Values{telemetry.Speed: telemetry.Number(100)}},
		{Time: hour.Add(-time.Nanosecond), Values: telemetry.Values{telemetry.Speed: telemetry.Number(100)}},
	}
	sum := Compute(hour, hour.Add(time.Hour), recs)
	require.NotNil(t, sum.Speed)
	assert.Equal(t, 4.0, *sum.Speed)
}

func TestSummarize_NoRowsWritesNullRow(t *testing.T) {
	st := &memStore{}
	sum, err := New(st).Run(context.Background(), hour, hour.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, st.written, 1)
	assert.True(t, sum.Empty())
	assert.Equal(t, hour, st.written[0].Hour)
}

func TestSummarize_ReadError(t *testing.T) {
	boom := errors.New("db down")
	st := &memStore{readErr: boom}
	_, err := New(st).Run(context.Background(), hour, hour.Add(time.Hour))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, st.written)
}

func TestSummarize_RejectsEmptyWindow(t *testing.T) {
	_, err := New(&memStore{}).Summarize(context.Background(), hour, hour)
	require.Error(t, err)
}

func TestHourWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 11, 0, 7, 0, time.FixedZone("X", 3600))
	start, end := HourWindow(now)
	assert.Equal(t, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), end)
}
