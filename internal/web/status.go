package web

import (
	"time"

	"logbook/internal/ingest"
	"logbook/internal/pipeline"
)

type PipelineStatus interface {
	Status() pipeline.Status
}

type IngestStatus interface {
	Status() ingest.Status
}

// Status aggregates the live state of the running components for
// /api/status. Either source may be nil.
type Status struct {
	started  time.Time
	pipeline PipelineStatus
	ingest   IngestStatus
}

func NewStatus(p PipelineStatus, in IngestStatus) *Status {
	return &Status{started: time.Now().UTC(), pipeline: p, ingest: in}
}

type StatusSnapshot struct {
	Service   string           `json:"service"`
	NowUTC    string           `json:"now_utc"`
	UptimeSec int64            `json:"uptime_sec"`
	Pipeline  *pipeline.Status `json:"pipeline,omitempty"`
	Ingest    *ingest.Status   `json:"ingest,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap := StatusSnapshot{
		Service:   serviceName,
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(s.started).Seconds()),
	}
	if s.pipeline != nil {
		ps := s.pipeline.Status()
		snap.Pipeline = &ps
	}
	if s.ingest != nil {
		is := s.ingest.Status()
		snap.Ingest = &is
	}
	return snap
}
