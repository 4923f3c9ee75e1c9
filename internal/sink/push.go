package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"logbook/internal/telemetry"
)

const (
	importPath       = "/api/v1/import/prometheus"
	textContentType  = "text/plain; version=0.0.4"
	maxErrorBodySize = 512
)

// Push posts each snapshot in Prometheus text exposition format to a
// VictoriaMetrics style import endpoint. It keeps no history.
type Push struct {
	url    string
	vessel string
	client *http.Client
}

// NewPush targets baseURL (for example http://localhost:8428). A nil client
// uses http.DefaultClient; deadlines come from the write context.
func NewPush(baseURL, vessel string, client *http.Client) *Push {
	if client == nil {
		client = http.DefaultClient
	}
	return &Push{
		url:    strings.TrimRight(baseURL, "/") + importPath,
		vessel: vessel,
		client: client,
	}
}

func (p *Push) Name() string { return "push" }

func (p *Push) Close() error { return nil }

func (p *Push) WriteSnapshot(ctx context.Context, rec telemetry.Record) error {
	body, err := p.encode(rec)
	if err != nil {
		return err
	}
	if body.Len() == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", textContentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("push metrics: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// encode renders one untyped sample per present field, in column order.
// Text fields carry their reading in a "value" label with sample value 1.
func (p *Push) encode(rec telemetry.Record) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	for _, f := range rec.Values.Present() {
		if _, err := expfmt.MetricFamilyToText(&buf, p.family(f, rec.Values[f], ts)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", f, err)
		}
	}
	return &buf, nil
}

func (p *Push) family(f telemetry.Field, v telemetry.Value, ts time.Time) *dto.MetricFamily {
	labels := []*dto.LabelPair{{Name: proto.String("vessel"), Value: proto.String(p.vessel)}}
	sample := 1.0
	if v.IsText() {
		labels = append(labels, &dto.LabelPair{Name: proto.String("value"), Value: proto.String(v.String())})
	} else {
		sample, _ = v.Float()
	}
	return &dto.MetricFamily{
		Name: proto.String(string(f)),
		Type: dto.MetricType_UNTYPED.Enum(),
		Metric: []*dto.Metric{{
			Label:       labels,
			Untyped:     &dto.Untyped{Value: proto.Float64(sample)},
			TimestampMs: proto.Int64(ts.UnixMilli()),
		}},
	}
}

var _ Sink = (*Push)(nil)
