package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"logbook/internal/telemetry"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each snapshot as one JSON message keyed by vessel, so a
// vessel's records stay ordered within a partition.
type Kafka struct {
	writer messageWriter
	vessel string
}

type kafkaRecord struct {
	Vessel string           `json:"vessel"`
	Time   time.Time        `json:"time"`
	Values telemetry.Values `json:"values"`
}

func NewKafka(brokers []string, topic, vessel string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		vessel: vessel,
	}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) WriteSnapshot(ctx context.Context, rec telemetry.Record) error {
	if len(rec.Values) == 0 {
		return nil
	}
	payload, err := json.Marshal(kafkaRecord{Vessel: k.vessel, Time: rec.Time.UTC(), Values: rec.Values})
	if err != nil {
		return fmt.Errorf("encode kafka record: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.vessel),
		Value: payload,
		Time:  rec.Time,
	})
	if err != nil {
		return fmt.Errorf("publish kafka record: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }

var _ Sink = (*Kafka)(nil)
