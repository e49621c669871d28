package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/config"
	"github.com/couchcryptid/climate-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const batchSize = 500

// Writer publishes monthly records to a Kafka topic, one message per
// (state, month). It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    batchSize,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Load publishes every monthly record, keyed by state and month so a topic
// compacted on key keeps the latest value per row.
func (w *Writer) Load(ctx context.Context, ds domain.Dataset) error {
	if len(ds.Records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, batchSize)
	for i := range ds.Records {
		msg, err := serializeToMessage(ds.Records[i], ds.Report.RunID)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		if len(msgs) == batchSize {
			if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
				return fmt.Errorf("publish records: %w", err)
			}
			msgs = msgs[:0]
		}
	}
	if len(msgs) > 0 {
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish records: %w", err)
		}
	}
	w.logger.Debug("records published", "topic", w.writer.Topic, "records", len(ds.Records))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// MessageKey identifies a monthly record on the topic.
func MessageKey(r domain.MonthlyRecord) string {
	return r.State + "|" + r.Date.Format(time.DateOnly)
}

// serializeToMessage marshals a record as a flat JSON object keyed by the
// output table column names. Missing metrics are null.
func serializeToMessage(r domain.MonthlyRecord, runID string) (kafkago.Message, error) {
	fields := make(map[string]any)
	for _, t := range domain.Tables {
		cols := t.Columns()
		for i, v := range t.Values(r) {
			fields[cols[i].Name] = v
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize monthly record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(r)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "zone", Value: []byte(r.Zone)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
