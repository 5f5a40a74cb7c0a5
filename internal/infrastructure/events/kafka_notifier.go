package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
	"ortho-mapper/internal/logging"
)

// RunCompleted is the event published for every finished run.
type RunCompleted struct {
	RunID        string         `json:"run_id"`
	Label        string         `json:"label"`
	Status       entity.Outcome `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	TileCount    int            `json:"tile_count"`
	FeatureCount int            `json:"feature_count"`
	PathCount    int            `json:"path_count"`
	IssueCount   int            `json:"issue_count"`
	ClassCounts  map[string]int `json:"class_counts"`
	GeoJSONPath  string         `json:"geojson_path"`
}

// NewRunCompleted builds the event for a record.
func NewRunCompleted(rec *entity.RunRecord) RunCompleted {
	return RunCompleted{
		RunID:        rec.ID,
		Label:        rec.Label,
		Status:       rec.Status,
		CreatedAt:    rec.CreatedAt,
		TileCount:    rec.TileCount,
		FeatureCount: rec.FeatureCount,
		PathCount:    rec.PathCount,
		IssueCount:   rec.IssueCount,
		ClassCounts:  rec.ClassCounts,
		GeoJSONPath:  rec.GeoJSONPath,
	}
}

// KafkaNotifier publishes RunCompleted events keyed by run ID.
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
	log      *logging.Logger
}

func NewKafkaNotifier(brokers, topic string, log *logging.Logger) (*KafkaNotifier, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   brokers,
		"acks":                "all",
		"enable.idempotence":  true,
		"linger.ms":           5,
		"request.timeout.ms":  30000,
		"delivery.timeout.ms": 120000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}
	log.Info("kafka producer initialized", "topic", topic, "brokers", brokers)
	return &KafkaNotifier{
		producer: p,
		topic:    topic,
		log:      log,
	}, nil
}

// Notify produces the event and waits for its delivery report.
func (n *KafkaNotifier) Notify(ctx context.Context, rec *entity.RunRecord) error {
	msg, err := n.message(rec)
	if err != nil {
		return err
	}
	deliveries := make(chan kafka.Event, 1)
	if err := n.producer.Produce(msg, deliveries); err != nil {
		return fmt.Errorf("failed to produce run event: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveries:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("run event delivery failed: %w", m.TopicPartition.Error)
		}
		n.log.Debug("run event delivered", "run_id", rec.ID, "partition", m.TopicPartition.Partition)
		return nil
	}
}

func (n *KafkaNotifier) message(rec *entity.RunRecord) (*kafka.Message, error) {
	payload, err := json.Marshal(NewRunCompleted(rec))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize run event: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &n.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(rec.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(rec.Status)},
		},
	}, nil
}

// Close flushes pending events and shuts the producer down.
func (n *KafkaNotifier) Close() {
	if remaining := n.producer.Flush(10000); remaining > 0 {
		n.log.Warn("events still queued after flush", "remaining", remaining)
	}
	n.producer.Close()
}

var _ port.RunNotifier = (*KafkaNotifier)(nil)
