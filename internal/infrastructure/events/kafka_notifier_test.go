package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/require"

	"ortho-mapper/internal/domain/entity"
)

func TestKafkaNotifier_Message(t *testing.T) {
	n := &KafkaNotifier{topic: "ortho.runs"}
	rec := &entity.RunRecord{
		ID:           "run-1",
		Label:        "nightly",
		Status:       entity.OutcomeDegraded,
		CreatedAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		FeatureCount: 3,
		ClassCounts:  map[string]int{"single-tree": 3},
	}

	msg, err := n.message(rec)
	require.NoError(t, err)
	require.Equal(t, "ortho.runs", *msg.TopicPartition.Topic)
	require.Equal(t, kafka.PartitionAny, msg.TopicPartition.Partition)
	require.Equal(t, "run-1", string(msg.Key))
	require.Equal(t, "degraded", string(msg.Headers[0].Value))

	var ev RunCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	require.Equal(t, "run-1", ev.RunID)
	require.Equal(t, entity.OutcomeDegraded, ev.Status)
	require.Equal(t, 3, ev.ClassCounts["single-tree"])
}
