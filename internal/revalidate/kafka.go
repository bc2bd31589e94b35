package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"sitecarbon/pkg/requestcontext"
)

// Producer is the part of *kgo.Client used to publish events.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Event is the payload published for one invalidation.
type Event struct {
	Paths     []string  `json:"paths"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// Kafka publishes one Event per invalidation, keyed by the first path so
// events for a project stay ordered within a partition.
type Kafka struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Invalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	value, err := json.Marshal(Event{
		Paths:     paths,
		RequestID: requestcontext.RequestID(ctx),
		At:        requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal invalidation event: %w", err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(paths[0]),
		Value: value,
	}
	if err := k.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce invalidation event: %w", err)
	}
	return nil
}
