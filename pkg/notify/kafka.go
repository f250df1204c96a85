package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes one record per event, keyed by peer id so the events of a
// conversation stay in one partition.
type KafkaSink struct {
	w messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

func (s *KafkaSink) Publish(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := kafkaMessages(events, time.Now())
	if err != nil {
		return err
	}
	return errors.Wrap(s.w.WriteMessages(ctx, msgs...), "write events to kafka")
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

func kafkaMessages(events []model.Event, now time.Time) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return nil, errors.Wrap(err, "encode event")
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.PeerID),
			Value: b,
			Time:  now,
		})
	}
	return msgs, nil
}
