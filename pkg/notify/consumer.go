package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/nats-io/nats.go"
	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one decoded feed event.
type Handler func(ctx context.Context, ev model.Event)

type KafkaConsumer struct {
	reader *kafka.Reader
	log    *zap.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, log *zap.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &KafkaConsumer{reader: r, log: log}
}

// Consume reads events until ctx is cancelled. Read errors are retried after
// a second; undecodable records are skipped.
func (c *KafkaConsumer) Consume(ctx context.Context, h Handler) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("read kafka message, retrying in 1s", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		ev, err := decodeEvent(m.Value)
		if err != nil {
			c.log.Warn("skipping record", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		h(ctx, ev)
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// SubscribeNATS delivers every event published under prefix to h until the
// returned close function is called.
func SubscribeNATS(url, prefix string, h Handler, log *zap.Logger) (func(), error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	nc, err := nats.Connect(url, nats.Name("chat-feed-notifier"))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "connect to nats at %s", url)
	}
	_, err = nc.Subscribe(prefix+".>", func(m *nats.Msg) {
		ev, err := decodeEvent(m.Data)
		if err != nil {
			log.Warn("skipping nats message", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		h(context.Background(), ev)
	})
	if err != nil {
		nc.Close()
		return nil, pkgerrors.Wrap(err, "subscribe")
	}
	return nc.Close, nil
}

var errMissingFields = errors.New("event without type or user")

func decodeEvent(b []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return model.Event{}, pkgerrors.Wrap(err, "decode event")
	}
	if ev.Type == "" || ev.UserID == "" {
		return model.Event{}, errMissingFields
	}
	return ev, nil
}
