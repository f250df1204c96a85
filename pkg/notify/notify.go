// Package notify publishes feed change events to a message broker.
package notify

import (
	"context"
	"fmt"

	"github.com/mahaj/chat-feed/pkg/config"
	"github.com/mahaj/chat-feed/pkg/feed"
	"github.com/mahaj/chat-feed/pkg/model"
	"go.uber.org/zap"
)

// Sink is a feed.EventSink that holds a broker connection.
type Sink interface {
	feed.EventSink
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, []model.Event) error { return nil }
func (Nop) Close() error                                 { return nil }

// New connects the sink selected by cfg.Notify.Sink.
func New(cfg *config.Config, log *zap.Logger) (Sink, error) {
	switch cfg.Notify.Sink {
	case config.SinkKafka:
		log.Info("publishing feed events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		return NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	case config.SinkNATS:
		log.Info("publishing feed events to nats",
			zap.String("url", cfg.NATS.URL), zap.String("prefix", cfg.NATS.SubjectPrefix))
		return DialNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	case config.SinkNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Notify.Sink)
	}
}
