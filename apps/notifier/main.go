package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahaj/chat-feed/pkg/config"
	"github.com/mahaj/chat-feed/pkg/logger"
	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/notify"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var activity *notify.Activity
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		activity = notify.NewActivity(rdb, "")
	}

	handle := func(ctx context.Context, ev model.Event) {
		log.Info("feed event",
			zap.String("type", string(ev.Type)),
			zap.String("user_id", ev.UserID),
			zap.String("peer_id", ev.PeerID),
			zap.String("message_id", ev.MessageID),
		)
		if activity != nil {
			if err := activity.Record(ctx, ev); err != nil {
				log.Warn("record activity", zap.Error(err))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Notify.Sink {
	case config.SinkKafka:
		consumer := notify.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		log.Info("Notifier consuming kafka", zap.String("topic", cfg.Kafka.Topic))
		if err := consumer.Consume(ctx, handle); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("consume", zap.Error(err))
		}
	case config.SinkNATS:
		closeSub, err := notify.SubscribeNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, handle, log)
		if err != nil {
			log.Fatal("subscribe", zap.Error(err))
		}
		defer closeSub()
		log.Info("Notifier subscribed to nats", zap.String("prefix", cfg.NATS.SubjectPrefix))
		<-ctx.Done()
	default:
		log.Fatal("notify.sink must be kafka or nats", zap.String("sink", cfg.Notify.Sink))
	}
}
