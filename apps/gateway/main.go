package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahaj/chat-feed/pkg/api"
	"github.com/mahaj/chat-feed/pkg/auth"
	"github.com/mahaj/chat-feed/pkg/config"
	"github.com/mahaj/chat-feed/pkg/feed"
	"github.com/mahaj/chat-feed/pkg/gateway"
	"github.com/mahaj/chat-feed/pkg/logger"
	"github.com/mahaj/chat-feed/pkg/notify"
	"github.com/mahaj/chat-feed/pkg/session"
	"github.com/mahaj/chat-feed/pkg/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional config file")
	verify := flag.Bool("verify-tokens", false, "check token signatures with backend.jwt_secret")
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

	ids, err := snowflake.NewGenerator(cfg.Snowflake.Node)
	if err != nil {
		log.Fatal("snowflake generator", zap.Error(err))
	}
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout,
		api.WithLogger(log.Named("api")), api.WithIDGenerator(ids))

	sink, err := notify.New(cfg, log)
	if err != nil {
		log.Fatal("event sink", zap.Error(err))
	}
	defer sink.Close()

	var names feed.NameStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		names = feed.NewRedisNameStore(rdb, cfg.Redis.Key)
	}

	newPoller := func(sess session.Session) *feed.Poller {
		lookup := client.UserLookup(sess)
		if names != nil {
			lookup = feed.CachedLookup(names, lookup, log)
		}
		return feed.NewPoller(sess, client.ChatsFetcher(cfg.Poll.PageSize), lookup, feed.Options{
			Interval:    cfg.Poll.Interval,
			Concurrency: cfg.Names.Concurrency,
			Logger:      log.Named("poller"),
			Sink:        sink,
		})
	}

	opts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithSender(func(ctx context.Context, sess session.Session, peerID, content string) error {
			_, err := client.SendMessage(ctx, sess, peerID, content)
			return err
		}),
	}
	if *verify {
		opts = append(opts, gateway.WithSigner(auth.NewSigner([]byte(cfg.Backend.JWTSecret), 0)))
	}
	hub := gateway.NewHub(newPoller, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	srv := &http.Server{Addr: cfg.Gateway.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Gateway service starting", zap.String("addr", srv.Addr), zap.String("api", cfg.API.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	// pollers publish to sink until the hub has stopped them
	<-hubDone
}
