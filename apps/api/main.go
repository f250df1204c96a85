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

	"github.com/mahaj/chat-feed/pkg/auth"
	"github.com/mahaj/chat-feed/pkg/backend"
	"github.com/mahaj/chat-feed/pkg/config"
	"github.com/mahaj/chat-feed/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional config file")
	seed := flag.Bool("seed", true, "register demo accounts on startup")
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

	store := backend.NewStore()
	if *seed {
		users, err := backend.Seed(store)
		if err != nil {
			log.Fatal("seed store", zap.Error(err))
		}
		for _, u := range users {
			log.Info("demo account", zap.String("email", u.Email), zap.String("user_id", u.ID))
		}
	}

	signer := auth.NewSigner([]byte(cfg.Backend.JWTSecret), 24*time.Hour)
	srv := &http.Server{
		Addr:              cfg.Backend.Addr,
		Handler:           backend.NewServer(store, signer, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("API service starting", zap.String("addr", srv.Addr))
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
	log.Info("API service stopped")
}
