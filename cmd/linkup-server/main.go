package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/linkup-chat/linkup/internal/config"
	"github.com/linkup-chat/linkup/internal/observability"
	"github.com/linkup-chat/linkup/internal/server"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Debug)
	defer log.Sync()

	var bridge *server.RedisBridge
	if cfg.RedisAddr != "" {
		bridge = server.NewRedisBridge(cfg.RedisAddr, log)
		log.Info("redis fan-out enabled", zap.String("addr", cfg.RedisAddr))
	}

	srv := server.New(cfg.ServerAddr, bridge, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	case sig := <-sigChan:
		log.Info("shutting down", zap.String("signal", sig.String()))
		srv.Stop()
	}
}
