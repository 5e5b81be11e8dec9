package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	consumerconfig "goinvault/internal/app/consumer/config"
	consumerserver "goinvault/internal/app/consumer/server"
)

func main() {
	cfg := consumerconfig.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := consumerserver.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init settlement consumer: %v", err)
	}
	defer srv.Close()

	log.Printf("settlement consumer listening on topic %s", cfg.KafkaTopic)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("settlement consumer stopped: %v", err)
	}
}
