package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	apiconfig "goinvault/internal/app/api/config"
	apiserver "goinvault/internal/app/api/server"
)

func main() {
	cfg := apiconfig.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := apiserver.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize claim api: %v", err)
	}
	defer srv.Close()

	log.Printf("claim api listening on %s (mode=%s, chain=%d)", cfg.Port, cfg.SettlementMode, cfg.ChainID)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("claim api stopped: %v", err)
	}
}
