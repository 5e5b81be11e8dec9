// Command miner claims a miner's pending balance from the command
// line: it loads the pending accumulator, signs the canonical claim
// message with the session key, runs the settlement flow, and prints
// the outcome. Useful for operating headless miners and for smoking
// the settlement path without a browser wallet.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	apiconfig "goinvault/internal/app/api/config"
	"goinvault/internal/chain"
	"goinvault/internal/claim"
	"goinvault/internal/db"
	"goinvault/internal/kafka"
	"goinvault/internal/messaging/settlement"
	redispkg "goinvault/internal/redis"
)

func main() {
	cfg := apiconfig.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionKeyHex := os.Getenv("CLAIM_PRIVATE_KEY")
	if sessionKeyHex == "" {
		log.Fatal("CLAIM_PRIVATE_KEY is required")
	}
	sessionKey, err := crypto.HexToECDSA(strings.TrimPrefix(sessionKeyHex, "0x"))
	if err != nil {
		log.Fatalf("invalid CLAIM_PRIVATE_KEY: %v", err)
	}
	claimant := crypto.PubkeyToAddress(sessionKey.PublicKey).Hex()

	store, err := db.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer store.Close()

	redisClient, err := redispkg.New(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisClient.Close()

	mode, err := claim.ParseMode(cfg.SettlementMode)
	if err != nil {
		log.Fatal(err)
	}
	authority, err := chain.NewAuthority(cfg.OwnerPrivateKey)
	if err != nil {
		log.Fatal(err)
	}
	ethClient, err := chain.Dial(cfg.ChainRPCURL)
	if err != nil {
		log.Fatalf("dial chain rpc: %v", err)
	}
	defer ethClient.Close()

	chainID := big.NewInt(cfg.ChainID)
	gateway, err := chain.NewGateway(ethClient, authority, common.HexToAddress(cfg.TokenContract), chainID)
	if err != nil {
		log.Fatal(err)
	}
	service, err := claim.NewService(gateway, redisClient, claim.Config{
		ExpectedChainID:  chainID,
		Mode:             mode,
		AuthorityAddress: authority.Address(),
		ConfirmTimeout:   cfg.ConfirmTimeout,
	})
	if err != nil {
		log.Fatal(err)
	}

	var publisher claim.EventPublisher
	if producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic); err != nil {
		log.Printf("kafka unavailable, settlement events will not be published: %v", err)
	} else {
		defer producer.Close()
		publisher = settlement.NewPublisher(producer)
	}

	orchestrator, err := claim.NewOrchestrator(
		service,
		claim.KeySigner{PrivateKeyHex: sessionKeyHex},
		store,
		publisher,
		mode,
	)
	if err != nil {
		log.Fatal(err)
	}

	outcome, err := orchestrator.Claim(ctx, claimant)
	if err != nil {
		if errors.Is(err, claim.ErrNothingPending) {
			log.Printf("%s has no pending balance to claim", claimant)
			return
		}
		log.Fatalf("claim failed before settlement: %v", err)
	}

	encoded, _ := json.MarshalIndent(outcome, "", "  ")
	log.Printf("claim outcome for %s:\n%s", claimant, encoded)
	if !outcome.Success && !outcome.Indeterminate() {
		os.Exit(1)
	}
}
