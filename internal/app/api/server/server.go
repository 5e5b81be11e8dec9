package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"goinvault/internal/app/api/config"
	"goinvault/internal/app/api/router"
	"goinvault/internal/chain"
	"goinvault/internal/claim"
	"goinvault/internal/db"
	"goinvault/internal/domain/miner"
	"goinvault/internal/kafka"
	"goinvault/internal/messaging/settlement"
	redispkg "goinvault/internal/redis"
)

// Server wires infrastructure dependencies for the claim API service.
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	store      *db.Store
	redis      *redispkg.Client
	producer   *kafka.Producer
	ethClient  *ethclient.Client
}

// New constructs the server and underlying dependencies.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	store, err := db.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	redisClient, err := redispkg.New(cfg.RedisAddr)
	if err != nil {
		store.Close()
		return nil, err
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		redisClient.Close()
		store.Close()
		return nil, err
	}

	mode, err := claim.ParseMode(cfg.SettlementMode)
	if err != nil {
		producer.Close()
		redisClient.Close()
		store.Close()
		return nil, err
	}

	authority, err := chain.NewAuthority(cfg.OwnerPrivateKey)
	if err != nil {
		producer.Close()
		redisClient.Close()
		store.Close()
		return nil, err
	}

	ethClient, err := chain.Dial(cfg.ChainRPCURL)
	if err != nil {
		producer.Close()
		redisClient.Close()
		store.Close()
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	if !common.IsHexAddress(cfg.TokenContract) {
		ethClient.Close()
		producer.Close()
		redisClient.Close()
		store.Close()
		return nil, fmt.Errorf("invalid token contract address %q", cfg.TokenContract)
	}
	chainID := big.NewInt(cfg.ChainID)
	gateway, err := chain.NewGateway(ethClient, authority, common.HexToAddress(cfg.TokenContract), chainID)
	if err != nil {
		ethClient.Close()
		producer.Close()
		redisClient.Close()
		store.Close()
		return nil, err
	}

	settlementSvc, err := claim.NewService(gateway, redisClient, claim.Config{
		ExpectedChainID:  chainID,
		Mode:             mode,
		AuthorityAddress: authority.Address(),
		ConfirmTimeout:   cfg.ConfirmTimeout,
	})
	if err != nil {
		ethClient.Close()
		producer.Close()
		redisClient.Close()
		store.Close()
		return nil, err
	}

	ginRouter := router.New(router.Dependencies{
		Settlement:   settlementSvc,
		MinerService: miner.NewService(store),
		Gateway:      gateway,
		Store:        store,
		Publisher:    settlement.NewPublisher(producer),
		Mode:         mode,
	})

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: ginRouter}
	return &Server{
		cfg:        cfg,
		httpServer: httpSrv,
		store:      store,
		redis:      redisClient,
		producer:   producer,
		ethClient:  ethClient,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is canceled or fatal
// error occurs.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases infrastructure resources.
func (s *Server) Close() {
	_ = s.httpServer.Close()
	if s.ethClient != nil {
		s.ethClient.Close()
	}
	if s.producer != nil {
		_ = s.producer.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}
