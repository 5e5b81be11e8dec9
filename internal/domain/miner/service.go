package miner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"goinvault/internal/claim"
	"goinvault/internal/db"
)

// ErrUnknownMiner indicates no record exists for the address.
var ErrUnknownMiner = errors.New("unknown miner")

// ErrInvalidAddress indicates the supplied account is not hex-shaped.
var ErrInvalidAddress = errors.New("invalid address")

// Service is the read/accrual model over miner_state that the API
// serves. Settlement itself never goes through here; only the game
// loop's bookkeeping does.
type Service struct {
	store *db.Store
}

// NewService wires dependencies.
func NewService(store *db.Store) *Service {
	return &Service{store: store}
}

// State loads the per-address miner record.
func (s *Service) State(ctx context.Context, address string) (*db.MinerState, error) {
	if !common.IsHexAddress(address) {
		return nil, ErrInvalidAddress
	}
	state, err := s.store.GetMinerState(ctx, address)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrUnknownMiner
	}
	return state, nil
}

// Accrue adds mined tokens to the address's pending balance. The
// amount must parse as a positive token quantity.
func (s *Service) Accrue(ctx context.Context, address, amount string) error {
	if !common.IsHexAddress(address) {
		return ErrInvalidAddress
	}
	if _, err := claim.ParseAmount(amount); err != nil {
		return fmt.Errorf("accrue: %w", err)
	}
	return s.store.AddPendingTokens(ctx, address, amount)
}

// SaveMiningState persists the opaque game-loop blob for an address.
func (s *Service) SaveMiningState(ctx context.Context, address string, state []byte) error {
	if !common.IsHexAddress(address) {
		return ErrInvalidAddress
	}
	return s.store.SaveMiningState(ctx, address, state)
}

// RecentClaims lists the latest settled claims across all miners.
func (s *Service) RecentClaims(ctx context.Context, limit int) ([]db.ClaimRecord, error) {
	return s.store.ListRecentClaims(ctx, limit)
}
