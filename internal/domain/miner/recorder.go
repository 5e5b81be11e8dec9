package miner

import (
	"context"
	"log"
	"time"

	"goinvault/internal/claim"
	"goinvault/internal/db"
	"goinvault/internal/observability/metrics"
)

// SettlementRecorder persists settlement events using the store.
type SettlementRecorder struct {
	store *db.Store
}

// NewSettlementRecorder builds a recorder.
func NewSettlementRecorder(store *db.Store) *SettlementRecorder {
	return &SettlementRecorder{store: store}
}

// HandleSettlement turns one settled claim into an audit row and rolls
// it into the miner's lifetime total. The claim_log unique index keeps
// redelivered events from double-counting the audit trail.
func (r *SettlementRecorder) HandleSettlement(ctx context.Context, event claim.SettlementEvent) error {
	start := time.Now()
	defer metrics.ObserveRecorderProcessing("handle_settlement", time.Since(start))
	if err := r.store.InsertClaimLog(ctx, db.ClaimLog{
		Claimant:   event.Claimant,
		Amount:     event.Amount,
		AmountBase: event.AmountBase,
		Nonce:      event.Nonce,
		TxHash:     event.TxHash,
		Mode:       string(event.Mode),
		SettledAt:  event.Timestamp,
	}); err != nil {
		log.Printf("settlement recorder: failed to insert log for claimant=%s tx=%s: %v", event.Claimant, event.TxHash, err)
		return err
	}
	if err := r.store.AddTotalClaimed(ctx, event.Claimant, event.Amount); err != nil {
		log.Printf("settlement recorder: failed to update totals for claimant=%s: %v", event.Claimant, err)
		return err
	}
	return nil
}
