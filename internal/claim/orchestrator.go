package claim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Settler is the settlement boundary the orchestrator calls into.
// *Service satisfies it; tests substitute canned outcomes.
type Settler interface {
	SubmitClaim(ctx context.Context, req Request) Outcome
}

// Signer obtains a claim signature from the claimant's session key.
// The key itself is a wallet capability outside this package.
type Signer interface {
	SignClaim(claimant, amount string, nonce int64) (string, error)
}

// KeySigner signs claims with an in-process private key. Used by the
// session flow and by tests; hardware or browser wallets implement
// Signer themselves.
type KeySigner struct {
	PrivateKeyHex string
}

// SignClaim implements Signer.
func (k KeySigner) SignClaim(claimant, amount string, nonce int64) (string, error) {
	return Sign(claimant, amount, nonce, k.PrivateKeyHex)
}

// PendingStore tracks each claimant's unclaimed token accumulator.
type PendingStore interface {
	PendingTokens(ctx context.Context, address string) (string, error)
	ResetPendingTokens(ctx context.Context, address string) error
}

// EventPublisher fans settled claims out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event SettlementEvent) error
}

// ErrNothingPending indicates the claimant has no accrued balance.
var ErrNothingPending = errors.New("nothing pending to claim")

// Orchestrator assembles claim requests on behalf of a claimant and
// reconciles local state with the settlement outcome. The pending
// balance is only ever zeroed after a confirmed success; on any
// failure, indeterminate outcomes included, it stays untouched.
type Orchestrator struct {
	settler   Settler
	signer    Signer
	pending   PendingStore
	publisher EventPublisher
	mode      Mode
	now       func() time.Time
}

// NewOrchestrator wires the claim flow. publisher may be nil when no
// event fan-out is configured.
func NewOrchestrator(settler Settler, signer Signer, pending PendingStore, publisher EventPublisher, mode Mode) (*Orchestrator, error) {
	if settler == nil {
		return nil, errors.New("settler is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if pending == nil {
		return nil, errors.New("pending store is required")
	}
	return &Orchestrator{
		settler:   settler,
		signer:    signer,
		pending:   pending,
		publisher: publisher,
		mode:      mode,
		now:       time.Now,
	}, nil
}

// Claim converts the claimant's entire pending balance into an
// on-chain settlement attempt and returns the outcome.
func (o *Orchestrator) Claim(ctx context.Context, claimant string) (Outcome, error) {
	amount, err := o.pending.PendingTokens(ctx, claimant)
	if err != nil {
		return Outcome{}, fmt.Errorf("load pending balance: %w", err)
	}
	if parsed, err := ParseAmount(amount); err != nil || parsed.Sign() <= 0 {
		return Outcome{}, ErrNothingPending
	}

	nonce := o.now().UnixMilli()
	signature, err := o.signer.SignClaim(claimant, amount, nonce)
	if err != nil {
		return Outcome{}, fmt.Errorf("sign claim: %w", err)
	}

	outcome := o.settler.SubmitClaim(ctx, Request{
		Claimant:  claimant,
		Amount:    amount,
		Signature: signature,
		Nonce:     nonce,
	})
	if !outcome.Success {
		return outcome, nil
	}

	if err := o.pending.ResetPendingTokens(ctx, claimant); err != nil {
		// The settlement is already final on-chain; the accumulator is
		// reconciled on the next read rather than unwinding anything.
		log.Printf("orchestrator: failed to reset pending balance for %s: %v", claimant, err)
	}
	if o.publisher != nil {
		base, _ := ParseAmount(amount)
		event := SettlementEvent{
			Claimant:   claimant,
			Amount:     amount,
			AmountBase: base.String(),
			Nonce:      nonce,
			TxHash:     outcome.TxHash,
			Mode:       o.mode,
			Timestamp:  o.now().UTC(),
		}
		if err := o.publisher.Publish(ctx, event); err != nil {
			log.Printf("orchestrator: failed to publish settlement event for %s: %v", claimant, err)
		}
	}
	return outcome, nil
}
