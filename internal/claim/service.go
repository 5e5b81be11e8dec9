package claim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"goinvault/internal/observability/metrics"
)

// Mode selects how the settlement authority delivers tokens: minting
// fresh supply, or transferring out of a pre-funded reserve. The mode
// is fixed at configuration time; both paths share the same gates.
type Mode string

const (
	ModeMint     Mode = "mint"
	ModeTransfer Mode = "transfer"
)

// ParseMode validates a configured settlement mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMint, ModeTransfer:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown settlement mode %q", s)
}

// Gateway is the ledger capability the settlement service depends on.
// The production implementation lives in internal/chain; tests supply
// a stub returning canned balances and estimates.
type Gateway interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, account common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateSettlement(ctx context.Context, mode Mode, recipient common.Address, amount *big.Int) (uint64, error)
	SubmitSettlement(ctx context.Context, mode Mode, recipient common.Address, amount *big.Int, gasLimit uint64, gasPrice *big.Int) (common.Hash, error)
	AwaitReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) error
}

// NonceCache records message nonces that have already been honored so
// a captured signature cannot be replayed.
type NonceCache interface {
	ConsumeNonce(ctx context.Context, claimant string, nonce int64) (bool, error)
}

// Request carries one claim attempt through the settlement gates.
type Request struct {
	Claimant  string `json:"claimant" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     int64  `json:"nonce" binding:"required"`
}

// Config tunes the settlement service.
type Config struct {
	// ExpectedChainID is the only network claims settle on; anything
	// else is rejected before gas is risked.
	ExpectedChainID *big.Int
	// Mode selects mint or transfer settlement.
	Mode Mode
	// AuthorityAddress is the account paying gas and, in transfer
	// mode, holding the token reserve.
	AuthorityAddress common.Address
	// MinGasBalance is the native balance floor the authority must
	// hold before a settlement is attempted.
	MinGasBalance *big.Int
	// ConfirmTimeout bounds the wait for the settlement receipt.
	ConfirmTimeout time.Duration
}

// Gas over-provisioning: quoted price and estimated limit are padded
// so settlements do not stall underpriced on the test network.
const (
	gasPriceBumpPercent   = 110
	gasLimitBufferPercent = 130
)

// Service is the single authority on whether a claim is honored. The
// gates run strictly in order and each failure short-circuits with no
// on-chain effect.
type Service struct {
	gateway Gateway
	nonces  NonceCache
	cfg     Config
}

// NewService wires the settlement dependencies.
func NewService(gateway Gateway, nonces NonceCache, cfg Config) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if cfg.ExpectedChainID == nil || cfg.ExpectedChainID.Sign() <= 0 {
		return nil, errors.New("expected chain id is required")
	}
	if cfg.Mode != ModeMint && cfg.Mode != ModeTransfer {
		return nil, fmt.Errorf("unknown settlement mode %q", cfg.Mode)
	}
	if (cfg.AuthorityAddress == common.Address{}) {
		return nil, errors.New("authority address is required")
	}
	if cfg.MinGasBalance == nil {
		cfg.MinGasBalance = big.NewInt(2e15) // 0.002 native units
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	return &Service{gateway: gateway, nonces: nonces, cfg: cfg}, nil
}

// SubmitClaim runs the full settlement protocol for one request and
// returns the immutable outcome. It never raises: every failure mode
// is folded into the outcome's error kind.
func (s *Service) SubmitClaim(ctx context.Context, req Request) Outcome {
	outcome := s.settle(ctx, req)
	metrics.CountClaimOutcome(string(outcomeKind(outcome)))
	return outcome
}

func outcomeKind(o Outcome) ErrorKind {
	if o.Success {
		return "OK"
	}
	return o.Kind
}

func (s *Service) settle(ctx context.Context, req Request) Outcome {
	if !common.IsHexAddress(req.Claimant) {
		return failed(KindInvalidRequest, "claimant %q is not a valid address", req.Claimant)
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return failed(KindInvalidRequest, "%v", err)
	}
	recipient := common.HexToAddress(req.Claimant)

	// Gate 1: authenticity. Fails closed on any malformed signature.
	if !Verify(req.Claimant, req.Amount, req.Nonce, req.Signature) {
		return failed(KindInvalidSignature, "signature does not match claimant %s", req.Claimant)
	}

	// Gate 2: replay. Runs after authenticity so unauthenticated
	// requests cannot burn someone else's nonces.
	if s.nonces != nil {
		fresh, err := s.nonces.ConsumeNonce(ctx, req.Claimant, req.Nonce)
		if err != nil {
			return failed(KindNetworkUnreachable, "replay guard unavailable: %v", err)
		}
		if !fresh {
			return failed(KindReplayDetected, "nonce %d already honored for %s", req.Nonce, req.Claimant)
		}
	}

	// Gate 3: network identity. Wrong-network submissions are rejected
	// before any gas is spent.
	chainID, err := s.gateway.ChainID(ctx)
	if err != nil {
		return failedFromGateway(err, KindNetworkUnreachable)
	}
	if chainID.Cmp(s.cfg.ExpectedChainID) != 0 {
		return failed(KindWrongNetwork, "connected to chain %s, expected %s", chainID, s.cfg.ExpectedChainID)
	}

	// Gate 4: solvency. The authority must cover gas, and in transfer
	// mode the token reserve must cover the claim.
	gasBalance, err := s.gateway.NativeBalance(ctx, s.cfg.AuthorityAddress)
	if err != nil {
		return failedFromGateway(err, KindNetworkUnreachable)
	}
	if gasBalance.Cmp(s.cfg.MinGasBalance) < 0 {
		shortfall := new(big.Int).Sub(s.cfg.MinGasBalance, gasBalance)
		return failed(KindInsufficientFunds,
			"authority gas balance %s below floor %s (short %s)", gasBalance, s.cfg.MinGasBalance, shortfall)
	}
	if s.cfg.Mode == ModeTransfer {
		reserve, err := s.gateway.TokenBalance(ctx, s.cfg.AuthorityAddress)
		if err != nil {
			return failedFromGateway(err, KindNetworkUnreachable)
		}
		if reserve.Cmp(amount) < 0 {
			shortfall := new(big.Int).Sub(amount, reserve)
			return failed(KindInsufficientReserve,
				"reserve %s cannot cover claim %s (short %s)", FormatAmount(reserve), req.Amount, FormatAmount(shortfall))
		}
	}

	// Gate 5: estimation. A revert here surfaces authorization and
	// contract logic errors before funds are risked; never retried.
	gasEstimate, err := s.gateway.EstimateSettlement(ctx, s.cfg.Mode, recipient, amount)
	if err != nil {
		return failedFromGateway(err, KindEstimationFailed)
	}
	gasPrice, err := s.gateway.SuggestGasPrice(ctx)
	if err != nil {
		return failedFromGateway(err, KindNetworkUnreachable)
	}
	gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(gasPriceBumpPercent)), big.NewInt(100))
	gasLimit := gasEstimate * gasLimitBufferPercent / 100

	// Submission.
	txHash, err := s.gateway.SubmitSettlement(ctx, s.cfg.Mode, recipient, amount, gasLimit, gasPrice)
	if err != nil {
		return failedFromGateway(err, KindSubmissionFailed)
	}

	// Confirmation, bounded. A timeout is indeterminate: the hash is
	// kept so the caller can re-check instead of assuming reversal.
	if err := s.gateway.AwaitReceipt(ctx, txHash, s.cfg.ConfirmTimeout); err != nil {
		outcome := failedFromGateway(err, KindConfirmationTimeout)
		if outcome.Kind == KindConfirmationTimeout {
			outcome.TxHash = txHash.Hex()
		}
		return outcome
	}

	return succeeded(txHash.Hex())
}

func failedFromGateway(err error, fallback ErrorKind) Outcome {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return failed(gwErr.Kind, "%s", gwErr.Message)
	}
	return failed(fallback, "%v", err)
}
