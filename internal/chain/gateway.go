package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"goinvault/internal/claim"
	"goinvault/internal/observability/metrics"
)

// goinABI covers the BEP20 surface the vault touches plus the owner
// mint extension.
const goinABI = `[
	{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"name","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"symbol","outputs":[{"type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"totalSupply","outputs":[{"type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const receiptPollInterval = 2 * time.Second

// Backend is the subset of the Ethereum RPC client the gateway uses.
// *ethclient.Client satisfies it; tests substitute a stub.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Dial connects to the configured JSON-RPC endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chain rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// TokenInfo summarizes the deployed token contract.
type TokenInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
}

// ReceiptState describes where a submitted settlement currently stands.
type ReceiptState struct {
	TxHash      string `json:"tx_hash"`
	Status      string `json:"status"` // pending, confirmed, reverted
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// Gateway is the capability-restricted facade over the ledger. All
// settlement submissions go through one instance so transactions from
// the authority account are serialized and its account nonce never
// races.
type Gateway struct {
	backend   Backend
	authority *Authority
	token     common.Address
	chainID   *big.Int
	tokenABI  abi.ABI

	// Guards PendingNonceAt + SendTransaction as one unit.
	submitMu sync.Mutex
}

// NewGateway builds the gateway for one token contract and authority.
func NewGateway(backend Backend, authority *Authority, token common.Address, chainID *big.Int) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if authority == nil {
		return nil, fmt.Errorf("authority is required")
	}
	if (token == common.Address{}) {
		return nil, fmt.Errorf("token contract address is required")
	}
	parsed, err := abi.JSON(strings.NewReader(goinABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	return &Gateway{
		backend:   backend,
		authority: authority,
		token:     token,
		chainID:   chainID,
		tokenABI:  parsed,
	}, nil
}

// ChainID queries the connected network's identity.
func (g *Gateway) ChainID(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("chain_id", time.Since(start))
	id, err := g.backend.ChainID(ctx)
	if err != nil {
		return nil, claim.NewGatewayError(claim.KindNetworkUnreachable, "query chain id: %v", err)
	}
	return id, nil
}

// NativeBalance reads the account's gas-currency balance.
func (g *Gateway) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("native_balance", time.Since(start))
	balance, err := g.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, claim.NewGatewayError(claim.KindNetworkUnreachable, "query native balance: %v", err)
	}
	return balance, nil
}

// TokenBalance reads balanceOf(account) on the token contract.
func (g *Gateway) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("token_balance", time.Since(start))
	var balance *big.Int
	if err := g.call(ctx, "balanceOf", &balance, account); err != nil {
		return nil, err
	}
	return balance, nil
}

// TokenMetadata reads the contract's descriptive fields.
func (g *Gateway) TokenMetadata(ctx context.Context) (*TokenInfo, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("token_metadata", time.Since(start))
	info := &TokenInfo{}
	if err := g.call(ctx, "name", &info.Name); err != nil {
		return nil, err
	}
	if err := g.call(ctx, "symbol", &info.Symbol); err != nil {
		return nil, err
	}
	if err := g.call(ctx, "decimals", &info.Decimals); err != nil {
		return nil, err
	}
	var supply *big.Int
	if err := g.call(ctx, "totalSupply", &supply); err != nil {
		return nil, err
	}
	info.TotalSupply = claim.FormatAmount(supply)
	return info, nil
}

// SuggestGasPrice quotes the network's current gas price.
func (g *Gateway) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("suggest_gas_price", time.Since(start))
	price, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, claim.NewGatewayError(claim.KindNetworkUnreachable, "query gas price: %v", err)
	}
	return price, nil
}

// EstimateSettlement simulates the settlement call without committing
// it. A revert surfaces contract-side rejections, most importantly a
// non-authorized minter, before anything is broadcast.
func (g *Gateway) EstimateSettlement(ctx context.Context, mode claim.Mode, recipient common.Address, amount *big.Int) (uint64, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("estimate_settlement", time.Since(start))
	data, err := g.tokenABI.Pack(methodForMode(mode), recipient, amount)
	if err != nil {
		return 0, claim.NewGatewayError(claim.KindEstimationFailed, "encode %s call: %v", methodForMode(mode), err)
	}
	from := g.authority.Address()
	gas, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &g.token, Data: data})
	if err != nil {
		return 0, classifyEstimateError(err)
	}
	return gas, nil
}

// SubmitSettlement signs and broadcasts the settlement transaction,
// returning its hash immediately. Confirmation is a separate step.
func (g *Gateway) SubmitSettlement(ctx context.Context, mode claim.Mode, recipient common.Address, amount *big.Int, gasLimit uint64, gasPrice *big.Int) (common.Hash, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("submit_settlement", time.Since(start))
	data, err := g.tokenABI.Pack(methodForMode(mode), recipient, amount)
	if err != nil {
		return common.Hash{}, claim.NewGatewayError(claim.KindSubmissionFailed, "encode %s call: %v", methodForMode(mode), err)
	}

	g.submitMu.Lock()
	defer g.submitMu.Unlock()

	accountNonce, err := g.backend.PendingNonceAt(ctx, g.authority.Address())
	if err != nil {
		return common.Hash{}, claim.NewGatewayError(claim.KindNetworkUnreachable, "query account nonce: %v", err)
	}
	tx := ethtypes.NewTransaction(accountNonce, g.token, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(g.chainID), g.authority.privateKey())
	if err != nil {
		return common.Hash{}, claim.NewGatewayError(claim.KindSubmissionFailed, "sign transaction: %v", err)
	}
	if err := g.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, classifySubmitError(err)
	}
	return signedTx.Hash(), nil
}

// AwaitReceipt polls for the transaction receipt until it lands or the
// timeout elapses. On timeout the submission remains unresolved: the
// transaction may still confirm later, so the error kind says timeout,
// never definite failure.
func (g *Gateway) AwaitReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) error {
	start := time.Now()
	defer metrics.ObserveChainOperation("await_receipt", time.Since(start))
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := g.backend.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return claim.NewGatewayError(claim.KindSubmissionFailed, "transaction %s reverted on-chain", txHash.Hex())
			}
			return nil
		}
		select {
		case <-waitCtx.Done():
			return claim.NewGatewayError(claim.KindConfirmationTimeout,
				"no receipt for %s within %s; the transaction may still confirm", txHash.Hex(), timeout)
		case <-ticker.C:
		}
	}
}

// ReceiptStatus re-checks a previously submitted settlement. Used by
// callers that got a confirmation timeout.
func (g *Gateway) ReceiptStatus(ctx context.Context, txHash common.Hash) (*ReceiptState, error) {
	start := time.Now()
	defer metrics.ObserveChainOperation("receipt_status", time.Since(start))
	receipt, err := g.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if err == ethereum.NotFound {
			return &ReceiptState{TxHash: txHash.Hex(), Status: "pending"}, nil
		}
		return nil, claim.NewGatewayError(claim.KindNetworkUnreachable, "query receipt: %v", err)
	}
	state := &ReceiptState{TxHash: txHash.Hex(), Status: "confirmed"}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		state.Status = "reverted"
	}
	if receipt.BlockNumber != nil {
		state.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return state, nil
}

func (g *Gateway) call(ctx context.Context, method string, out any, args ...any) error {
	data, err := g.tokenABI.Pack(method, args...)
	if err != nil {
		return claim.NewGatewayError(claim.KindNetworkUnreachable, "encode %s call: %v", method, err)
	}
	result, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &g.token, Data: data}, nil)
	if err != nil {
		return claim.NewGatewayError(claim.KindNetworkUnreachable, "call %s: %v", method, err)
	}
	if err := g.tokenABI.UnpackIntoInterface(out, method, result); err != nil {
		return claim.NewGatewayError(claim.KindNetworkUnreachable, "decode %s result: %v", method, err)
	}
	return nil
}

func methodForMode(mode claim.Mode) string {
	if mode == claim.ModeTransfer {
		return "transfer"
	}
	return "mint"
}

// Provider errors arrive as free text; the matching lives here and
// nowhere else so the settlement gates only ever see structured kinds.
func classifyEstimateError(err error) error {
	msg := err.Error()
	switch {
	case containsFold(msg, "caller is not the owner"), containsFold(msg, "ownable"):
		return claim.NewGatewayError(claim.KindAuthorizationDenied, "settlement authority lacks permission: %v", err)
	case containsFold(msg, "execution reverted"):
		return claim.NewGatewayError(claim.KindEstimationFailed, "contract rejected the settlement: %v", err)
	case containsFold(msg, "insufficient funds"):
		return claim.NewGatewayError(claim.KindInsufficientFunds, "authority cannot cover gas: %v", err)
	default:
		return claim.NewGatewayError(claim.KindEstimationFailed, "gas estimation failed: %v", err)
	}
}

func classifySubmitError(err error) error {
	msg := err.Error()
	switch {
	case containsFold(msg, "nonce too low"), containsFold(msg, "already known"), containsFold(msg, "underpriced"):
		return claim.NewGatewayError(claim.KindSubmissionFailed, "broadcast rejected: %v", err)
	case containsFold(msg, "insufficient funds"):
		return claim.NewGatewayError(claim.KindInsufficientFunds, "authority cannot cover gas: %v", err)
	default:
		return claim.NewGatewayError(claim.KindSubmissionFailed, "broadcast failed: %v", err)
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
