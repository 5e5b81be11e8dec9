package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"goinvault/internal/claim"
)

var testToken = common.HexToAddress("0xf202f380d4e244d2b1b0c6f3de346a1ce154cc7a")

type stubBackend struct {
	chainID      *big.Int
	balance      *big.Int
	gasPrice     *big.Int
	gas          uint64
	pendingNonce uint64
	callResult   []byte
	receipt      *ethtypes.Receipt
	receiptErr   error
	estimateErr  error
	sendErr      error

	sentTx         *ethtypes.Transaction
	gotEstimateMsg ethereum.CallMsg
	gotCallMsg     ethereum.CallMsg
}

func (b *stubBackend) ChainID(context.Context) (*big.Int, error) {
	return b.chainID, nil
}

func (b *stubBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return b.balance, nil
}

func (b *stubBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.gotCallMsg = msg
	return b.callResult, nil
}

func (b *stubBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.gotEstimateMsg = msg
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return b.gas, nil
}

func (b *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return b.gasPrice, nil
}

func (b *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.pendingNonce, nil
}

func (b *stubBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sentTx = tx
	return nil
}

func (b *stubBackend) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	return b.receipt, b.receiptErr
}

func newTestGateway(t *testing.T, backend Backend) (*Gateway, *Authority) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	authority, err := NewAuthority(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	gw, err := NewGateway(backend, authority, testToken, big.NewInt(97))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw, authority
}

func gatewayKind(t *testing.T, err error) claim.ErrorKind {
	t.Helper()
	var gwErr *claim.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("error %v is not a gateway error", err)
	}
	return gwErr.Kind
}

func TestSubmitSettlementSignsWithAuthority(t *testing.T) {
	backend := &stubBackend{pendingNonce: 5}
	gw, authority := newTestGateway(t, backend)

	amount := big.NewInt(1e18)
	gasPrice := big.NewInt(1100)
	hash, err := gw.SubmitSettlement(context.Background(), claim.ModeMint, common.HexToAddress("0xbb"), amount, 78000, gasPrice)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	tx := backend.sentTx
	if tx == nil {
		t.Fatal("no transaction broadcast")
	}
	if hash != tx.Hash() {
		t.Errorf("returned hash %s does not match broadcast transaction %s", hash.Hex(), tx.Hash().Hex())
	}
	if tx.Nonce() != 5 {
		t.Errorf("account nonce = %d, want 5", tx.Nonce())
	}
	if tx.To() == nil || *tx.To() != testToken {
		t.Errorf("transaction target = %v, want token contract", tx.To())
	}
	if tx.Gas() != 78000 {
		t.Errorf("gas limit = %d, want 78000", tx.Gas())
	}
	if tx.GasPrice().Cmp(gasPrice) != 0 {
		t.Errorf("gas price = %s, want %s", tx.GasPrice(), gasPrice)
	}
	if tx.Value().Sign() != 0 {
		t.Errorf("settlement carried native value %s", tx.Value())
	}

	sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(97)), tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != authority.Address() {
		t.Errorf("sender = %s, want authority %s", sender.Hex(), authority.Address().Hex())
	}
}

func TestEstimateSettlementPacksMethodForMode(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(goinABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}

	for mode, method := range map[claim.Mode]string{claim.ModeMint: "mint", claim.ModeTransfer: "transfer"} {
		backend := &stubBackend{gas: 60000}
		gw, authority := newTestGateway(t, backend)

		gas, err := gw.EstimateSettlement(context.Background(), mode, common.HexToAddress("0xbb"), big.NewInt(1))
		if err != nil {
			t.Fatalf("%s: estimate: %v", mode, err)
		}
		if gas != 60000 {
			t.Errorf("%s: gas = %d, want 60000", mode, gas)
		}
		if backend.gotEstimateMsg.From != authority.Address() {
			t.Errorf("%s: estimate ran from %s, want authority", mode, backend.gotEstimateMsg.From.Hex())
		}
		wantSelector := parsed.Methods[method].ID
		if got := backend.gotEstimateMsg.Data[:4]; string(got) != string(wantSelector) {
			t.Errorf("%s: selector = %x, want %x (%s)", mode, got, wantSelector, method)
		}
	}
}

func TestClassifyEstimateErrors(t *testing.T) {
	tests := []struct {
		rpcError string
		want     claim.ErrorKind
	}{
		{"execution reverted: Ownable: caller is not the owner", claim.KindAuthorizationDenied},
		{"execution reverted: ERC20: mint to the zero address", claim.KindEstimationFailed},
		{"insufficient funds for gas * price + value", claim.KindInsufficientFunds},
		{"something unexpected", claim.KindEstimationFailed},
	}
	for _, tt := range tests {
		backend := &stubBackend{estimateErr: errors.New(tt.rpcError)}
		gw, _ := newTestGateway(t, backend)
		_, err := gw.EstimateSettlement(context.Background(), claim.ModeMint, common.HexToAddress("0xbb"), big.NewInt(1))
		if err == nil {
			t.Fatalf("%q: expected error", tt.rpcError)
		}
		if kind := gatewayKind(t, err); kind != tt.want {
			t.Errorf("%q classified as %q, want %q", tt.rpcError, kind, tt.want)
		}
	}
}

func TestClassifySubmitErrors(t *testing.T) {
	tests := []struct {
		rpcError string
		want     claim.ErrorKind
	}{
		{"nonce too low", claim.KindSubmissionFailed},
		{"already known", claim.KindSubmissionFailed},
		{"replacement transaction underpriced", claim.KindSubmissionFailed},
		{"insufficient funds for gas * price + value", claim.KindInsufficientFunds},
		{"transaction pool is full", claim.KindSubmissionFailed},
	}
	for _, tt := range tests {
		backend := &stubBackend{sendErr: errors.New(tt.rpcError)}
		gw, _ := newTestGateway(t, backend)
		_, err := gw.SubmitSettlement(context.Background(), claim.ModeMint, common.HexToAddress("0xbb"), big.NewInt(1), 60000, big.NewInt(1000))
		if err == nil {
			t.Fatalf("%q: expected error", tt.rpcError)
		}
		if kind := gatewayKind(t, err); kind != tt.want {
			t.Errorf("%q classified as %q, want %q", tt.rpcError, kind, tt.want)
		}
	}
}

func TestAwaitReceipt(t *testing.T) {
	hash := common.HexToHash("0x01")

	backend := &stubBackend{receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}}
	gw, _ := newTestGateway(t, backend)
	if err := gw.AwaitReceipt(context.Background(), hash, time.Second); err != nil {
		t.Errorf("confirmed receipt returned error: %v", err)
	}

	backend = &stubBackend{receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed}}
	gw, _ = newTestGateway(t, backend)
	err := gw.AwaitReceipt(context.Background(), hash, time.Second)
	if kind := gatewayKind(t, err); kind != claim.KindSubmissionFailed {
		t.Errorf("reverted receipt classified as %q, want %q", kind, claim.KindSubmissionFailed)
	}

	backend = &stubBackend{receiptErr: ethereum.NotFound}
	gw, _ = newTestGateway(t, backend)
	err = gw.AwaitReceipt(context.Background(), hash, 50*time.Millisecond)
	if kind := gatewayKind(t, err); kind != claim.KindConfirmationTimeout {
		t.Errorf("missing receipt classified as %q, want %q", kind, claim.KindConfirmationTimeout)
	}
}

func TestReceiptStatus(t *testing.T) {
	hash := common.HexToHash("0x02")

	backend := &stubBackend{receiptErr: ethereum.NotFound}
	gw, _ := newTestGateway(t, backend)
	state, err := gw.ReceiptStatus(context.Background(), hash)
	if err != nil {
		t.Fatalf("pending lookup: %v", err)
	}
	if state.Status != "pending" || state.TxHash != hash.Hex() {
		t.Errorf("state = %+v, want pending", state)
	}

	backend = &stubBackend{receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(123)}}
	gw, _ = newTestGateway(t, backend)
	state, err = gw.ReceiptStatus(context.Background(), hash)
	if err != nil {
		t.Fatalf("confirmed lookup: %v", err)
	}
	if state.Status != "confirmed" || state.BlockNumber != 123 {
		t.Errorf("state = %+v, want confirmed at block 123", state)
	}

	backend = &stubBackend{receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(124)}}
	gw, _ = newTestGateway(t, backend)
	state, err = gw.ReceiptStatus(context.Background(), hash)
	if err != nil {
		t.Fatalf("reverted lookup: %v", err)
	}
	if state.Status != "reverted" {
		t.Errorf("state = %+v, want reverted", state)
	}
}

func TestTokenBalanceDecodesUint256(t *testing.T) {
	want := new(big.Int).Mul(big.NewInt(42), big.NewInt(1e18))
	backend := &stubBackend{callResult: common.LeftPadBytes(want.Bytes(), 32)}
	gw, _ := newTestGateway(t, backend)

	balance, err := gw.TokenBalance(context.Background(), common.HexToAddress("0xbb"))
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.Cmp(want) != 0 {
		t.Errorf("balance = %s, want %s", balance, want)
	}
	if backend.gotCallMsg.To == nil || *backend.gotCallMsg.To != testToken {
		t.Errorf("balanceOf targeted %v, want token contract", backend.gotCallMsg.To)
	}
}

func TestNewGatewayValidation(t *testing.T) {
	backend := &stubBackend{}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	authority, err := NewAuthority(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}

	if _, err := NewGateway(nil, authority, testToken, big.NewInt(97)); err == nil {
		t.Error("nil backend accepted")
	}
	if _, err := NewGateway(backend, nil, testToken, big.NewInt(97)); err == nil {
		t.Error("nil authority accepted")
	}
	if _, err := NewGateway(backend, authority, common.Address{}, big.NewInt(97)); err == nil {
		t.Error("zero token address accepted")
	}
}

func TestNewAuthority(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	raw := hex.EncodeToString(crypto.FromECDSA(key))

	for _, encoded := range []string{raw, "0x" + raw, "  " + raw + "  "} {
		authority, err := NewAuthority(encoded)
		if err != nil {
			t.Fatalf("NewAuthority(%q): %v", encoded, err)
		}
		if authority.Address() != crypto.PubkeyToAddress(key.PublicKey) {
			t.Errorf("NewAuthority(%q) derived address %s", encoded, authority.Address().Hex())
		}
	}

	if _, err := NewAuthority(""); err == nil {
		t.Error("empty key accepted")
	}
	if _, err := NewAuthority("zz"); err == nil {
		t.Error("non-hex key accepted")
	}
}
