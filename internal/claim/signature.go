package claim

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sign produces an EIP-191 personal-message signature over the
// canonical claim text. The returned signature is 0x-prefixed hex with
// the recovery byte in wallet form (27/28), matching what browser
// wallets emit for the same message.
func Sign(claimant, amount string, nonce int64, privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("load claim key: %w", err)
	}
	digest := accounts.TextHash([]byte(Render(claimant, amount, nonce)))
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", fmt.Errorf("sign claim message: %w", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// Verify reports whether signature was produced by the key behind
// claimant over the canonical message for (claimant, amount, nonce).
// Malformed input of any shape yields false, never an error: the
// verifier is a hard boundary against untrusted bytes.
func Verify(claimant, amount string, nonce int64, signature string) bool {
	raw, err := hexutil.Decode(signature)
	if err != nil || len(raw) != crypto.SignatureLength {
		return false
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, raw)
	// Wallets report V as 27/28, secp256k1 recovery wants 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false
	}
	digest := accounts.TextHash([]byte(Render(claimant, amount, nonce)))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), claimant)
}
