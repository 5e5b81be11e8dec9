package claim

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func newTestKey(t *testing.T) (privHex, address string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestSignVerifyRoundTrip(t *testing.T) {
	privHex, address := newTestKey(t)

	sig, err := Sign(address, "50.0", 1700000000000, privHex)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+2*crypto.SignatureLength {
		t.Fatalf("unexpected signature encoding: %q", sig)
	}
	if !Verify(address, "50.0", 1700000000000, sig) {
		t.Fatal("valid signature rejected")
	}
}

func TestVerifyIsCaseInsensitiveOnClaimant(t *testing.T) {
	privHex, address := newTestKey(t)
	sig, err := Sign(address, "1", 42, privHex)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(strings.ToLower(address), "1", 42, sig) {
		t.Error("lowercase claimant rejected")
	}
	if !Verify("0x"+strings.ToUpper(strings.TrimPrefix(address, "0x")), "1", 42, sig) {
		t.Error("uppercase claimant rejected")
	}
}

func TestVerifyRejectsTamperedFields(t *testing.T) {
	privHex, address := newTestKey(t)
	sig, err := Sign(address, "50.0", 7, privHex)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, otherAddress := newTestKey(t)
	if Verify(otherAddress, "50.0", 7, sig) {
		t.Error("signature accepted for a different claimant")
	}
	if Verify(address, "51.0", 7, sig) {
		t.Error("signature accepted for a different amount")
	}
	if Verify(address, "50.0", 8, sig) {
		t.Error("signature accepted for a different nonce")
	}
}

func TestVerifyRejectsCorruptedSignature(t *testing.T) {
	privHex, address := newTestKey(t)
	sig, err := Sign(address, "50.0", 7, privHex)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Flip one hex digit in the middle of the signature body.
	raw := []byte(sig)
	idx := 20
	if raw[idx] == 'a' {
		raw[idx] = 'b'
	} else {
		raw[idx] = 'a'
	}
	if Verify(address, "50.0", 7, string(raw)) {
		t.Error("corrupted signature accepted")
	}
}

func TestVerifyNeverPanicsOnMalformedInput(t *testing.T) {
	_, address := newTestKey(t)
	malformed := []string{
		"",
		"0x",
		"0x00",
		"not hex at all",
		"0xzzzz",
		// Too short, too long, right length but garbage, V out of
		// range, and missing the 0x prefix entirely.
		"0x" + strings.Repeat("00", 64),
		"0x" + strings.Repeat("00", 66),
		"0x" + strings.Repeat("00", 65),
		"0x" + strings.Repeat("ff", 65),
		strings.Repeat("00", 65),
	}
	for _, sig := range malformed {
		if Verify(address, "50.0", 7, sig) {
			t.Errorf("malformed signature %q accepted", sig)
		}
	}
}

func TestVerifyRejectsOutOfRangeRecoveryByte(t *testing.T) {
	privHex, address := newTestKey(t)
	sig, err := Sign(address, "50.0", 7, privHex)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Overwrite V with a value no wallet produces.
	tampered := sig[:len(sig)-2] + "63" // 0x63 = 99
	if Verify(address, "50.0", 7, tampered) {
		t.Error("signature with recovery byte 99 accepted")
	}
}

func TestSignRejectsBadKey(t *testing.T) {
	if _, err := Sign("0x1111111111111111111111111111111111111111", "1", 1, "not-a-key"); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}
