package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Authority is the settlement credential: the private key empowered to
// mint tokens or spend the transfer reserve. It is constructed once
// from configuration and passed explicitly to whoever needs it; the
// key never leaves the process.
type Authority struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewAuthority loads the authority key from its hex encoding. A 0x
// prefix is tolerated.
func NewAuthority(privateKeyHex string) (*Authority, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if trimmed == "" {
		return nil, errors.New("authority private key not configured")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("load authority key: %w", err)
	}
	return &Authority{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the account the authority signs from.
func (a *Authority) Address() common.Address {
	return a.address
}

func (a *Authority) privateKey() *ecdsa.PrivateKey {
	return a.key
}
