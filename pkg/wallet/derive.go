// Package wallet derives custodial wallets from user identities and reports
// balances across the configured networks.
package wallet

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"

	"reelshare/pkg/chain"
)

const (
	// derivationSalt separates custodial keys from any other use of the secret.
	derivationSalt = "reelshare/custodial-wallet/v1"

	MinSecretLen = 32

	maxDerivationAttempts = 16
)

var ErrSecretTooShort = errors.New("wallet derivation secret must be at least 32 bytes")

// Wallet is a derived custodial account. The key stays inside Signer.
type Wallet struct {
	Address common.Address
	Signer  *chain.KeySigner
}

type Deriver struct {
	secret []byte
}

func NewDeriver(secret string) (*Deriver, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	return &Deriver{secret: []byte(secret)}, nil
}

// Derive returns the custodial wallet for identity. The same secret and
// identity always give the same wallet.
func (d *Deriver) Derive(identity string) (*Wallet, error) {
	id := strings.ToLower(strings.TrimSpace(identity))
	if id == "" {
		return nil, errors.New("identity is required")
	}

	for counter := uint32(0); counter < maxDerivationAttempts; counter++ {
		info := make([]byte, 0, len(id)+5)
		info = append(info, id...)
		info = append(info, 0)
		info = binary.BigEndian.AppendUint32(info, counter)

		seed := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, d.secret, []byte(derivationSalt), info), seed); err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
		// ToECDSA rejects zero and scalars at or above the curve order.
		key, err := crypto.ToECDSA(seed)
		if err != nil {
			continue
		}
		signer := chain.NewKeySigner(key)
		return &Wallet{Address: signer.Address(), Signer: signer}, nil
	}
	return nil, errors.New("failed to derive a valid key")
}

func (d *Deriver) Address(identity string) (string, error) {
	w, err := d.Derive(identity)
	if err != nil {
		return "", err
	}
	return w.Address.Hex(), nil
}
