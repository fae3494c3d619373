package simledger

import (
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/sealmsg/sealmsg/internal/identity"
	"github.com/sealmsg/sealmsg/ledger"
)

// Wallet is an in-memory signing capability holding one freshly generated
// account key. It stands in for a real wallet in tests and the demo.
type Wallet struct {
	priv    *secp256k1.PrivateKey
	account ledger.Address
}

// NewWallet generates a wallet with a random account key.
func NewWallet() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Wallet{priv: priv, account: identity.AddressOf(priv.PubKey())}, nil
}

// AccountIdentity returns the wallet's account address.
func (w *Wallet) AccountIdentity() ledger.Address { return w.account }

// Sign signs a transaction payload with the account key.
func (w *Wallet) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(payload)
	return secpecdsa.SignCompact(w.priv, h.Sum(nil), false), nil
}

var (
	_ ledger.LedgerClient       = (*Ledger)(nil)
	_ ledger.ConfidentialOracle = (*Ledger)(nil)
	_ ledger.Wallet             = (*Wallet)(nil)
)
