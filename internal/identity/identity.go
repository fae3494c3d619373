// Package identity derives deterministic password identities. A password
// identity is a secondary secp256k1 keypair computed from an account address
// and a password; it authorizes confidential-key recovery and never signs
// ledger transactions.
package identity

import (
	"errors"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"

	"github.com/sealmsg/sealmsg/ledger"
)

// domainTag separates password-identity digests from every other Keccak use
// in the system.
const domainTag = "sealmsg/password-identity/v1"

// PasswordIdentity is the derived keypair. The private scalar exists only in
// process memory; callers must not retain it beyond the current operation
// and should call Zero when done.
type PasswordIdentity struct {
	priv *secp256k1.PrivateKey
	addr ledger.Address
}

// Address returns the identity's public address, derived from the public key
// with the same rule the ledger applies to ordinary accounts.
func (p *PasswordIdentity) Address() ledger.Address { return p.addr }

// PrivateKey exposes the signing scalar for authorization tokens.
func (p *PasswordIdentity) PrivateKey() *secp256k1.PrivateKey { return p.priv }

// Zero wipes the private scalar.
func (p *PasswordIdentity) Zero() {
	if p.priv != nil {
		p.priv.Zero()
	}
}

// Derive deterministically maps (account, password) to a keypair. Identical
// inputs always yield the identical keypair. The account address is taken in
// its canonical lower-case hex form, so the derivation is insensitive to how
// the caller spells the address.
func Derive(account ledger.Address, password string) (*PasswordIdentity, error) {
	if password == "" {
		return nil, errors.New("identity: empty password")
	}
	if account.IsZero() {
		return nil, errors.New("identity: zero account address")
	}
	seed := keccak([]byte(domainTag), []byte(strings.ToLower(account.Hex())), []byte(password))

	// Interpret the digest as a private scalar; on the (astronomically rare)
	// zero or overflow result, re-hash until it lands in the group so the
	// mapping stays deterministic.
	for {
		var s secp256k1.ModNScalar
		overflow := s.SetByteSlice(seed)
		if !overflow && !s.IsZero() {
			priv := secp256k1.NewPrivateKey(&s)
			return &PasswordIdentity{priv: priv, addr: AddressOf(priv.PubKey())}, nil
		}
		seed = keccak(seed)
	}
}

// Verify re-derives the identity for (account, password) and reports whether
// its address matches expected. It returns false rather than failing on any
// mismatch or malformed input.
func Verify(account ledger.Address, password string, expected ledger.Address) bool {
	id, err := Derive(account, password)
	if err != nil {
		return false
	}
	defer id.Zero()
	return id.addr == expected
}

// AddressOf applies the ledger's account-address rule to a public key:
// Keccak-256 over the uncompressed point (without the format byte), last
// AddressLen bytes.
func AddressOf(pub *secp256k1.PublicKey) ledger.Address {
	digest := keccak(pub.SerializeUncompressed()[1:])
	var a ledger.Address
	copy(a[:], digest[len(digest)-ledger.AddressLen:])
	return a
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
