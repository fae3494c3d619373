package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLen is the width of every account identifier on the ledger.
const AddressLen = 20

// Address is a fixed-width public account identifier.
type Address [AddressLen]byte

// ZeroAddress is the all-zero (absent) address.
var ZeroAddress Address

// ParseAddress decodes a hex address string, with or without the 0x prefix.
// Letter case is ignored.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != AddressLen*2 {
		return Address{}, fmt.Errorf("address %q: want %d hex chars, got %d", s, AddressLen*2, len(raw))
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", s, err)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// AddressFromBytes converts a raw byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLen {
		return Address{}, fmt.Errorf("address: want %d bytes, got %d", AddressLen, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Hex returns the canonical lower-case 0x-prefixed encoding.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// IsZero reports whether the address is the absent value.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Cmp compares two addresses as unsigned big-endian integers. This ordering
// must match the ledger program's pair canonicalization exactly.
func (a Address) Cmp(b Address) int { return bytes.Compare(a[:], b[:]) }

// ConversationID identifies the conversation between an unordered pair of
// accounts. It is address-shaped: a fixed-width suffix of a collision-
// resistant digest over the canonicalized pair.
type ConversationID [AddressLen]byte

// Hex returns the canonical lower-case 0x-prefixed encoding.
func (id ConversationID) Hex() string { return "0x" + hex.EncodeToString(id[:]) }

func (id ConversationID) String() string { return id.Hex() }

// IsZero reports whether the id is unset.
func (id ConversationID) IsZero() bool { return id == ConversationID{} }
