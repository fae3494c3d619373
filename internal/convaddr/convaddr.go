// Package convaddr computes canonical conversation identifiers for unordered
// pairs of account addresses. The ledger program runs the identical
// derivation when routing messages, so this function must stay bit-for-bit
// stable.
package convaddr

import (
	"golang.org/x/crypto/sha3"

	"github.com/sealmsg/sealmsg/ledger"
)

// domainSep is mixed into every digest so conversation ids cannot collide
// with unrelated Keccak-derived values.
const domainSep = "sealmsg/conversation/v1"

// ConversationID returns the identifier for the conversation between a and
// b. The pair is canonicalized by unsigned comparison (lower address first),
// so ConversationID(a, b) == ConversationID(b, a). The id is never stored;
// it is recomputed from the pair wherever needed.
func ConversationID(a, b ledger.Address) ledger.ConversationID {
	lo, hi := a, b
	if hi.Cmp(lo) < 0 {
		lo, hi = hi, lo
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(lo[:])
	h.Write(hi[:])
	h.Write([]byte(domainSep))
	sum := h.Sum(nil)

	var id ledger.ConversationID
	copy(id[:], sum[len(sum)-ledger.AddressLen:])
	return id
}
