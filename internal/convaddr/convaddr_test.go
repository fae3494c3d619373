package convaddr

import (
	"testing"

	"github.com/sealmsg/sealmsg/ledger"
)

func addr(t *testing.T, s string) ledger.Address {
	t.Helper()
	a, err := ledger.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}

func TestConversationID_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
		{"0x0000000000000000000000000000000000000001", "0xffffffffffffffffffffffffffffffffffffffff"},
		{"0x1234567890abcdef1234567890abcdef12345678", "0x1234567890abcdef1234567890abcdef12345679"},
	}
	for _, p := range pairs {
		a, b := addr(t, p[0]), addr(t, p[1])
		ab := ConversationID(a, b)
		ba := ConversationID(b, a)
		if ab != ba {
			t.Fatalf("id(%s,%s)=%s but id(%s,%s)=%s", a, b, ab, b, a, ba)
		}
		if ab.IsZero() {
			t.Fatalf("id(%s,%s) is zero", a, b)
		}
	}
}

func TestConversationID_Deterministic(t *testing.T) {
	t.Parallel()

	a := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := addr(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if ConversationID(a, b) != ConversationID(a, b) {
		t.Fatalf("same pair produced different ids")
	}
}

func TestConversationID_DistinctPairsDistinctIDs(t *testing.T) {
	t.Parallel()

	a := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := addr(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	c := addr(t, "0xcccccccccccccccccccccccccccccccccccccccc")

	ab := ConversationID(a, b)
	ac := ConversationID(a, c)
	bc := ConversationID(b, c)
	if ab == ac || ab == bc || ac == bc {
		t.Fatalf("distinct pairs collided: ab=%s ac=%s bc=%s", ab, ac, bc)
	}
}

// The id must not collide with an address-style derivation of either
// participant, since a fixed domain constant is mixed into the digest.
func TestConversationID_NotAParticipantAddress(t *testing.T) {
	t.Parallel()

	a := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := addr(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	id := ConversationID(a, b)
	if [20]byte(id) == [20]byte(a) || [20]byte(id) == [20]byte(b) {
		t.Fatalf("conversation id equals a participant address")
	}
}
