package identity

import (
	"testing"

	"github.com/sealmsg/sealmsg/ledger"
)

func testAccount(t *testing.T, s string) ledger.Address {
	t.Helper()
	a, err := ledger.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}

func TestDerive_Deterministic(t *testing.T) {
	t.Parallel()

	account := testAccount(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	a, err := Derive(account, "hunter2hunter2")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	b, err := Derive(account, "hunter2hunter2")
	if err != nil {
		t.Fatalf("Derive(2): %v", err)
	}
	if a.Address() != b.Address() {
		t.Fatalf("identical inputs produced different identities: %s vs %s", a.Address(), b.Address())
	}
	if !a.PrivateKey().Key.Equals(&b.PrivateKey().Key) {
		t.Fatalf("identical inputs produced different private scalars")
	}
}

func TestDerive_DistinctInputsDistinctIdentities(t *testing.T) {
	t.Parallel()

	accountA := testAccount(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	accountB := testAccount(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	base, err := Derive(accountA, "password-one")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	otherPwd, err := Derive(accountA, "password-two")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	otherAcct, err := Derive(accountB, "password-one")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if base.Address() == otherPwd.Address() {
		t.Fatalf("different passwords produced the same identity")
	}
	if base.Address() == otherAcct.Address() {
		t.Fatalf("different accounts produced the same identity")
	}
}

func TestDerive_RejectsMalformedInput(t *testing.T) {
	t.Parallel()

	account := testAccount(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if _, err := Derive(account, ""); err == nil {
		t.Fatalf("Derive accepted an empty password")
	}
	if _, err := Derive(ledger.ZeroAddress, "some-password"); err == nil {
		t.Fatalf("Derive accepted a zero account address")
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	account := testAccount(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	id, err := Derive(account, "the-right-password")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if !Verify(account, "the-right-password", id.Address()) {
		t.Fatalf("Verify: expected true for the deriving password")
	}
	if Verify(account, "the-wrong-password", id.Address()) {
		t.Fatalf("Verify: expected false for a different password")
	}
	if Verify(account, "", id.Address()) {
		t.Fatalf("Verify: expected false, not a failure, for an empty password")
	}
	other := testAccount(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if Verify(other, "the-right-password", id.Address()) {
		t.Fatalf("Verify: expected false for a different account")
	}
}

func TestZeroWipesScalar(t *testing.T) {
	t.Parallel()

	account := testAccount(t, "0xcccccccccccccccccccccccccccccccccccccccc")
	id, err := Derive(account, "wipe-me-after-use")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	id.Zero()
	if !id.PrivateKey().Key.IsZero() {
		t.Fatalf("Zero left the private scalar in memory")
	}
}
