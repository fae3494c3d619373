package sealmsg

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/identity"
	"github.com/sealmsg/sealmsg/ledger"
)

// session is the per-login state: the account, its cached password and the
// derived password address. The password lives only in process memory and is
// never written anywhere durable. A session is immutable once created;
// Logout replaces it with nil.
type session struct {
	account      ledger.Address
	password     string
	passwordAddr ledger.Address
}

// passwordIdentity derives the password identity for the operation at hand.
// When override is non-empty it replaces the session password for this one
// derivation. The password is checked against the on-ledger binding before
// the identity is handed out, so a wrong password always surfaces as
// errs.ErrInvalidPassword rather than a downstream decryption failure.
// Callers own the returned identity and must Zero it when done.
func (c *Client) passwordIdentity(ctx context.Context, sess *session, override string) (*identity.PasswordIdentity, error) {
	password := sess.password
	if override != "" {
		password = override
	}
	ident, err := identity.Derive(sess.account, password)
	if err != nil {
		return nil, fmt.Errorf("derive password identity: %w", err)
	}
	registered, err := c.ledger.RegisteredIdentity(ctx, sess.account)
	switch {
	case errors.Is(err, errs.ErrNotRegistered):
		// Nothing to check against; recovery will fail on a missing grant.
	case err != nil:
		ident.Zero()
		return nil, fmt.Errorf("read registered identity: %w", err)
	case registered != ident.Address():
		ident.Zero()
		return nil, errs.ErrInvalidPassword
	}
	return ident, nil
}

// registrationPayload is the transaction payload the wallet signs to bind a
// password identity to its account.
func registrationPayload(account, passwordAddr ledger.Address) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("sealmsg/register/v1"))
	h.Write(account[:])
	h.Write(passwordAddr[:])
	return h.Sum(nil)
}

// submissionPayload is the transaction payload the wallet signs for one
// message submission.
func submissionPayload(from ledger.Address, msg ledger.OutboundMessage) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("sealmsg/message/v1"))
	h.Write(from[:])
	h.Write(msg.To[:])
	h.Write([]byte(msg.Ciphertext))
	h.Write(msg.KeyHandle)
	return h.Sum(nil)
}
