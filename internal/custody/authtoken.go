package custody

import (
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/identity"
	"github.com/sealmsg/sealmsg/ledger"
)

// An authorization token is a signed JWT proving control of a password
// identity: sub = the identity's address, aud = the contract scope, iat/exp
// = the validity window. The oracle recovers the signer from the compact
// signature and checks it against sub, so no key distribution is needed.

const authAlg = "ES256K"

// signingMethodES256K signs with compact secp256k1 ECDSA over the Keccak-256
// digest of the signing string, the same curve and hash the ledger uses for
// account keys.
type signingMethodES256K struct{}

var methodES256K = &signingMethodES256K{}

func init() {
	jwt.RegisterSigningMethod(authAlg, func() jwt.SigningMethod { return methodES256K })
}

func (m *signingMethodES256K) Alg() string { return authAlg }

func (m *signingMethodES256K) Sign(signingString string, key any) ([]byte, error) {
	priv, ok := key.(*secp256k1.PrivateKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	digest := keccakSum([]byte(signingString))
	return secpecdsa.SignCompact(priv, digest, false), nil
}

func (m *signingMethodES256K) Verify(signingString string, sig []byte, key any) error {
	expected, ok := key.(ledger.Address)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	digest := keccakSum([]byte(signingString))
	pub, _, err := secpecdsa.RecoverCompact(sig, digest)
	if err != nil {
		return fmt.Errorf("%w: %v", jwt.ErrSignatureInvalid, err)
	}
	if identity.AddressOf(pub) != expected {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

// signAuthorization issues a fresh token for ident, valid for the custody
// window starting now.
func (c *Custody) signAuthorization(ident *identity.PasswordIdentity) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	now := c.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ident.Address().Hex(),
		Audience:  jwt.ClaimStrings{c.scope},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.window)),
		ID:        jti.String(),
	}
	return jwt.NewWithClaims(methodES256K, claims).SignedString(ident.PrivateKey())
}

// VerifyAuthorization validates a signed authorization token against the
// contract scope and the given clock, returning the proven identity
// address. Oracle implementations use it to gate secret release.
func VerifyAuthorization(token, scope string, now func() time.Time) (ledger.Address, error) {
	claims := &jwt.RegisteredClaims{}
	keyFunc := func(t *jwt.Token) (any, error) {
		rc, ok := t.Claims.(*jwt.RegisteredClaims)
		if !ok || rc.Subject == "" {
			return nil, fmt.Errorf("authorization token without subject")
		}
		return ledger.ParseAddress(rc.Subject)
	}
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc,
		jwt.WithValidMethods([]string{authAlg}),
		jwt.WithAudience(scope),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return ledger.ZeroAddress, fmt.Errorf("%w: %v", errs.ErrDecryptionFailed, err)
	}
	if claims.IssuedAt == nil {
		return ledger.ZeroAddress, fmt.Errorf("%w: authorization token without issue time", errs.ErrDecryptionFailed)
	}
	if window := claims.ExpiresAt.Sub(claims.IssuedAt.Time); window > MaxAuthWindow {
		return ledger.ZeroAddress, fmt.Errorf("%w: authorization window %s exceeds maximum", errs.ErrDecryptionFailed, window)
	}
	if !parsed.Valid {
		return ledger.ZeroAddress, fmt.Errorf("%w: invalid authorization token", errs.ErrDecryptionFailed)
	}
	return ledger.ParseAddress(claims.Subject)
}

func keccakSum(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}
