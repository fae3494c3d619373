// Package msgcrypt encrypts and decrypts message bodies under a
// per-conversation 256-bit key using AES-CBC with a fresh IV per message.
package msgcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sealmsg/sealmsg/errs"
)

const (
	// KeyLen is the conversation key width in bytes.
	KeyLen = 32

	ivLen = aes.BlockSize

	// Prefix marks every ciphertext blob produced by this codec.
	Prefix = "sealed:v1:"

	// Undecryptable replaces the body of a record that failed to decrypt in
	// a batch listing, so one bad record never aborts the batch.
	Undecryptable = "[undecryptable]"
)

// Key is a conversation key held in process memory. Call Zero when the key
// is no longer needed.
type Key struct {
	b [KeyLen]byte
}

// KeyFromBytes copies a 32-byte secret into a Key.
func KeyFromBytes(b []byte) (*Key, error) {
	if len(b) != KeyLen {
		return nil, fmt.Errorf("msgcrypt: key must be %d bytes, got %d", KeyLen, len(b))
	}
	var k Key
	copy(k.b[:], b)
	return &k, nil
}

// Bytes returns a copy of the raw key material.
func (k *Key) Bytes() []byte { return append([]byte(nil), k.b[:]...) }

// Equal compares two keys in constant time.
func (k *Key) Equal(other *Key) bool {
	if other == nil {
		return false
	}
	return subtle.ConstantTimeCompare(k.b[:], other.b[:]) == 1
}

// Zero wipes the key material.
func (k *Key) Zero() {
	for i := range k.b {
		k.b[i] = 0
	}
}

// Encrypt encrypts plaintext under key. A fresh random IV is drawn per call;
// IV reuse under one key would leak plaintext relationships. Output is
// Prefix plus hex(iv || ciphertext).
func Encrypt(plaintext string, key *Key) (string, error) {
	block, err := aes.NewCipher(key.b[:])
	if err != nil {
		return "", fmt.Errorf("msgcrypt: %w", err)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("msgcrypt: read iv: %w", err)
	}
	padded := pad([]byte(plaintext))
	out := make([]byte, ivLen+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivLen:], padded)
	return Prefix + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed blob, invalid padding or
// non-text result fails with errs.ErrDecryptionFailed; callers must not
// treat the failure as an empty message.
func Decrypt(blob string, key *Key) (string, error) {
	raw, ok := strings.CutPrefix(blob, Prefix)
	if !ok {
		return "", fmt.Errorf("%w: missing ciphertext prefix", errs.ErrDecryptionFailed)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext encoding", errs.ErrDecryptionFailed)
	}
	if len(b) <= ivLen || (len(b)-ivLen)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: truncated ciphertext", errs.ErrDecryptionFailed)
	}
	block, err := aes.NewCipher(key.b[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecryptionFailed, err)
	}
	iv, ct := b[:ivLen], b[ivLen:]
	dec := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(dec, ct)
	out, err := unpad(dec)
	if err != nil {
		return "", fmt.Errorf("%w: invalid padding", errs.ErrDecryptionFailed)
	}
	if !utf8.Valid(out) {
		return "", fmt.Errorf("%w: plaintext is not valid text", errs.ErrDecryptionFailed)
	}
	return string(out), nil
}

// DecryptTexts decrypts each blob independently. A failing blob yields the
// Undecryptable marker at its position; one failure never aborts the batch.
func DecryptTexts(blobs []string, key *Key) []string {
	out := make([]string, len(blobs))
	for i, blob := range blobs {
		text, err := Decrypt(blob, key)
		if err != nil {
			out[i] = Undecryptable
			continue
		}
		out[i] = text
	}
	return out
}

// pad applies PKCS#7 block padding.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad strips PKCS#7 padding, validating every padding byte.
func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("msgcrypt: bad padded length %d", len(b))
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("msgcrypt: bad padding byte %d", n)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("msgcrypt: inconsistent padding")
		}
	}
	return b[:len(b)-n], nil
}
