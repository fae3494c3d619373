package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode_StableAcrossWrapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code string
	}{
		{ErrNotRegistered, "NOT_REGISTERED"},
		{ErrInvalidPassword, "INVALID_PASSWORD"},
		{ErrDecryptionFailed, "DECRYPTION_FAILED"},
		{ErrConversationNotFound, "CONVERSATION_NOT_FOUND"},
		{ErrAlreadyRegistered, "ALREADY_REGISTERED"},
		{ErrNotInitialized, "NOT_INITIALIZED"},
		{ErrTransactionFailed, "TRANSACTION_FAILED"},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.code {
			t.Fatalf("Code(%v)=%q, want %q", tc.err, got, tc.code)
		}
		wrapped := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", tc.err))
		if got := Code(wrapped); got != tc.code {
			t.Fatalf("Code(wrapped %v)=%q, want %q", tc.err, got, tc.code)
		}
		if !errors.Is(wrapped, tc.err) {
			t.Fatalf("errors.Is failed for wrapped %v", tc.err)
		}
	}
}

func TestCode_UnknownError(t *testing.T) {
	t.Parallel()

	if got := Code(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("Code(plain)=%q, want %q", got, CodeUnknown)
	}
	if got := Code(nil); got != CodeUnknown {
		t.Fatalf("Code(nil)=%q, want %q", got, CodeUnknown)
	}
}

func TestSentinelsDistinct(t *testing.T) {
	t.Parallel()

	if errors.Is(ErrInvalidPassword, ErrDecryptionFailed) {
		t.Fatalf("distinct sentinels compare equal")
	}
}
