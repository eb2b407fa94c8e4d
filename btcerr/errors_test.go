package btcerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageFormatting(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"bare kind", New(KindSign, nil), "sign"},
		{"kind with cause", New(KindVerify, cause), "verify: boom"},
		{"kind with context", Newf(KindKeyDerive, "index %d", 5), "key_derive (index 5)"},
		{"kind with context and cause", Wrap(KindTransaction, "parse header", cause), "transaction (parse header): boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := Wrap(KindScriptRuntime, "ctx", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestErrorIsKindSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Newf(KindScriptSyntax, "bad op"))
	if !errors.Is(err, Sentinel(KindScriptSyntax)) {
		t.Errorf("errors.Is against Sentinel(KindScriptSyntax) = false, want true")
	}
	if errors.Is(err, Sentinel(KindScriptRuntime)) {
		t.Errorf("errors.Is against Sentinel(KindScriptRuntime) = true, want false")
	}
}

func TestErrorAsRecoversKind(t *testing.T) {
	orig := New(KindTransactionInput, nil)
	wrapped := fmt.Errorf("context: %w", orig)

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatalf("errors.As failed to recover *Error")
	}
	if target.Kind != KindTransactionInput {
		t.Errorf("recovered Kind = %q, want %q", target.Kind, KindTransactionInput)
	}
}
