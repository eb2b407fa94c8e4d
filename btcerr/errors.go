// Package btcerr defines the closed taxonomy of failure kinds raised by the
// btcprim packages. Causes are wrapped with fmt.Errorf("context: %w", err)
// while giving callers a stable Kind they can switch on via errors.As,
// instead of matching on error strings.
package btcerr

import "fmt"

// Kind identifies a class of failure. Kinds are a closed set; new kinds are
// never introduced to represent existing cases.
type Kind string

// The taxonomy of failure kinds. Names match the vocabulary used across the
// package family so a caller can errors.As to a single Error type and switch
// on Kind without knowing which package produced the failure.
const (
	KindSign                Kind = "sign"
	KindVerify              Kind = "verify"
	KindKeyCreate           Kind = "key_create"
	KindKeyDerive           Kind = "key_derive"
	KindMnemonicGenerate    Kind = "mnemonic_generate"
	KindMnemonicCheck       Kind = "mnemonic_check"
	KindBase58InputFormat   Kind = "base58_input_format"
	KindBase58InputChecksum Kind = "base58_input_checksum"
	KindBech32InputFormat   Kind = "bech32_input_format"
	KindBech32InputData     Kind = "bech32_input_data"
	KindBech32InputChecksum Kind = "bech32_input_checksum"
	KindBech32Type          Kind = "bech32_type"
	KindSegwitProgram       Kind = "segwit_program"
	KindScriptOpcode        Kind = "script_opcode"
	KindScriptPush          Kind = "script_push"
	KindScriptSyntax        Kind = "script_syntax"
	KindScriptRuntime       Kind = "script_runtime"
	KindTransaction         Kind = "transaction"
	KindTransactionInput    Kind = "transaction_input"
	KindTransactionScript   Kind = "transaction_script"
	KindNetworkConfig       Kind = "network_config"
	KindAddressGenerate     Kind = "address_generate"
	KindPSBT                Kind = "psbt"
)

// Error is the concrete error type raised by every package in this module.
// Context carries caller-facing location information (script position,
// input index, phase name) attached to the value rather than threaded
// through a stack trace, since a library has no logging frame to pin a
// backtrace to.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Context == "" {
		if e.Err == nil {
			return string(e.Kind)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Kind, e.Context)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, btcerr.Sentinel(kind)) by comparing kinds when
// the target is itself an *Error. The target's Context and cause are not
// compared, so a bare Sentinel matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind wrapping cause, with no extra
// context.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Newf constructs an *Error of the given kind with a formatted context
// string and no wrapped cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind, attaching both a context
// string and a wrapped cause.
func Wrap(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Err: cause}
}

// Sentinel returns a bare *Error of the given kind, suitable for comparison
// via errors.Is(err, btcerr.Sentinel(btcerr.KindKeyDerive)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
