package txscript

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// stubChecker is a Checker whose CheckSig, CheckLockTime and CheckSequence
// results are fixed by its fields (the zero value fails all three), enough
// to drive opcodes that don't depend on a real transaction digest.
type stubChecker struct {
	sigOK  bool
	ltOK   bool
	seqOK  bool
	sigErr error
}

func (c *stubChecker) CheckSig(sig, pubKey []byte) (bool, error) {
	return c.sigOK, c.sigErr
}
func (c *stubChecker) CheckLockTime(lockTime int64) bool { return c.ltOK }
func (c *stubChecker) CheckSequence(sequence int64) bool { return c.seqOK }

func runScript(t *testing.T, checker Checker, script []byte) (*Engine, error) {
	t.Helper()
	e := NewEngine(checker)
	err := e.Execute(script)
	return e, err
}

func TestExecuteArithmeticAndStack(t *testing.T) {
	tests := []struct {
		name   string
		script func() ([]byte, error)
		want   bool
	}{
		{
			name: "1 add 1 equals 2",
			script: func() ([]byte, error) {
				return NewBuilder().AddInt64(1).AddOp(OP_1ADD).AddInt64(2).AddOp(OP_NUMEQUAL).Script()
			},
			want: true,
		},
		{
			name: "dup equal",
			script: func() ([]byte, error) {
				return NewBuilder().AddData([]byte("x")).AddOp(OP_DUP).AddOp(OP_EQUAL).Script()
			},
			want: true,
		},
		{
			name: "hash160 of empty matches known digest",
			script: func() ([]byte, error) {
				return NewBuilder().AddData(nil).AddOp(OP_HASH160).
					AddData(mustHexDecode(t, "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb")).
					AddOp(OP_EQUAL).Script()
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := tt.script()
			if err != nil {
				t.Fatalf("build script: %v", err)
			}
			e, err := runScript(t, &stubChecker{}, script)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got := e.Success(); got != tt.want {
				t.Errorf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}

func mustHexDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex decode %q: %v", s, err)
	}
	return b
}

func TestIfElseEndifBranching(t *testing.T) {
	tests := []struct {
		name   string
		cond   int64
		script func(b *Builder) *Builder
		want   bool
	}{
		{
			name: "true branch taken",
			cond: 1,
			script: func(b *Builder) *Builder {
				return b.AddOp(OP_IF).AddInt64(1).AddOp(OP_ELSE).AddInt64(0).AddOp(OP_ENDIF)
			},
			want: true,
		},
		{
			name: "false branch taken",
			cond: 0,
			script: func(b *Builder) *Builder {
				return b.AddOp(OP_IF).AddInt64(0).AddOp(OP_ELSE).AddInt64(1).AddOp(OP_ENDIF)
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder().AddInt64(tt.cond)
			b = tt.script(b)
			script, err := b.Script()
			if err != nil {
				t.Fatalf("build script: %v", err)
			}
			e, err := runScript(t, &stubChecker{}, script)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got := e.Success(); got != tt.want {
				t.Errorf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnbalancedIfFailsWithScriptSyntax(t *testing.T) {
	script, err := NewBuilder().AddInt64(1).AddOp(OP_IF).AddInt64(1).Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	_, err = runScript(t, &stubChecker{}, script)
	if err == nil {
		t.Fatal("expected error for unbalanced IF, got nil")
	}
	if !errors.Is(err, btcerr.Sentinel(btcerr.KindScriptSyntax)) {
		t.Errorf("error kind = %v, want KindScriptSyntax", err)
	}
}

// TestDisabledOpcodesAlwaysAbort is the regression test for the fix making
// OP_VERIF/OP_VERNOTIF/OP_RESERVED/OP_RESERVED1/OP_RESERVED2 fail execution
// unconditionally, including inside a not-taken IF/ELSE branch.
func TestDisabledOpcodesAlwaysAbort(t *testing.T) {
	disabled := []Opcode{OP_VERIF, OP_VERNOTIF, OP_RESERVED, OP_RESERVED1, OP_RESERVED2}

	t.Run("at top level", func(t *testing.T) {
		for _, op := range disabled {
			script := []byte{byte(op)}
			_, err := runScript(t, &stubChecker{}, script)
			if err == nil {
				t.Errorf("%s: expected error, got nil", op)
			}
		}
	})

	t.Run("inside not-taken IF branch", func(t *testing.T) {
		for _, op := range disabled {
			// push false, OP_IF, <disabled op>, OP_ENDIF
			script := append([]byte{byte(OP_0), byte(OP_IF)}, byte(op), byte(OP_ENDIF))
			_, err := runScript(t, &stubChecker{}, script)
			if err == nil {
				t.Errorf("%s inside not-taken IF branch: expected error, got nil", op)
			}
		}
	})

	t.Run("inside not-taken ELSE branch", func(t *testing.T) {
		for _, op := range disabled {
			// push true, OP_IF, OP_ELSE, <disabled op>, OP_ENDIF
			script := append([]byte{byte(OP_1), byte(OP_IF), byte(OP_ELSE)}, byte(op), byte(OP_ENDIF))
			_, err := runScript(t, &stubChecker{}, script)
			if err == nil {
				t.Errorf("%s inside not-taken ELSE branch: expected error, got nil", op)
			}
		}
	})
}

func TestOpReturnFailsImmediately(t *testing.T) {
	script, err := NewBuilder().AddOp(OP_RETURN).Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	if _, err := runScript(t, &stubChecker{}, script); err == nil {
		t.Error("expected error executing OP_RETURN")
	}
}

func TestCheckSigDispatchesToChecker(t *testing.T) {
	script, err := NewBuilder().AddData([]byte("sig")).AddData([]byte("pubkey")).AddOp(OP_CHECKSIG).Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	e, err := runScript(t, &stubChecker{sigOK: true}, script)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !e.Success() {
		t.Error("expected successful CHECKSIG against a stub checker returning true")
	}
}

func TestCheckMultiSigTwoOfThree(t *testing.T) {
	checker := &stubChecker{sigOK: true}
	script, err := NewBuilder().
		AddOp(OP_0). // historical off-by-one compensation
		AddData([]byte("sig1")).
		AddData([]byte("sig2")).
		AddInt64(2).
		AddData([]byte("pub1")).
		AddData([]byte("pub2")).
		AddData([]byte("pub3")).
		AddInt64(3).
		AddOp(OP_CHECKMULTISIG).
		Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	e, err := runScript(t, checker, script)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !e.Success() {
		t.Error("expected CHECKMULTISIG success with a checker that always validates")
	}
}

func TestPushStackSeedsInitialStack(t *testing.T) {
	e := NewEngine(&stubChecker{})
	e.PushStack([]byte("a"), []byte("b"))
	if len(e.Stack()) != 2 {
		t.Fatalf("Stack length = %d, want 2", len(e.Stack()))
	}
	if err := e.Execute([]byte{byte(OP_EQUAL)}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if e.Success() {
		t.Error("expected OP_EQUAL(\"a\", \"b\") to fail")
	}
}

func TestCheckLockTimeVerifyUsesChecker(t *testing.T) {
	script, err := NewBuilder().AddInt64(500000).AddOp(OP_CHECKLOCKTIMEVERIFY).Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	if _, err := runScript(t, &stubChecker{ltOK: false}, script); err == nil {
		t.Error("expected error when checker rejects locktime")
	}
	if _, err := runScript(t, &stubChecker{ltOK: true}, script); err != nil {
		t.Errorf("expected success when checker accepts locktime, got %v", err)
	}
}
