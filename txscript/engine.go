package txscript

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // OP_SHA1 is part of the Script instruction set, not used for anything security-sensitive here
	"crypto/sha256"

	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// Checker supplies the transaction-specific operations CHECKSIG,
// CHECKMULTISIG, CHECKLOCKTIMEVERIFY and CHECKSEQUENCEVERIFY need: it knows
// how to build the appropriate sighash digest for the input being verified
// and how to compare against the input/transaction's locktime fields. This
// package is deliberately ignorant of transaction wire formats; txverify
// and txsign supply the concrete implementation.
type Checker interface {
	// CheckSig verifies a DER-encoded, sighash-byte-suffixed signature
	// against a serialized public key for the input currently being
	// executed.
	CheckSig(sig, pubKey []byte) (bool, error)
	// CheckLockTime reports whether the input's nLockTime/tx locktime
	// satisfies the CHECKLOCKTIMEVERIFY operand.
	CheckLockTime(lockTime int64) bool
	// CheckSequence reports whether the input's nSequence satisfies the
	// CHECKSEQUENCEVERIFY operand.
	CheckSequence(sequence int64) bool
}

// Engine is a Script stack machine. Its data stack persists across Execute
// calls, so one instance can run the signature script and then the public
// key script against a shared stack, as txverify does for legacy inputs;
// for P2SH redeem scripts and segwit scripts txverify seeds a fresh Engine
// through PushStack instead.
type Engine struct {
	stack    [][]byte
	altStack [][]byte
	checker  Checker
}

// NewEngine returns an Engine with empty stacks bound to checker.
func NewEngine(checker Checker) *Engine {
	return &Engine{checker: checker}
}

// Stack returns the current data stack, top of stack last. Callers (e.g.
// the P2SH redeem-script extraction step) may read it between Execute
// calls; they must not mutate the returned slice.
func (e *Engine) Stack() [][]byte { return e.stack }

// PushStack seeds the engine's stack, used when continuing execution with
// witness items as the initial stack.
func (e *Engine) PushStack(items ...[]byte) {
	e.stack = append(e.stack, items...)
}

func (e *Engine) push(v []byte) { e.stack = append(e.stack, v) }

func (e *Engine) pop() ([]byte, error) {
	if len(e.stack) == 0 {
		return nil, btcerr.New(btcerr.KindScriptRuntime, nil)
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, nil
}

func (e *Engine) peek() ([]byte, error) {
	if len(e.stack) == 0 {
		return nil, btcerr.New(btcerr.KindScriptRuntime, nil)
	}
	return e.stack[len(e.stack)-1], nil
}

func scriptBool(v []byte) bool {
	for i, b := range v {
		if b != 0 {
			if i == len(v)-1 && b == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

func boolBytes(b bool) []byte {
	if b {
		return []byte{1}
	}
	return nil
}

// condState tracks nested IF/NOTIF/ELSE/ENDIF execution.
type condState struct {
	executing bool
	seenElse  bool
}

// Execute runs script against the engine's current stack. A script that
// finishes with an open IF block fails with KindScriptSyntax.
func (e *Engine) Execute(script []byte) error {
	ops, err := ParseScript(script)
	if err != nil {
		return err
	}

	var conds []condState
	running := func() bool {
		for _, c := range conds {
			if !c.executing {
				return false
			}
		}
		return true
	}

	for _, op := range ops {
		if op.Opcode == OP_VERIF || op.Opcode == OP_VERNOTIF ||
			op.Opcode == OP_RESERVED || op.Opcode == OP_RESERVED1 || op.Opcode == OP_RESERVED2 {
			return btcerr.Newf(btcerr.KindScriptOpcode, "disabled opcode %s encountered", op.Opcode)
		}
		if op.Opcode == OP_IF || op.Opcode == OP_NOTIF {
			exec := running()
			var cond bool
			if exec {
				v, err := e.pop()
				if err != nil {
					return err
				}
				cond = scriptBool(v)
				if op.Opcode == OP_NOTIF {
					cond = !cond
				}
			}
			conds = append(conds, condState{executing: exec && cond})
			continue
		}
		if op.Opcode == OP_ELSE {
			if len(conds) == 0 {
				return btcerr.New(btcerr.KindScriptSyntax, nil)
			}
			top := &conds[len(conds)-1]
			if top.seenElse {
				return btcerr.New(btcerr.KindScriptSyntax, nil)
			}
			top.seenElse = true
			top.executing = !top.executing
			continue
		}
		if op.Opcode == OP_ENDIF {
			if len(conds) == 0 {
				return btcerr.New(btcerr.KindScriptSyntax, nil)
			}
			conds = conds[:len(conds)-1]
			continue
		}
		if !running() {
			continue
		}
		if op.IsPush() {
			e.push(DisassembleDataPush(op))
			continue
		}
		if err := e.execOp(op.Opcode); err != nil {
			return err
		}
	}
	if len(conds) != 0 {
		return btcerr.New(btcerr.KindScriptSyntax, nil)
	}
	return nil
}

// Success reports whether the stack, after all scripts for an input have
// executed, represents successful validation: a single non-false element.
func (e *Engine) Success() bool {
	if len(e.stack) != 1 {
		return false
	}
	return scriptBool(e.stack[0])
}

func (e *Engine) execOp(op Opcode) error {
	switch op {
	case OP_NOP, OP_NOP1, OP_NOP4, OP_NOP5, OP_NOP6, OP_NOP7, OP_NOP8, OP_NOP9, OP_NOP10, OP_CODESEPARATOR:
		return nil

	case OP_RESERVED, OP_RESERVED1, OP_RESERVED2, OP_VERIF, OP_VERNOTIF:
		return btcerr.Newf(btcerr.KindScriptOpcode, "disabled opcode %s encountered", op)

	case OP_VERIFY:
		v, err := e.pop()
		if err != nil {
			return err
		}
		if !scriptBool(v) {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		return nil

	case OP_RETURN:
		return btcerr.New(btcerr.KindScriptRuntime, nil)

	case OP_TOALTSTACK:
		v, err := e.pop()
		if err != nil {
			return err
		}
		e.altStack = append(e.altStack, v)
		return nil

	case OP_FROMALTSTACK:
		if len(e.altStack) == 0 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		v := e.altStack[len(e.altStack)-1]
		e.altStack = e.altStack[:len(e.altStack)-1]
		e.push(v)
		return nil

	case OP_DEPTH:
		e.push(scriptNumBytes(int64(len(e.stack))))
		return nil

	case OP_DROP:
		_, err := e.pop()
		return err

	case OP_DUP:
		v, err := e.peek()
		if err != nil {
			return err
		}
		e.push(append([]byte{}, v...))
		return nil

	case OP_IFDUP:
		v, err := e.peek()
		if err != nil {
			return err
		}
		if scriptBool(v) {
			e.push(append([]byte{}, v...))
		}
		return nil

	case OP_NIP:
		if len(e.stack) < 2 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		e.stack = append(e.stack[:len(e.stack)-2], e.stack[len(e.stack)-1])
		return nil

	case OP_OVER:
		if len(e.stack) < 2 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		e.push(append([]byte{}, e.stack[len(e.stack)-2]...))
		return nil

	case OP_ROT:
		if len(e.stack) < 3 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		e.stack[n-3], e.stack[n-2], e.stack[n-1] = e.stack[n-2], e.stack[n-1], e.stack[n-3]
		return nil

	case OP_SWAP:
		if len(e.stack) < 2 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		e.stack[n-2], e.stack[n-1] = e.stack[n-1], e.stack[n-2]
		return nil

	case OP_TUCK:
		if len(e.stack) < 2 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		top := append([]byte{}, e.stack[n-1]...)
		e.stack = append(e.stack[:n-2], top, e.stack[n-2], e.stack[n-1])
		return nil

	case OP_2DROP:
		if len(e.stack) < 2 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		e.stack = e.stack[:len(e.stack)-2]
		return nil

	case OP_2DUP:
		if len(e.stack) < 2 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		e.push(append([]byte{}, e.stack[n-2]...))
		e.push(append([]byte{}, e.stack[n-1]...))
		return nil

	case OP_3DUP:
		if len(e.stack) < 3 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		e.push(append([]byte{}, e.stack[n-3]...))
		e.push(append([]byte{}, e.stack[n-2]...))
		e.push(append([]byte{}, e.stack[n-1]...))
		return nil

	case OP_2OVER:
		if len(e.stack) < 4 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		e.push(append([]byte{}, e.stack[n-4]...))
		e.push(append([]byte{}, e.stack[n-3]...))
		return nil

	case OP_2SWAP:
		if len(e.stack) < 4 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		e.stack[n-4], e.stack[n-2] = e.stack[n-2], e.stack[n-4]
		e.stack[n-3], e.stack[n-1] = e.stack[n-1], e.stack[n-3]
		return nil

	case OP_2ROT:
		if len(e.stack) < 6 {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		n := len(e.stack)
		a1, a2 := e.stack[n-6], e.stack[n-5]
		copy(e.stack[n-6:], e.stack[n-4:])
		e.stack[n-2], e.stack[n-1] = a1, a2
		return nil

	case OP_PICK, OP_ROLL:
		idxBytes, err := e.pop()
		if err != nil {
			return err
		}
		idx64, err := makeScriptNum(idxBytes, true, defaultScriptNumLen)
		if err != nil {
			return err
		}
		idx := int(idx64)
		if idx < 0 || idx >= len(e.stack) {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		pos := len(e.stack) - 1 - idx
		v := append([]byte{}, e.stack[pos]...)
		if op == OP_ROLL {
			e.stack = append(e.stack[:pos], e.stack[pos+1:]...)
		}
		e.push(v)
		return nil

	case OP_SIZE:
		v, err := e.peek()
		if err != nil {
			return err
		}
		e.push(scriptNumBytes(int64(len(v))))
		return nil

	case OP_EQUAL, OP_EQUALVERIFY:
		b, err := e.pop()
		if err != nil {
			return err
		}
		a, err := e.pop()
		if err != nil {
			return err
		}
		eq := bytes.Equal(a, b)
		if op == OP_EQUALVERIFY {
			if !eq {
				return btcerr.New(btcerr.KindScriptRuntime, nil)
			}
			return nil
		}
		e.push(boolBytes(eq))
		return nil

	case OP_1ADD, OP_1SUB, OP_NEGATE, OP_ABS, OP_NOT, OP_0NOTEQUAL:
		return e.execUnaryNumeric(op)

	case OP_ADD, OP_SUB, OP_BOOLAND, OP_BOOLOR, OP_NUMEQUAL, OP_NUMEQUALVERIFY,
		OP_NUMNOTEQUAL, OP_LESSTHAN, OP_GREATERTHAN, OP_LESSTHANOREQUAL,
		OP_GREATERTHANOREQUAL, OP_MIN, OP_MAX:
		return e.execBinaryNumeric(op)

	case OP_WITHIN:
		return e.execWithin()

	case OP_RIPEMD160:
		v, err := e.pop()
		if err != nil {
			return err
		}
		return e.pushRipemdOnly(v)

	case OP_SHA1:
		v, err := e.pop()
		if err != nil {
			return err
		}
		sum := sha1.Sum(v) //nolint:gosec
		e.push(sum[:])
		return nil

	case OP_SHA256:
		v, err := e.pop()
		if err != nil {
			return err
		}
		sum := sha256.Sum256(v)
		e.push(sum[:])
		return nil

	case OP_HASH160:
		v, err := e.pop()
		if err != nil {
			return err
		}
		h := bhash.Hash160(v)
		e.push(h[:])
		return nil

	case OP_HASH256:
		v, err := e.pop()
		if err != nil {
			return err
		}
		h := bhash.Hash256(v)
		e.push(h[:])
		return nil

	case OP_CHECKSIG, OP_CHECKSIGVERIFY:
		if e.checker == nil {
			return btcerr.Newf(btcerr.KindScriptRuntime, "%s requires a transaction digest provider", op)
		}
		return e.execCheckSig(op)

	case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
		if e.checker == nil {
			return btcerr.Newf(btcerr.KindScriptRuntime, "%s requires a transaction digest provider", op)
		}
		return e.execCheckMultiSig(op)

	case OP_CHECKLOCKTIMEVERIFY:
		if e.checker == nil {
			return btcerr.Newf(btcerr.KindScriptRuntime, "%s requires a transaction digest provider", op)
		}
		v, err := e.peek()
		if err != nil {
			return err
		}
		n, err := makeScriptNum(v, true, 5)
		if err != nil {
			return err
		}
		if n < 0 || !e.checker.CheckLockTime(n) {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		return nil

	case OP_CHECKSEQUENCEVERIFY:
		if e.checker == nil {
			return btcerr.Newf(btcerr.KindScriptRuntime, "%s requires a transaction digest provider", op)
		}
		v, err := e.peek()
		if err != nil {
			return err
		}
		n, err := makeScriptNum(v, true, 5)
		if err != nil {
			return err
		}
		if n < 0 || !e.checker.CheckSequence(n) {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		return nil

	default:
		return btcerr.Newf(btcerr.KindScriptOpcode, "unsupported opcode %s (0x%02x)", op, byte(op))
	}
}

// pushRipemdOnly pushes RIPEMD160(v) with no SHA256 pre-step, the form
// OP_RIPEMD160 needs and bhash.Hash160 does not provide.
func (e *Engine) pushRipemdOnly(v []byte) error {
	h := bhash.RIPEMD160(v)
	e.push(h[:])
	return nil
}

func (e *Engine) popNum(maxLen int) (int64, error) {
	v, err := e.pop()
	if err != nil {
		return 0, err
	}
	return makeScriptNum(v, true, maxLen)
}

func (e *Engine) execUnaryNumeric(op Opcode) error {
	n, err := e.popNum(defaultScriptNumLen)
	if err != nil {
		return err
	}
	switch op {
	case OP_1ADD:
		e.push(scriptNumBytes(n + 1))
	case OP_1SUB:
		e.push(scriptNumBytes(n - 1))
	case OP_NEGATE:
		e.push(scriptNumBytes(-n))
	case OP_ABS:
		if n < 0 {
			n = -n
		}
		e.push(scriptNumBytes(n))
	case OP_NOT:
		e.push(boolBytes(n == 0))
	case OP_0NOTEQUAL:
		e.push(boolBytes(n != 0))
	}
	return nil
}

func (e *Engine) execBinaryNumeric(op Opcode) error {
	b, err := e.popNum(defaultScriptNumLen)
	if err != nil {
		return err
	}
	a, err := e.popNum(defaultScriptNumLen)
	if err != nil {
		return err
	}
	switch op {
	case OP_ADD:
		e.push(scriptNumBytes(a + b))
	case OP_SUB:
		e.push(scriptNumBytes(a - b))
	case OP_BOOLAND:
		e.push(boolBytes(a != 0 && b != 0))
	case OP_BOOLOR:
		e.push(boolBytes(a != 0 || b != 0))
	case OP_NUMEQUAL:
		e.push(boolBytes(a == b))
	case OP_NUMEQUALVERIFY:
		if a != b {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
	case OP_NUMNOTEQUAL:
		e.push(boolBytes(a != b))
	case OP_LESSTHAN:
		e.push(boolBytes(a < b))
	case OP_GREATERTHAN:
		e.push(boolBytes(a > b))
	case OP_LESSTHANOREQUAL:
		e.push(boolBytes(a <= b))
	case OP_GREATERTHANOREQUAL:
		e.push(boolBytes(a >= b))
	case OP_MIN:
		if a < b {
			e.push(scriptNumBytes(a))
		} else {
			e.push(scriptNumBytes(b))
		}
	case OP_MAX:
		if a > b {
			e.push(scriptNumBytes(a))
		} else {
			e.push(scriptNumBytes(b))
		}
	}
	return nil
}

func (e *Engine) execWithin() error {
	max, err := e.popNum(defaultScriptNumLen)
	if err != nil {
		return err
	}
	min, err := e.popNum(defaultScriptNumLen)
	if err != nil {
		return err
	}
	x, err := e.popNum(defaultScriptNumLen)
	if err != nil {
		return err
	}
	e.push(boolBytes(x >= min && x < max))
	return nil
}

func (e *Engine) execCheckSig(op Opcode) error {
	pubKey, err := e.pop()
	if err != nil {
		return err
	}
	sig, err := e.pop()
	if err != nil {
		return err
	}
	ok := false
	if len(sig) > 0 {
		ok, err = e.checker.CheckSig(sig, pubKey)
		if err != nil {
			return err
		}
	}
	if op == OP_CHECKSIGVERIFY {
		if !ok {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		return nil
	}
	e.push(boolBytes(ok))
	return nil
}

// execCheckMultiSig implements OP_CHECKMULTISIG, including the historical
// off-by-one bug that pops one extra stack item the standard signer must
// compensate for with a leading OP_0.
func (e *Engine) execCheckMultiSig(op Opcode) error {
	nKeysBytes, err := e.pop()
	if err != nil {
		return err
	}
	nKeys64, err := makeScriptNum(nKeysBytes, true, defaultScriptNumLen)
	if err != nil {
		return err
	}
	nKeys := int(nKeys64)
	if nKeys < 0 || nKeys > 20 {
		return btcerr.New(btcerr.KindScriptRuntime, nil)
	}
	pubKeys := make([][]byte, nKeys)
	for i := nKeys - 1; i >= 0; i-- {
		pubKeys[i], err = e.pop()
		if err != nil {
			return err
		}
	}

	nSigsBytes, err := e.pop()
	if err != nil {
		return err
	}
	nSigs64, err := makeScriptNum(nSigsBytes, true, defaultScriptNumLen)
	if err != nil {
		return err
	}
	nSigs := int(nSigs64)
	if nSigs < 0 || nSigs > nKeys {
		return btcerr.New(btcerr.KindScriptRuntime, nil)
	}
	sigs := make([][]byte, nSigs)
	for i := nSigs - 1; i >= 0; i-- {
		sigs[i], err = e.pop()
		if err != nil {
			return err
		}
	}

	// The extra, unused operand due to the original CHECKMULTISIG bug.
	if _, err := e.pop(); err != nil {
		return err
	}

	ok := true
	keyIdx := 0
	for _, sig := range sigs {
		matched := false
		for !matched && keyIdx < len(pubKeys) {
			valid, err := e.checker.CheckSig(sig, pubKeys[keyIdx])
			keyIdx++
			if err != nil {
				return err
			}
			if valid {
				matched = true
			}
		}
		if !matched {
			ok = false
			break
		}
	}

	if op == OP_CHECKMULTISIGVERIFY {
		if !ok {
			return btcerr.New(btcerr.KindScriptRuntime, nil)
		}
		return nil
	}
	e.push(boolBytes(ok))
	return nil
}
