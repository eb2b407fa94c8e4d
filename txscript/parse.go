package txscript

import (
	"encoding/binary"

	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// ParsedOp is a single decoded Script instruction: its opcode and, for
// data-push opcodes, the pushed bytes.
type ParsedOp struct {
	Opcode Opcode
	Data   []byte
}

// IsPush reports whether this instruction pushes data (including OP_0,
// OP_1NEGATE, and OP_1..OP_16, which push a value without an explicit data
// blob).
func (p ParsedOp) IsPush() bool {
	return p.Opcode <= OP_16
}

// ParseScript decodes a raw script into its sequence of instructions,
// failing with KindScriptPush if a push opcode's declared length runs past
// the end of the script.
func ParseScript(script []byte) ([]ParsedOp, error) {
	var ops []ParsedOp
	i := 0
	for i < len(script) {
		op := Opcode(script[i])
		switch {
		case op >= 1 && op <= 75:
			length := int(op)
			if i+1+length > len(script) {
				return nil, btcerr.Newf(btcerr.KindScriptPush, "push of %d bytes at offset %d runs past end of script", length, i)
			}
			ops = append(ops, ParsedOp{Opcode: op, Data: script[i+1 : i+1+length]})
			i += 1 + length

		case op == OP_PUSHDATA1:
			if i+2 > len(script) {
				return nil, btcerr.New(btcerr.KindScriptPush, nil)
			}
			length := int(script[i+1])
			if i+2+length > len(script) {
				return nil, btcerr.Newf(btcerr.KindScriptPush, "OP_PUSHDATA1 of %d bytes runs past end of script", length)
			}
			ops = append(ops, ParsedOp{Opcode: op, Data: script[i+2 : i+2+length]})
			i += 2 + length

		case op == OP_PUSHDATA2:
			if i+3 > len(script) {
				return nil, btcerr.New(btcerr.KindScriptPush, nil)
			}
			length := int(binary.LittleEndian.Uint16(script[i+1 : i+3]))
			if i+3+length > len(script) {
				return nil, btcerr.Newf(btcerr.KindScriptPush, "OP_PUSHDATA2 of %d bytes runs past end of script", length)
			}
			ops = append(ops, ParsedOp{Opcode: op, Data: script[i+3 : i+3+length]})
			i += 3 + length

		case op == OP_PUSHDATA4:
			if i+5 > len(script) {
				return nil, btcerr.New(btcerr.KindScriptPush, nil)
			}
			length := int(binary.LittleEndian.Uint32(script[i+1 : i+5]))
			if i+5+length > len(script) {
				return nil, btcerr.Newf(btcerr.KindScriptPush, "OP_PUSHDATA4 of %d bytes runs past end of script", length)
			}
			ops = append(ops, ParsedOp{Opcode: op, Data: script[i+5 : i+5+length]})
			i += 5 + length

		default:
			ops = append(ops, ParsedOp{Opcode: op})
			i++
		}
	}
	return ops, nil
}

// IsPushOnly reports whether every instruction in ops is a data-pushing
// opcode (OP_0 through OP_16, including OP_1NEGATE); a signature script
// that fails this check is never standard.
func IsPushOnly(ops []ParsedOp) bool {
	for _, op := range ops {
		if op.Opcode > OP_16 {
			return false
		}
	}
	return true
}

// canonicalPush reports whether a push instruction uses the shortest
// possible encoding for its data, the BIP62 "minimal push" rule.
func canonicalPush(op ParsedOp) bool {
	data := op.Data
	n := len(data)

	switch {
	case n == 0:
		return op.Opcode == OP_0
	case n == 1 && data[0] >= 1 && data[0] <= 16:
		return op.Opcode == SmallIntOpcode(int(data[0]))
	case n == 1 && data[0] == 0x81:
		return op.Opcode == OP_1NEGATE
	case n <= 75:
		return int(op.Opcode) == n
	case n <= 255:
		return op.Opcode == OP_PUSHDATA1
	case n <= 65535:
		return op.Opcode == OP_PUSHDATA2
	default:
		return op.Opcode == OP_PUSHDATA4
	}
}

// RemoveOpcode returns script with every occurrence of op stripped out,
// rebuilt from its parsed instructions. Used to drop OP_CODESEPARATOR from
// the scriptCode fed into a signature digest. This does not track
// which OP_CODESEPARATOR actually executed last (consensus's "remove
// everything up to and including the last executed CODESEPARATOR" rule);
// standard templates never place one, so all occurrences are removed.
func RemoveOpcode(script []byte, op Opcode) ([]byte, error) {
	ops, err := ParseScript(script)
	if err != nil {
		return nil, err
	}
	b := NewBuilder()
	for _, p := range ops {
		if p.Opcode == op {
			continue
		}
		if p.IsPush() {
			b = b.AddData(DisassembleDataPush(p))
		} else {
			b = b.AddOp(p.Opcode)
		}
	}
	return b.Script()
}

// DisassembleDataPush returns a ParsedOp's data for opcodes that push the
// empty string as OP_0 and small integers via OP_1..OP_16/OP_1NEGATE, used
// by the standard-template classifier to treat those uniformly with
// explicit data pushes.
func DisassembleDataPush(op ParsedOp) []byte {
	switch {
	case op.Opcode == OP_0:
		return nil
	case op.Opcode == OP_1NEGATE:
		return []byte{0x81}
	case op.Opcode >= OP_1 && op.Opcode <= OP_16:
		return []byte{byte(AsSmallInt(op.Opcode))}
	default:
		return op.Data
	}
}
