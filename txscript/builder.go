package txscript

import (
	"encoding/binary"

	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// MaxScriptSize is the maximum serialized script length this builder will
// produce, matching the Bitcoin consensus limit.
const MaxScriptSize = 10000

// Builder assembles a Script one instruction at a time, always choosing the
// minimal-push encoding for data.
type Builder struct {
	script []byte
	err    error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddOp appends a single non-push opcode.
func (b *Builder) AddOp(op Opcode) *Builder {
	if b.err != nil {
		return b
	}
	b.script = append(b.script, byte(op))
	return b.checkSize()
}

// AddInt64 appends the minimal encoding of n: OP_0/OP_1NEGATE/OP_1..OP_16
// for the values they cover, otherwise a CScriptNum data push.
func (b *Builder) AddInt64(n int64) *Builder {
	if b.err != nil {
		return b
	}
	switch {
	case n == 0:
		return b.AddOp(OP_0)
	case n == -1:
		return b.AddOp(OP_1NEGATE)
	case n >= 1 && n <= 16:
		return b.AddOp(SmallIntOpcode(int(n)))
	default:
		return b.AddData(scriptNumBytes(n))
	}
}

// AddData appends the minimal-push encoding of data.
func (b *Builder) AddData(data []byte) *Builder {
	if b.err != nil {
		return b
	}
	n := len(data)
	switch {
	case n == 0:
		b.script = append(b.script, byte(OP_0))
	case n == 1 && data[0] >= 1 && data[0] <= 16:
		b.script = append(b.script, byte(SmallIntOpcode(int(data[0]))))
	case n == 1 && data[0] == 0x81:
		b.script = append(b.script, byte(OP_1NEGATE))
	case n <= 75:
		b.script = append(b.script, byte(n))
		b.script = append(b.script, data...)
	case n <= 255:
		b.script = append(b.script, byte(OP_PUSHDATA1), byte(n))
		b.script = append(b.script, data...)
	case n <= 65535:
		var length [2]byte
		binary.LittleEndian.PutUint16(length[:], uint16(n))
		b.script = append(b.script, byte(OP_PUSHDATA2))
		b.script = append(b.script, length[:]...)
		b.script = append(b.script, data...)
	default:
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(n))
		b.script = append(b.script, byte(OP_PUSHDATA4))
		b.script = append(b.script, length[:]...)
		b.script = append(b.script, data...)
	}
	return b.checkSize()
}

func (b *Builder) checkSize() *Builder {
	if len(b.script) > MaxScriptSize {
		b.err = btcerr.Newf(btcerr.KindScriptSyntax, "script exceeds maximum size %d", MaxScriptSize)
	}
	return b
}

// Script returns the assembled script, or the first error encountered.
func (b *Builder) Script() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.script, nil
}
