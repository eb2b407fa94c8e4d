// Package sighash computes the transaction digest a signature commits to:
// the legacy pre-segwit preimage and the BIP143 witness v0 preimage, each
// parameterized by a SIGHASH type/ANYONECANPAY combination.
package sighash

import (
	"bytes"
	"encoding/binary"

	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
	"github.com/olehkaliuzhnyi/btcprim/txscript"
	"github.com/olehkaliuzhnyi/btcprim/wire"
)

// Type is a SIGHASH type byte, the base type (ALL/NONE/SINGLE) optionally
// combined with the ANYONECANPAY flag.
type Type uint32

const (
	All          Type = 0x1
	None         Type = 0x2
	Single       Type = 0x3
	AnyOneCanPay Type = 0x80

	baseMask = 0x1f
)

// Base returns the ALL/NONE/SINGLE component, masking off ANYONECANPAY.
func (t Type) Base() Type { return t & baseMask }

// HasAnyOneCanPay reports whether the ANYONECANPAY flag is set.
func (t Type) HasAnyOneCanPay() bool { return t&AnyOneCanPay != 0 }

// Legacy computes the pre-BIP143 signature digest for input idx of tx:
// subscript is the scriptCode (the spent output's locking script, or
// an explicit redeem script for P2SH) with any OP_CODESEPARATOR stripped.
//
// The historical SIGHASH_SINGLE bug is preserved: when idx has no
// corresponding output, the digest is the constant 0x0000...0001, returned
// without hashing, and callers must still accept it as a valid (if
// famously insecure) signature target rather than treating it as an error.
func Legacy(tx *wire.MsgTx, idx int, subscript []byte, hashType Type) ([32]byte, error) {
	if idx < 0 || idx >= len(tx.TxIn) {
		return [32]byte{}, btcerr.Newf(btcerr.KindTransactionInput, "sighash input index %d out of range (%d inputs)", idx, len(tx.TxIn))
	}
	if hashType.Base() == Single && idx >= len(tx.TxOut) {
		var h [32]byte
		h[0] = 0x01
		return h, nil
	}

	subscript, err := txscript.RemoveOpcode(subscript, txscript.OP_CODESEPARATOR)
	if err != nil {
		return [32]byte{}, err
	}

	txCopy := tx.Copy()
	for i, in := range txCopy.TxIn {
		if i == idx {
			in.SignatureScript = subscript
		} else {
			in.SignatureScript = nil
		}
		in.Witness = nil
	}

	switch hashType.Base() {
	case None:
		txCopy.TxOut = nil
		for i, in := range txCopy.TxIn {
			if i != idx {
				in.Sequence = 0
			}
		}
	case Single:
		txCopy.TxOut = txCopy.TxOut[:idx+1]
		for i := 0; i < idx; i++ {
			txCopy.TxOut[i].Value = -1
			txCopy.TxOut[i].PkScript = nil
		}
		for i, in := range txCopy.TxIn {
			if i != idx {
				in.Sequence = 0
			}
		}
	default: // All, and any unrecognized base type, behave like ALL.
	}

	if hashType.HasAnyOneCanPay() {
		txCopy.TxIn = []*wire.TxIn{txCopy.TxIn[idx]}
	}

	raw, err := txCopy.SerializeNoWitness()
	if err != nil {
		return [32]byte{}, err
	}

	var buf bytes.Buffer
	buf.Write(raw)
	var ht [4]byte
	binary.LittleEndian.PutUint32(ht[:], uint32(hashType))
	buf.Write(ht[:])
	return bhash.Hash256(buf.Bytes()), nil
}

// hashPrevouts returns DoubleHash of every input's outpoint, concatenated in
// order, used by the BIP143 preimage unless ANYONECANPAY is set.
func hashPrevouts(tx *wire.MsgTx) [32]byte {
	var buf bytes.Buffer
	for _, in := range tx.TxIn {
		buf.Write(in.PreviousOutPoint.Hash[:])
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], in.PreviousOutPoint.Index)
		buf.Write(idx[:])
	}
	return bhash.Hash256(buf.Bytes())
}

// hashSequence returns DoubleHash of every input's nSequence, concatenated
// in order, used by the BIP143 preimage only for hashType ALL (no
// ANYONECANPAY, no NONE/SINGLE).
func hashSequence(tx *wire.MsgTx) [32]byte {
	var buf bytes.Buffer
	for _, in := range tx.TxIn {
		var seq [4]byte
		binary.LittleEndian.PutUint32(seq[:], in.Sequence)
		buf.Write(seq[:])
	}
	return bhash.Hash256(buf.Bytes())
}

// hashOutputs returns DoubleHash of every output serialized in wire form,
// concatenated in order; used by the BIP143 preimage for hashType ALL.
func hashOutputs(tx *wire.MsgTx) ([32]byte, error) {
	var buf bytes.Buffer
	for _, out := range tx.TxOut {
		if err := writeTxOut(&buf, out); err != nil {
			return [32]byte{}, err
		}
	}
	return bhash.Hash256(buf.Bytes()), nil
}

func writeTxOut(buf *bytes.Buffer, out *wire.TxOut) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], uint64(out.Value))
	buf.Write(val[:])
	return writeVarBytes(buf, out.PkScript)
}

// writeVarBytes writes a compact-size length prefix followed by b, the same
// framing wire.MsgTx uses for script fields.
func writeVarBytes(buf *bytes.Buffer, b []byte) error {
	if err := wire.WriteVarInt(buf, uint64(len(b))); err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// WitnessV0 computes the BIP143 segwit v0 signature digest for input idx of
// tx: scriptCode is the witness scriptCode (the P2PKH-equivalent
// script for a P2WPKH spend, or the witness script itself for P2WSH), and
// amount is the spent output's value.
func WitnessV0(tx *wire.MsgTx, idx int, scriptCode []byte, amount int64, hashType Type) ([32]byte, error) {
	if idx < 0 || idx >= len(tx.TxIn) {
		return [32]byte{}, btcerr.Newf(btcerr.KindTransactionInput, "sighash input index %d out of range (%d inputs)", idx, len(tx.TxIn))
	}
	scriptCode, err := txscript.RemoveOpcode(scriptCode, txscript.OP_CODESEPARATOR)
	if err != nil {
		return [32]byte{}, err
	}

	var buf bytes.Buffer

	var ver [4]byte
	binary.LittleEndian.PutUint32(ver[:], uint32(tx.Version))
	buf.Write(ver[:])

	if hashType.HasAnyOneCanPay() {
		buf.Write(make([]byte, 32))
	} else {
		h := hashPrevouts(tx)
		buf.Write(h[:])
	}

	if !hashType.HasAnyOneCanPay() && hashType.Base() != Single && hashType.Base() != None {
		h := hashSequence(tx)
		buf.Write(h[:])
	} else {
		buf.Write(make([]byte, 32))
	}

	in := tx.TxIn[idx]
	buf.Write(in.PreviousOutPoint.Hash[:])
	var outIdx [4]byte
	binary.LittleEndian.PutUint32(outIdx[:], in.PreviousOutPoint.Index)
	buf.Write(outIdx[:])

	if err := writeVarBytes(&buf, scriptCode); err != nil {
		return [32]byte{}, err
	}

	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], uint64(amount))
	buf.Write(val[:])

	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], in.Sequence)
	buf.Write(seq[:])

	switch {
	case hashType.Base() == Single && idx < len(tx.TxOut):
		h, err := hashOutputs(&wire.MsgTx{TxOut: []*wire.TxOut{tx.TxOut[idx]}})
		if err != nil {
			return [32]byte{}, err
		}
		buf.Write(h[:])
	case hashType.Base() != Single && hashType.Base() != None:
		h, err := hashOutputs(tx)
		if err != nil {
			return [32]byte{}, err
		}
		buf.Write(h[:])
	default:
		buf.Write(make([]byte, 32))
	}

	var lt [4]byte
	binary.LittleEndian.PutUint32(lt[:], tx.LockTime)
	buf.Write(lt[:])

	var ht [4]byte
	binary.LittleEndian.PutUint32(ht[:], uint32(hashType))
	buf.Write(ht[:])

	return bhash.Hash256(buf.Bytes()), nil
}
