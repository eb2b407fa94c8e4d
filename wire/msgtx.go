// Package wire implements the Bitcoin transaction wire format: compact-size
// integers, the legacy and segwit-marker encodings, and txid/wtxid hashing.
// Free-list buffer pooling for P2P message deserialization is not carried
// over here since this package has no network layer to amortize
// allocations across.
package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// witnessMarker/witnessFlag are the two bytes that follow the version field
// in a segwit-encoded transaction, per BIP144.
const (
	witnessMarker = 0x00
	witnessFlag   = 0x01
)

// MaxTxSize bounds transaction size the deserializer will accept.
const MaxTxSize = 4_000_000

// Hash is a double-SHA256 digest stored in the wire's natural (internal)
// byte order; chainhash.Hash.String reverses it to the conventional
// big-endian display order transaction IDs are shown in.
type Hash = chainhash.Hash

// OutPoint identifies a specific output of a prior transaction.
type OutPoint struct {
	Hash  Hash
	Index uint32
}

// TxWitness is the stack of items satisfying a segwit input.
type TxWitness [][]byte

// TxIn is a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
	Witness          TxWitness
}

// NewTxIn returns a TxIn with the default (final) sequence number.
func NewTxIn(prevOut OutPoint, sigScript []byte) *TxIn {
	return &TxIn{PreviousOutPoint: prevOut, SignatureScript: sigScript, Sequence: MaxTxInSequenceNum}
}

// MaxTxInSequenceNum disables both the relative-locktime and
// opt-in-replace-by-fee interpretations of nSequence.
const MaxTxInSequenceNum = 0xffffffff

// SequenceLockTimeDisabled, when set on nSequence, disables BIP68
// relative-locktime semantics for that input regardless of the remaining
// bits.
const SequenceLockTimeDisabled = 1 << 31

// TxOut is a transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// NewTxOut returns a TxOut.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{Value: value, PkScript: pkScript}
}

// MsgTx is a Bitcoin transaction.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// NewMsgTx returns an empty transaction at the given version.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version}
}

// AddTxIn appends ti.
func (msg *MsgTx) AddTxIn(ti *TxIn) { msg.TxIn = append(msg.TxIn, ti) }

// AddTxOut appends to.
func (msg *MsgTx) AddTxOut(to *TxOut) { msg.TxOut = append(msg.TxOut, to) }

// HasWitness reports whether any input carries witness data.
func (msg *MsgTx) HasWitness() bool {
	for _, in := range msg.TxIn {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// Copy returns a deep copy of msg.
func (msg *MsgTx) Copy() *MsgTx {
	out := &MsgTx{Version: msg.Version, LockTime: msg.LockTime}
	for _, in := range msg.TxIn {
		ci := &TxIn{
			PreviousOutPoint: in.PreviousOutPoint,
			SignatureScript:  append([]byte{}, in.SignatureScript...),
			Sequence:         in.Sequence,
		}
		for _, w := range in.Witness {
			ci.Witness = append(ci.Witness, append([]byte{}, w...))
		}
		out.TxIn = append(out.TxIn, ci)
	}
	for _, o := range msg.TxOut {
		out.TxOut = append(out.TxOut, &TxOut{Value: o.Value, PkScript: append([]byte{}, o.PkScript...)})
	}
	return out
}

// Serialize encodes msg, including witness data (BIP144) when present.
func (msg *MsgTx) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.encode(&buf, msg.HasWitness()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeNoWitness encodes msg in the legacy, pre-BIP144 format
// regardless of whether it carries witness data; txid is always hash256 of
// this form.
func (msg *MsgTx) SerializeNoWitness() ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.encode(&buf, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msg *MsgTx) encode(w io.Writer, includeWitness bool) error {
	if err := writeUint32LE(w, uint32(msg.Version)); err != nil {
		return err
	}
	if includeWitness {
		if _, err := w.Write([]byte{witnessMarker, witnessFlag}); err != nil {
			return btcerr.Wrap(btcerr.KindTransaction, "write witness marker", err)
		}
	}
	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, in := range msg.TxIn {
		if err := writeTxIn(w, in); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, out := range msg.TxOut {
		if err := writeTxOut(w, out); err != nil {
			return err
		}
	}
	if includeWitness {
		for _, in := range msg.TxIn {
			if err := writeWitness(w, in.Witness); err != nil {
				return err
			}
		}
	}
	return writeUint32LE(w, msg.LockTime)
}

func writeTxIn(w io.Writer, in *TxIn) error {
	if _, err := w.Write(in.PreviousOutPoint.Hash[:]); err != nil {
		return btcerr.Wrap(btcerr.KindTransaction, "write outpoint hash", err)
	}
	if err := writeUint32LE(w, in.PreviousOutPoint.Index); err != nil {
		return err
	}
	if err := writeVarBytes(w, in.SignatureScript); err != nil {
		return err
	}
	return writeUint32LE(w, in.Sequence)
}

func writeTxOut(w io.Writer, out *TxOut) error {
	if err := writeUint64LE(w, uint64(out.Value)); err != nil {
		return err
	}
	return writeVarBytes(w, out.PkScript)
}

func writeWitness(w io.Writer, witness TxWitness) error {
	if err := WriteVarInt(w, uint64(len(witness))); err != nil {
		return err
	}
	for _, item := range witness {
		if err := writeVarBytes(w, item); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes a transaction from r, auto-detecting the BIP144
// witness marker.
func Deserialize(r io.Reader) (*MsgTx, error) {
	msg := &MsgTx{}

	version, err := readUint32LE(r)
	if err != nil {
		return nil, err
	}
	msg.Version = int32(version)

	var flagByte [1]byte
	segwit := false
	firstByte, err := readBytes(r, 1)
	if err != nil {
		return nil, err
	}
	numInputs := uint64(0)
	if firstByte[0] == witnessMarker {
		if _, err := io.ReadFull(r, flagByte[:]); err != nil {
			return nil, btcerr.Wrap(btcerr.KindTransaction, "read witness flag", err)
		}
		if flagByte[0] != witnessFlag {
			return nil, btcerr.New(btcerr.KindTransaction, nil)
		}
		segwit = true
		numInputs, err = ReadVarInt(r)
		if err != nil {
			return nil, err
		}
	} else {
		numInputs, err = readVarIntFromFirstByte(r, firstByte[0])
		if err != nil {
			return nil, err
		}
	}

	msg.TxIn = make([]*TxIn, numInputs)
	for i := range msg.TxIn {
		in, err := readTxIn(r)
		if err != nil {
			return nil, err
		}
		msg.TxIn[i] = in
	}

	numOutputs, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	msg.TxOut = make([]*TxOut, numOutputs)
	for i := range msg.TxOut {
		out, err := readTxOut(r)
		if err != nil {
			return nil, err
		}
		msg.TxOut[i] = out
	}

	if segwit {
		for _, in := range msg.TxIn {
			witness, err := readWitness(r)
			if err != nil {
				return nil, err
			}
			in.Witness = witness
		}
	}

	lockTime, err := readUint32LE(r)
	if err != nil {
		return nil, err
	}
	msg.LockTime = lockTime
	return msg, nil
}

func readTxIn(r io.Reader) (*TxIn, error) {
	hashBytes, err := readBytes(r, 32)
	if err != nil {
		return nil, btcerr.Wrap(btcerr.KindTransaction, "read outpoint hash", err)
	}
	index, err := readUint32LE(r)
	if err != nil {
		return nil, err
	}
	sigScript, err := readVarBytes(r)
	if err != nil {
		return nil, err
	}
	sequence, err := readUint32LE(r)
	if err != nil {
		return nil, err
	}
	in := &TxIn{SignatureScript: sigScript, Sequence: sequence}
	copy(in.PreviousOutPoint.Hash[:], hashBytes)
	in.PreviousOutPoint.Index = index
	return in, nil
}

func readTxOut(r io.Reader) (*TxOut, error) {
	value, err := readUint64LE(r)
	if err != nil {
		return nil, err
	}
	pkScript, err := readVarBytes(r)
	if err != nil {
		return nil, err
	}
	return &TxOut{Value: int64(value), PkScript: pkScript}, nil
}

func readWitness(r io.Reader) (TxWitness, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	witness := make(TxWitness, count)
	for i := range witness {
		item, err := readVarBytes(r)
		if err != nil {
			return nil, err
		}
		witness[i] = item
	}
	return witness, nil
}

// RBFSequence is the largest sequence number that opts a transaction into
// replace-by-fee under BIP125: any value below 0xfffffffe signals RBF
// opt-in, while 0xfffffffe itself keeps absolute locktime enforceable
// without signaling.
const RBFSequence = MaxTxInSequenceNum - 2

// SetRBF opts every input of msg into replace-by-fee (BIP125) by lowering
// any input sequence number currently at the maximum final value, leaving
// already-nonfinal sequence numbers (relative locktime, RBF already set)
// untouched.
func (msg *MsgTx) SetRBF() {
	for _, in := range msg.TxIn {
		if in.Sequence == MaxTxInSequenceNum {
			in.Sequence = RBFSequence
		}
	}
}

// HasRBF reports whether msg signals replace-by-fee opt-in per BIP125: any
// input sequence number below 0xfffffffe.
func (msg *MsgTx) HasRBF() bool {
	for _, in := range msg.TxIn {
		if in.Sequence < RBFSequence+1 {
			return true
		}
	}
	return false
}

// baseSize returns the size in bytes of msg serialized without witness
// data, used by the BIP141 weight formula.
func (msg *MsgTx) baseSize() (int, error) {
	raw, err := msg.SerializeNoWitness()
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// totalSize returns the size in bytes of msg serialized with witness data
// (identical to baseSize when msg carries none).
func (msg *MsgTx) totalSize() (int, error) {
	raw, err := msg.Serialize()
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Weight returns msg's BIP141 weight: base size weighted 4x plus the
// marginal bytes witness data and the marker/flag add at weight 1x.
func (msg *MsgTx) Weight() (int64, error) {
	base, err := msg.baseSize()
	if err != nil {
		return 0, err
	}
	total, err := msg.totalSize()
	if err != nil {
		return 0, err
	}
	return int64(base*3 + total), nil
}

// VirtualSize returns msg's virtual size in vbytes: weight divided by 4,
// rounded up, the size fee rates are conventionally quoted against.
func (msg *MsgTx) VirtualSize() (int64, error) {
	weight, err := msg.Weight()
	if err != nil {
		return 0, err
	}
	return (weight + 3) / 4, nil
}

// TxHash returns the txid: hash256 of the legacy (witness-stripped)
// serialization.
func (msg *MsgTx) TxHash() (Hash, error) {
	raw, err := msg.SerializeNoWitness()
	if err != nil {
		return Hash{}, err
	}
	return Hash(bhash.Hash256(raw)), nil
}

// WitnessHash returns the wtxid: hash256 of the full (witness-inclusive)
// serialization.
func (msg *MsgTx) WitnessHash() (Hash, error) {
	raw, err := msg.Serialize()
	if err != nil {
		return Hash{}, err
	}
	return Hash(bhash.Hash256(raw)), nil
}

func writeUint32LE(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return btcerr.Wrap(btcerr.KindTransaction, "write uint32", err)
	}
	return nil
}

func writeUint64LE(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return btcerr.Wrap(btcerr.KindTransaction, "write uint64", err)
	}
	return nil
}

func readUint32LE(r io.Reader) (uint32, error) {
	b, err := readBytes(r, 4)
	if err != nil {
		return 0, btcerr.Wrap(btcerr.KindTransaction, "read uint32", err)
	}
	return binary.LittleEndian.Uint32(b), nil
}

func readUint64LE(r io.Reader) (uint64, error) {
	b, err := readBytes(r, 8)
	if err != nil {
		return 0, btcerr.Wrap(btcerr.KindTransaction, "read uint64", err)
	}
	return binary.LittleEndian.Uint64(b), nil
}

func readBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return btcerr.Wrap(btcerr.KindTransaction, "write var bytes", err)
	}
	return nil
}

func readVarBytes(r io.Reader) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > MaxTxSize {
		return nil, btcerr.Newf(btcerr.KindTransaction, "var-length field of %d bytes exceeds max transaction size", n)
	}
	return readBytes(r, int(n))
}

// WriteVarInt writes n as a Bitcoin compact-size integer.
func WriteVarInt(w io.Writer, n uint64) error {
	switch {
	case n < 0xfd:
		_, err := w.Write([]byte{byte(n)})
		return wrapVarIntErr(err)
	case n <= 0xffff:
		var b [3]byte
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(n))
		_, err := w.Write(b[:])
		return wrapVarIntErr(err)
	case n <= 0xffffffff:
		var b [5]byte
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], uint32(n))
		_, err := w.Write(b[:])
		return wrapVarIntErr(err)
	default:
		var b [9]byte
		b[0] = 0xff
		binary.LittleEndian.PutUint64(b[1:], n)
		_, err := w.Write(b[:])
		return wrapVarIntErr(err)
	}
}

func wrapVarIntErr(err error) error {
	if err == nil {
		return nil
	}
	return btcerr.Wrap(btcerr.KindTransaction, "write varint", err)
}

// ReadVarInt reads a Bitcoin compact-size integer.
func ReadVarInt(r io.Reader) (uint64, error) {
	first, err := readBytes(r, 1)
	if err != nil {
		return 0, btcerr.Wrap(btcerr.KindTransaction, "read varint", err)
	}
	return readVarIntFromFirstByte(r, first[0])
}

func readVarIntFromFirstByte(r io.Reader, first byte) (uint64, error) {
	switch first {
	case 0xfd:
		b, err := readBytes(r, 2)
		if err != nil {
			return 0, btcerr.Wrap(btcerr.KindTransaction, "read varint", err)
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 0xfe:
		b, err := readBytes(r, 4)
		if err != nil {
			return 0, btcerr.Wrap(btcerr.KindTransaction, "read varint", err)
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 0xff:
		b, err := readBytes(r, 8)
		if err != nil {
			return 0, btcerr.Wrap(btcerr.KindTransaction, "read varint", err)
		}
		return binary.LittleEndian.Uint64(b), nil
	default:
		return uint64(first), nil
	}
}
