// Package txverify implements whole-transaction verification: per-input
// script execution dispatch across the standard output
// templates (bare, P2SH, P2WPKH, P2WSH, P2SH-wrapped segwit), absolute and
// BIP68 relative locktime enforcement, and input/output amount
// conservation. It is the consumer that gives txscript.Checker a concrete,
// transaction-aware implementation.
package txverify

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/olehkaliuzhnyi/btcprim/btcerr"
	"github.com/olehkaliuzhnyi/btcprim/ecc"
	"github.com/olehkaliuzhnyi/btcprim/sighash"
	"github.com/olehkaliuzhnyi/btcprim/txscript"
	"github.com/olehkaliuzhnyi/btcprim/utxo"
	"github.com/olehkaliuzhnyi/btcprim/wire"
)

const (
	locktimeThreshold           = 500000000
	sequenceLockTimeTypeFlag    = 1 << 22
	sequenceLockTimeMask        = 0x0000ffff
	sequenceLockTimeGranularity = 512 // seconds per unit of a time-based relative lock
)

// Options configures a Verify call.
type Options struct {
	// Current is the block height/median-time-past the transaction is being
	// evaluated against, used for absolute and relative locktime checks. A
	// nil Current skips both (useful for structural-only checks of a
	// not-yet-mined transaction).
	Current *utxo.BlockRef
}

// Verify checks tx against registry: every input's script executes
// successfully against its claimed UTXO, absolute and relative locktimes
// are satisfied, and total input value is not less than total output value.
func Verify(tx *wire.MsgTx, registry *utxo.Registry, opts Options) error {
	if len(tx.TxIn) == 0 {
		return btcerr.New(btcerr.KindTransaction, nil)
	}

	var totalIn int64
	prevOuts := make([]*utxo.Output, len(tx.TxIn))
	for i, in := range tx.TxIn {
		out, err := registry.Lookup(in.PreviousOutPoint)
		if err != nil {
			return err
		}
		prevOuts[i] = out
		totalIn += out.Value
	}

	for i := range tx.TxIn {
		if err := verifyInput(tx, i, prevOuts[i]); err != nil {
			return btcerr.Wrap(btcerr.KindTransactionScript, contextLabel(i), err)
		}
	}

	var totalOut int64
	for _, out := range tx.TxOut {
		totalOut += out.Value
	}
	if totalOut > totalIn {
		return btcerr.Newf(btcerr.KindTransaction, "outputs (%d) exceed inputs (%d)", totalOut, totalIn)
	}

	if err := verifyAbsoluteLockTime(tx, opts.Current); err != nil {
		return err
	}
	return verifyRelativeLockTimes(tx, prevOuts, opts.Current)
}

func contextLabel(idx int) string {
	return fmt.Sprintf("input %d", idx)
}

func verifyInput(tx *wire.MsgTx, idx int, out *utxo.Output) error {
	class := txscript.ClassifyScript(out.LockingScript)
	in := tx.TxIn[idx]

	switch class {
	case txscript.WitnessV0PubKeyHash, txscript.WitnessV0ScriptHash:
		if len(in.SignatureScript) != 0 {
			return btcerr.New(btcerr.KindTransactionScript, nil)
		}
		_, program, _ := txscript.ExtractWitnessProgram(out.LockingScript)
		return verifySegwitV0(tx, idx, out.Value, program, in.Witness)

	case txscript.ScriptHash:
		return verifyP2SH(tx, idx, out)

	default:
		return verifyLegacy(tx, idx, out.LockingScript, out.Value)
	}
}

// verifyLegacy executes a non-segwit, non-P2SH input: the signature script
// (push-only) seeds the stack the locking script then runs against.
func verifyLegacy(tx *wire.MsgTx, idx int, lockingScript []byte, value int64) error {
	sigOps, err := txscript.ParseScript(tx.TxIn[idx].SignatureScript)
	if err != nil {
		return err
	}
	if !txscript.IsPushOnly(sigOps) {
		return btcerr.New(btcerr.KindTransactionScript, nil)
	}

	checker := &sigChecker{tx: tx, idx: idx, scriptCode: lockingScript, value: value, segwit: false}
	engine := txscript.NewEngine(checker)
	if err := engine.Execute(tx.TxIn[idx].SignatureScript); err != nil {
		return btcerr.Wrap(btcerr.KindTransactionScript, "signature script", err)
	}
	if err := engine.Execute(lockingScript); err != nil {
		return btcerr.Wrap(btcerr.KindTransactionScript, "locking script", err)
	}
	if !engine.Success() {
		return btcerr.Newf(btcerr.KindTransactionScript, "locking script")
	}
	return nil
}

// verifyP2SH executes the signature script, confirms it pushed the redeem
// script matching the output's script hash, then continues execution
// either into the redeem script directly or, if the redeem script is
// itself a native segwit program, into the segwit dispatch.
func verifyP2SH(tx *wire.MsgTx, idx int, out *utxo.Output) error {
	in := tx.TxIn[idx]
	sigOps, err := txscript.ParseScript(in.SignatureScript)
	if err != nil {
		return err
	}
	if !txscript.IsPushOnly(sigOps) {
		return btcerr.New(btcerr.KindTransactionScript, nil)
	}

	checker := &sigChecker{tx: tx, idx: idx, value: out.Value, segwit: false}
	engine := txscript.NewEngine(checker)
	if err := engine.Execute(in.SignatureScript); err != nil {
		return err
	}

	stack := engine.Stack()
	if len(stack) == 0 {
		return btcerr.New(btcerr.KindTransactionScript, nil)
	}
	redeem := stack[len(stack)-1]

	checkEngine := txscript.NewEngine(checker)
	checkEngine.PushStack(append([][]byte{}, stack...)...)
	if err := checkEngine.Execute(out.LockingScript); err != nil {
		return btcerr.Wrap(btcerr.KindTransactionScript, "locking script", err)
	}
	if !checkEngine.Success() {
		return btcerr.Newf(btcerr.KindTransactionScript, "locking script")
	}

	remaining := stack[:len(stack)-1]

	if version, program, ok := txscript.ExtractWitnessProgram(redeem); ok {
		if len(remaining) != 0 {
			return btcerr.New(btcerr.KindTransactionScript, nil)
		}
		if version != 0 {
			return btcerr.Newf(btcerr.KindTransactionScript, "taproot key-path verification is out of scope")
		}
		return verifySegwitV0(tx, idx, out.Value, program, in.Witness)
	}

	checker.scriptCode = redeem
	redeemEngine := txscript.NewEngine(checker)
	redeemEngine.PushStack(remaining...)
	if err := redeemEngine.Execute(redeem); err != nil {
		return btcerr.Wrap(btcerr.KindTransactionScript, "redeem script", err)
	}
	if !redeemEngine.Success() {
		return btcerr.Newf(btcerr.KindTransactionScript, "redeem script")
	}
	return nil
}

// verifySegwitV0 dispatches a native segwit v0 program (P2WPKH for a
// 20-byte program, P2WSH for a 32-byte program), seeding the engine's stack
// with the witness items.
func verifySegwitV0(tx *wire.MsgTx, idx int, value int64, program []byte, witness wire.TxWitness) error {
	switch len(program) {
	case 20:
		script, err := txscript.PayToPubKeyHashScript(program)
		if err != nil {
			return err
		}
		checker := &sigChecker{tx: tx, idx: idx, scriptCode: script, value: value, segwit: true}
		engine := txscript.NewEngine(checker)
		engine.PushStack(witness...)
		if err := engine.Execute(script); err != nil {
			return btcerr.Wrap(btcerr.KindTransactionScript, "segwit locking script", err)
		}
		if !engine.Success() {
			return btcerr.Newf(btcerr.KindTransactionScript, "segwit locking script")
		}
		return nil

	case 32:
		if len(witness) == 0 {
			return btcerr.New(btcerr.KindTransactionScript, nil)
		}
		witnessScript := witness[len(witness)-1]
		sum := sha256.Sum256(witnessScript)
		if !bytes.Equal(sum[:], program) {
			return btcerr.New(btcerr.KindTransactionScript, nil)
		}
		checker := &sigChecker{tx: tx, idx: idx, scriptCode: witnessScript, value: value, segwit: true}
		engine := txscript.NewEngine(checker)
		engine.PushStack(witness[:len(witness)-1]...)
		if err := engine.Execute(witnessScript); err != nil {
			return btcerr.Wrap(btcerr.KindTransactionScript, "segwit redeem script", err)
		}
		if !engine.Success() {
			return btcerr.Newf(btcerr.KindTransactionScript, "segwit redeem script")
		}
		return nil

	default:
		return btcerr.Newf(btcerr.KindSegwitProgram, "unsupported witness program length %d", len(program))
	}
}

// sigChecker implements txscript.Checker for a single input, binding the
// scriptCode/value context a CHECKSIG inside that script's execution needs
// to rebuild the correct digest.
type sigChecker struct {
	tx         *wire.MsgTx
	idx        int
	scriptCode []byte
	value      int64
	segwit     bool
}

func (c *sigChecker) CheckSig(sig, pubKeyBytes []byte) (bool, error) {
	if len(sig) < 1 {
		return false, nil
	}
	hashType := sighash.Type(sig[len(sig)-1])
	der := sig[:len(sig)-1]

	var digest [32]byte
	var err error
	if c.segwit {
		digest, err = sighash.WitnessV0(c.tx, c.idx, c.scriptCode, c.value, hashType)
	} else {
		digest, err = sighash.Legacy(c.tx, c.idx, c.scriptCode, hashType)
	}
	if err != nil {
		return false, err
	}

	pub, err := ecc.ParsePublicKey(pubKeyBytes)
	if err != nil {
		return false, nil
	}
	return pub.Verify(digest[:], der)
}

func (c *sigChecker) CheckLockTime(n int64) bool {
	if c.tx.TxIn[c.idx].Sequence == wire.MaxTxInSequenceNum {
		return false
	}
	txLock := int64(c.tx.LockTime)
	if (n < locktimeThreshold) != (txLock < locktimeThreshold) {
		return false
	}
	return n <= txLock
}

func (c *sigChecker) CheckSequence(n int64) bool {
	if c.tx.Version < 2 {
		return false
	}
	sequence := int64(c.tx.TxIn[c.idx].Sequence)
	if sequence&wire.SequenceLockTimeDisabled != 0 {
		return false
	}
	if n&wire.SequenceLockTimeDisabled != 0 {
		return true
	}
	seqMasked := sequence & (sequenceLockTimeTypeFlag | sequenceLockTimeMask)
	nMasked := n & (sequenceLockTimeTypeFlag | sequenceLockTimeMask)
	if (seqMasked & sequenceLockTimeTypeFlag) != (nMasked & sequenceLockTimeTypeFlag) {
		return false
	}
	return nMasked <= seqMasked
}

func verifyAbsoluteLockTime(tx *wire.MsgTx, current *utxo.BlockRef) error {
	if tx.LockTime == 0 {
		return nil
	}
	allFinal := true
	for _, in := range tx.TxIn {
		if in.Sequence != wire.MaxTxInSequenceNum {
			allFinal = false
			break
		}
	}
	if allFinal {
		return nil
	}
	if current == nil {
		slog.Default().With("component", "txverify").
			Warn("locktime set but no current block supplied, skipping absolute locktime check", "locktime", tx.LockTime)
		return nil
	}
	if tx.LockTime < locktimeThreshold {
		if current.Height < int64(tx.LockTime) {
			return btcerr.Newf(btcerr.KindTransaction, "locktime height %d not yet reached (current height %d)", tx.LockTime, current.Height)
		}
		return nil
	}
	if current.MedianTimePast < int64(tx.LockTime) {
		return btcerr.Newf(btcerr.KindTransaction, "locktime timestamp %d not yet reached (current mtp %d)", tx.LockTime, current.MedianTimePast)
	}
	return nil
}

func verifyRelativeLockTimes(tx *wire.MsgTx, prevOuts []*utxo.Output, current *utxo.BlockRef) error {
	if tx.Version < 2 || current == nil {
		return nil
	}
	for i, in := range tx.TxIn {
		if in.Sequence&wire.SequenceLockTimeDisabled != 0 {
			continue
		}
		confirmed := prevOuts[i].Confirmed
		if confirmed == nil {
			return btcerr.Newf(btcerr.KindTransactionInput, "input %d: relative locktime requires a confirmed utxo", i)
		}
		if in.Sequence&sequenceLockTimeTypeFlag != 0 {
			required := confirmed.MedianTimePast + int64(in.Sequence&sequenceLockTimeMask)*sequenceLockTimeGranularity
			if current.MedianTimePast < required {
				return btcerr.Newf(btcerr.KindTransactionInput, "input %d: relative time lock not satisfied", i)
			}
		} else {
			required := confirmed.Height + int64(in.Sequence&sequenceLockTimeMask)
			if current.Height < required {
				return btcerr.Newf(btcerr.KindTransactionInput, "input %d: relative height lock not satisfied", i)
			}
		}
	}
	return nil
}
