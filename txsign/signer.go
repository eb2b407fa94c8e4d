// Package txsign implements per-input automatic transaction signing: given
// a private key and an input's resolved UTXO, it computes the
// correct sighash digest for that output's template, signs it deterministically
// (RFC 6979, via ecc.PrivateKey.Sign), and writes the resulting signature
// script or witness back onto the input, dispatching per-template (one
// unlocking-script builder per address type). Partial multisig signatures
// are spliced into the correct pubkey-ordered slot by verifying each existing
// signature against the script's pubkey list, since an ECDSA signature does
// not itself record which key produced it.
package txsign

import (
	"bytes"

	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
	"github.com/olehkaliuzhnyi/btcprim/ecc"
	"github.com/olehkaliuzhnyi/btcprim/sighash"
	"github.com/olehkaliuzhnyi/btcprim/txscript"
	"github.com/olehkaliuzhnyi/btcprim/utxo"
	"github.com/olehkaliuzhnyi/btcprim/wire"
)

// Options configures a single Sign call.
type Options struct {
	// SigHash selects the SIGHASH type/flags; the zero value is treated as
	// sighash.All.
	SigHash sighash.Type
	// Uncompressed selects the uncompressed public key serialization for
	// templates that embed a fresh pubkey (P2PKH, P2SH-wrapped P2WPKH);
	// native P2WPKH signing fails with KindKeyCreate when it is set.
	// compressed=true is the zero value here.
	Uncompressed bool
	// RedeemScript is required when signing a P2SH input: the script whose
	// hash160 matches the output's locking script.
	RedeemScript []byte
	// WitnessScript is required when signing a native P2WSH input, or a
	// P2SH input wrapping a native P2WSH program: the script whose sha256
	// matches the witness program.
	WitnessScript []byte
}

func effectiveHashType(opts Options) sighash.Type {
	if opts.SigHash == 0 {
		return sighash.All
	}
	return opts.SigHash
}

func pubKeyBytes(priv *ecc.PrivateKey, uncompressed bool) []byte {
	if uncompressed {
		return priv.PubKey().SerializeUncompressed()
	}
	return priv.PubKey().SerializeCompressed()
}

// Sign computes the digest for input idx of tx against spent, signs it with
// priv, and writes the resulting signature script and/or witness onto
// tx.TxIn[idx], dispatching on spent.LockingScript's standard template
// Signing an already partially-signed multisig input (same idx,
// same priv or a different co-signer's priv) splices the new signature into
// the slot matching priv's public key, preserving any signatures already
// present.
func Sign(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, spent *utxo.Output, opts Options) error {
	if idx < 0 || idx >= len(tx.TxIn) {
		return btcerr.Newf(btcerr.KindTransactionInput, "sign input index %d out of range (%d inputs)", idx, len(tx.TxIn))
	}
	hashType := effectiveHashType(opts)
	class := txscript.ClassifyScript(spent.LockingScript)

	switch class {
	case txscript.PubKeyHash:
		return signP2PKH(tx, idx, priv, spent.LockingScript, hashType, opts.Uncompressed)
	case txscript.PubKey:
		return signP2PK(tx, idx, priv, spent.LockingScript, hashType)
	case txscript.MultiSig:
		return signLegacyMultisig(tx, idx, priv, spent.LockingScript, spent.LockingScript, nil, hashType)
	case txscript.ScriptHash:
		return signP2SH(tx, idx, priv, spent, opts, hashType)
	case txscript.WitnessV0PubKeyHash:
		return signP2WPKH(tx, idx, priv, spent.Value, hashType, opts.Uncompressed)
	case txscript.WitnessV0ScriptHash:
		if opts.WitnessScript == nil {
			return btcerr.New(btcerr.KindTransactionScript, nil)
		}
		return signP2WSH(tx, idx, priv, spent.Value, opts.WitnessScript, hashType)
	case txscript.WitnessV1Taproot:
		return btcerr.Newf(btcerr.KindSign, "taproot key-path signing requires BIP340 Schnorr, not implemented by ecc")
	default:
		return btcerr.Newf(btcerr.KindTransactionScript, "cannot sign unrecognized locking script template")
	}
}

func signP2PKH(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, lockingScript []byte, hashType sighash.Type, uncompressed bool) error {
	digest, err := sighash.Legacy(tx, idx, lockingScript, hashType)
	if err != nil {
		return err
	}
	sig, err := signDigest(priv, digest, hashType)
	if err != nil {
		return err
	}
	script, err := txscript.NewBuilder().
		AddData(sig).
		AddData(pubKeyBytes(priv, uncompressed)).
		Script()
	if err != nil {
		return err
	}
	tx.TxIn[idx].SignatureScript = script
	return nil
}

func signP2PK(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, lockingScript []byte, hashType sighash.Type) error {
	digest, err := sighash.Legacy(tx, idx, lockingScript, hashType)
	if err != nil {
		return err
	}
	sig, err := signDigest(priv, digest, hashType)
	if err != nil {
		return err
	}
	script, err := txscript.NewBuilder().AddData(sig).Script()
	if err != nil {
		return err
	}
	tx.TxIn[idx].SignatureScript = script
	return nil
}

func signP2WPKH(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, value int64, hashType sighash.Type, uncompressed bool) error {
	pkHash, err := witnessPubKeyHash(priv, uncompressed)
	if err != nil {
		return err
	}
	scriptCode, err := txscript.PayToPubKeyHashScript(pkHash)
	if err != nil {
		return err
	}
	digest, err := sighash.WitnessV0(tx, idx, scriptCode, value, hashType)
	if err != nil {
		return err
	}
	sig, err := signDigest(priv, digest, hashType)
	if err != nil {
		return err
	}
	tx.TxIn[idx].SignatureScript = nil
	tx.TxIn[idx].Witness = wire.TxWitness{sig, pubKeyBytes(priv, uncompressed)}
	return nil
}

func signP2WSH(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, value int64, witnessScript []byte, hashType sighash.Type) error {
	items, err := buildWitnessScriptItems(tx, idx, priv, witnessScript, value, hashType)
	if err != nil {
		return err
	}
	tx.TxIn[idx].SignatureScript = nil
	tx.TxIn[idx].Witness = append(items, witnessScript)
	return nil
}

// signP2SH signs a P2SH input, dispatching further on the shape of
// opts.RedeemScript: a native segwit program nests into the witness
// dispatch (P2SH-wrapped segwit, BIP49-style), otherwise the redeem script
// is executed directly (e.g. legacy multisig-in-P2SH).
func signP2SH(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, spent *utxo.Output, opts Options, hashType sighash.Type) error {
	redeem := opts.RedeemScript
	if redeem == nil {
		return btcerr.New(btcerr.KindTransactionScript, nil)
	}

	if version, program, ok := txscript.ExtractWitnessProgram(redeem); ok {
		switch version {
		case 0:
			switch len(program) {
			case 20:
				scriptCode, err := txscript.PayToPubKeyHashScript(program)
				if err != nil {
					return err
				}
				digest, err := sighash.WitnessV0(tx, idx, scriptCode, spent.Value, hashType)
				if err != nil {
					return err
				}
				sig, err := signDigest(priv, digest, hashType)
				if err != nil {
					return err
				}
				pushRedeem, err := txscript.NewBuilder().AddData(redeem).Script()
				if err != nil {
					return err
				}
				tx.TxIn[idx].SignatureScript = pushRedeem
				tx.TxIn[idx].Witness = wire.TxWitness{sig, pubKeyBytes(priv, opts.Uncompressed)}
				return nil
			case 32:
				if opts.WitnessScript == nil {
					return btcerr.New(btcerr.KindTransactionScript, nil)
				}
				items, err := buildWitnessScriptItems(tx, idx, priv, opts.WitnessScript, spent.Value, hashType)
				if err != nil {
					return err
				}
				pushRedeem, err := txscript.NewBuilder().AddData(redeem).Script()
				if err != nil {
					return err
				}
				tx.TxIn[idx].SignatureScript = pushRedeem
				tx.TxIn[idx].Witness = append(items, opts.WitnessScript)
				return nil
			}
		}
		return btcerr.Newf(btcerr.KindTransactionScript, "unsupported nested witness program version %d", version)
	}

	class := txscript.ClassifyScript(redeem)
	switch class {
	case txscript.MultiSig:
		return signLegacyMultisig(tx, idx, priv, redeem, redeem, redeem, hashType)
	case txscript.PubKeyHash:
		digest, err := sighash.Legacy(tx, idx, redeem, hashType)
		if err != nil {
			return err
		}
		sig, err := signDigest(priv, digest, hashType)
		if err != nil {
			return err
		}
		script, err := txscript.NewBuilder().
			AddData(sig).AddData(pubKeyBytes(priv, opts.Uncompressed)).AddData(redeem).Script()
		if err != nil {
			return err
		}
		tx.TxIn[idx].SignatureScript = script
		return nil
	case txscript.PubKey:
		digest, err := sighash.Legacy(tx, idx, redeem, hashType)
		if err != nil {
			return err
		}
		sig, err := signDigest(priv, digest, hashType)
		if err != nil {
			return err
		}
		script, err := txscript.NewBuilder().AddData(sig).AddData(redeem).Script()
		if err != nil {
			return err
		}
		tx.TxIn[idx].SignatureScript = script
		return nil
	default:
		return btcerr.Newf(btcerr.KindTransactionScript, "unsupported P2SH redeem script template")
	}
}

// signLegacyMultisig signs (or re-signs alongside existing co-signers) a
// bare or P2SH-wrapped CHECKMULTISIG script, splicing the new signature
// into the slot matching priv's public key and rebuilding
// tx.TxIn[idx].SignatureScript as OP_0 <sigs in pubkey order> [<redeemPush>].
// redeemPush is nil for a bare multisig output (no separate redeem script to
// re-push) and the P2SH redeem script bytes when wrapped.
func signLegacyMultisig(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, scriptCode, multisigTemplate []byte, redeemPush []byte, hashType sighash.Type) error {
	pubkeys, err := multisigPubKeys(multisigTemplate)
	if err != nil {
		return err
	}
	digest, err := sighash.Legacy(tx, idx, scriptCode, hashType)
	if err != nil {
		return err
	}
	newSig, err := signDigest(priv, digest, hashType)
	if err != nil {
		return err
	}

	existingSigScript := tx.TxIn[idx].SignatureScript
	var existingPushes [][]byte
	if len(existingSigScript) > 0 {
		ops, err := txscript.ParseScript(existingSigScript)
		if err != nil {
			return err
		}
		if redeemPush != nil && len(ops) > 0 && bytes.Equal(txscript.DisassembleDataPush(ops[len(ops)-1]), redeemPush) {
			ops = ops[:len(ops)-1]
		}
		existingPushes = existingSigScriptPushes(ops)
	}

	slots, err := assignMultisigSlots(pubkeys, existingPushes, func(sig []byte) ([32]byte, error) {
		ht := sighash.Type(sig[len(sig)-1])
		return sighash.Legacy(tx, idx, scriptCode, ht)
	})
	if err != nil {
		return err
	}
	if err := placeOwnSignature(slots, pubkeys, priv, newSig); err != nil {
		return err
	}

	b := txscript.NewBuilder().AddData(nil)
	for _, s := range slots {
		if s != nil {
			b = b.AddData(s)
		}
	}
	if redeemPush != nil {
		b = b.AddData(redeemPush)
	}
	script, err := b.Script()
	if err != nil {
		return err
	}
	tx.TxIn[idx].SignatureScript = script
	return nil
}

// buildWitnessScriptItems signs witnessScript (a P2WSH script, bare or
// P2SH-nested) and returns the witness stack items that precede the
// trailing witnessScript push: [<sig>] for a P2PK-style script,
// [<sig> <compressed pubkey>] for a P2PKH-style script, or
// [<empty> <sigs...>] for CHECKMULTISIG.
func buildWitnessScriptItems(tx *wire.MsgTx, idx int, priv *ecc.PrivateKey, witnessScript []byte, value int64, hashType sighash.Type) (wire.TxWitness, error) {
	class := txscript.ClassifyScript(witnessScript)
	switch class {
	case txscript.MultiSig:
		pubkeys, err := multisigPubKeys(witnessScript)
		if err != nil {
			return nil, err
		}
		digest, err := sighash.WitnessV0(tx, idx, witnessScript, value, hashType)
		if err != nil {
			return nil, err
		}
		newSig, err := signDigest(priv, digest, hashType)
		if err != nil {
			return nil, err
		}
		existing := tx.TxIn[idx].Witness
		var existingPushes [][]byte
		if len(existing) > 1 {
			existingPushes = existing[1 : len(existing)-1]
		}
		slots, err := assignMultisigSlots(pubkeys, existingPushes, func(sig []byte) ([32]byte, error) {
			ht := sighash.Type(sig[len(sig)-1])
			return sighash.WitnessV0(tx, idx, witnessScript, value, ht)
		})
		if err != nil {
			return nil, err
		}
		if err := placeOwnSignature(slots, pubkeys, priv, newSig); err != nil {
			return nil, err
		}
		items := wire.TxWitness{{}}
		for _, s := range slots {
			if s != nil {
				items = append(items, s)
			}
		}
		return items, nil

	case txscript.PubKeyHash:
		ops, err := txscript.ParseScript(witnessScript)
		if err != nil || len(ops) != 5 {
			return nil, btcerr.New(btcerr.KindTransactionScript, nil)
		}
		digest, err := sighash.WitnessV0(tx, idx, witnessScript, value, hashType)
		if err != nil {
			return nil, err
		}
		sig, err := signDigest(priv, digest, hashType)
		if err != nil {
			return nil, err
		}
		return wire.TxWitness{sig, priv.PubKey().SerializeCompressed()}, nil

	case txscript.PubKey:
		digest, err := sighash.WitnessV0(tx, idx, witnessScript, value, hashType)
		if err != nil {
			return nil, err
		}
		sig, err := signDigest(priv, digest, hashType)
		if err != nil {
			return nil, err
		}
		return wire.TxWitness{sig}, nil

	default:
		return nil, btcerr.Newf(btcerr.KindTransactionScript, "unsupported witness script template")
	}
}

func witnessPubKeyHash(priv *ecc.PrivateKey, uncompressed bool) ([]byte, error) {
	if uncompressed {
		return nil, btcerr.Newf(btcerr.KindKeyCreate, "P2WPKH requires a compressed public key")
	}
	h := bhash.Hash160(priv.PubKey().SerializeCompressed())
	return h[:], nil
}

func signDigest(priv *ecc.PrivateKey, digest [32]byte, hashType sighash.Type) ([]byte, error) {
	der, err := priv.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return append(der, byte(hashType)), nil
}

// existingSigScriptPushes returns every data push in ops whose decoded
// value is non-empty, i.e. every signature already present, skipping the
// OP_0 CHECKMULTISIG-bug placeholder (which decodes to an empty push).
func existingSigScriptPushes(ops []txscript.ParsedOp) [][]byte {
	var out [][]byte
	for _, op := range ops {
		d := txscript.DisassembleDataPush(op)
		if len(d) == 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// multisigPubKeys parses a OP_m <pk>{n} OP_n OP_CHECKMULTISIG template and
// returns its pubkeys in script order.
func multisigPubKeys(script []byte) ([][]byte, error) {
	ops, err := txscript.ParseScript(script)
	if err != nil {
		return nil, err
	}
	l := len(ops)
	if l < 4 || !txscript.IsSmallInt(ops[0].Opcode) || !txscript.IsSmallInt(ops[l-2].Opcode) || ops[l-1].Opcode != txscript.OP_CHECKMULTISIG {
		return nil, btcerr.New(btcerr.KindTransactionScript, nil)
	}
	var pubkeys [][]byte
	for _, op := range ops[1 : l-2] {
		pubkeys = append(pubkeys, op.Data)
	}
	return pubkeys, nil
}

// assignMultisigSlots matches every already-collected signature to the
// pubkey it verifies against, trying each pubkey not yet claimed in script
// order; digestFor recomputes the sighash digest appropriate to that
// signature's own trailing hashtype byte.
func assignMultisigSlots(pubkeys [][]byte, existing [][]byte, digestFor func(sig []byte) ([32]byte, error)) ([][]byte, error) {
	slots := make([][]byte, len(pubkeys))
	for _, sig := range existing {
		if len(sig) < 1 {
			continue
		}
		digest, err := digestFor(sig)
		if err != nil {
			return nil, err
		}
		der := sig[:len(sig)-1]
		for i, pk := range pubkeys {
			if slots[i] != nil {
				continue
			}
			pub, perr := ecc.ParsePublicKey(pk)
			if perr != nil {
				continue
			}
			ok, verr := pub.Verify(digest[:], der)
			if verr == nil && ok {
				slots[i] = sig
				break
			}
		}
	}
	return slots, nil
}

// placeOwnSignature writes newSig into the slot matching priv's own public
// key (tried compressed then uncompressed), failing if priv does not
// co-sign this multisig script at all.
func placeOwnSignature(slots [][]byte, pubkeys [][]byte, priv *ecc.PrivateKey, newSig []byte) error {
	compressed := priv.PubKey().SerializeCompressed()
	uncompressed := priv.PubKey().SerializeUncompressed()
	for i, pk := range pubkeys {
		if bytes.Equal(pk, compressed) || bytes.Equal(pk, uncompressed) {
			slots[i] = newSig
			return nil
		}
	}
	return btcerr.New(btcerr.KindSign, nil)
}
