package txscript

import "github.com/olehkaliuzhnyi/btcprim/btcerr"

// MaxDataCarrierSize is the maximum number of bytes allowed in an
// OP_RETURN data push for the script to classify as NullData.
const MaxDataCarrierSize = 80

// Class identifies a recognized output script template.
type Class int

const (
	NonStandard Class = iota
	PubKey
	PubKeyHash
	ScriptHash
	WitnessV0PubKeyHash
	WitnessV0ScriptHash
	WitnessV1Taproot
	MultiSig
	NullData
)

var className = map[Class]string{
	NonStandard:         "nonstandard",
	PubKey:              "pubkey",
	PubKeyHash:          "pubkeyhash",
	ScriptHash:          "scripthash",
	WitnessV0PubKeyHash: "witness_v0_keyhash",
	WitnessV0ScriptHash: "witness_v0_scripthash",
	WitnessV1Taproot:    "witness_v1_taproot",
	MultiSig:            "multisig",
	NullData:            "nulldata",
}

func (c Class) String() string {
	if name, ok := className[c]; ok {
		return name
	}
	return "invalid"
}

func isPubKey(ops []ParsedOp) bool {
	return len(ops) == 2 &&
		(len(ops[0].Data) == 33 || len(ops[0].Data) == 65) &&
		ops[1].Opcode == OP_CHECKSIG
}

func isPubKeyHash(ops []ParsedOp) bool {
	return len(ops) == 5 &&
		ops[0].Opcode == OP_DUP &&
		ops[1].Opcode == OP_HASH160 &&
		ops[2].Opcode == 20 && len(ops[2].Data) == 20 &&
		ops[3].Opcode == OP_EQUALVERIFY &&
		ops[4].Opcode == OP_CHECKSIG
}

func isScriptHash(ops []ParsedOp) bool {
	return len(ops) == 3 &&
		ops[0].Opcode == OP_HASH160 &&
		ops[1].Opcode == 20 && len(ops[1].Data) == 20 &&
		ops[2].Opcode == OP_EQUAL
}

func isWitnessPubKeyHash(ops []ParsedOp) bool {
	return len(ops) == 2 && ops[0].Opcode == OP_0 &&
		ops[1].Opcode == 20 && len(ops[1].Data) == 20
}

func isWitnessScriptHash(ops []ParsedOp) bool {
	return len(ops) == 2 && ops[0].Opcode == OP_0 &&
		ops[1].Opcode == 32 && len(ops[1].Data) == 32
}

func isWitnessTaproot(ops []ParsedOp) bool {
	return len(ops) == 2 && ops[0].Opcode == OP_1 &&
		ops[1].Opcode == 32 && len(ops[1].Data) == 32
}

func isMultiSig(ops []ParsedOp) bool {
	l := len(ops)
	if l < 4 {
		return false
	}
	if !IsSmallInt(ops[0].Opcode) || !IsSmallInt(ops[l-2].Opcode) {
		return false
	}
	if ops[l-1].Opcode != OP_CHECKMULTISIG {
		return false
	}
	m := AsSmallInt(ops[0].Opcode)
	n := AsSmallInt(ops[l-2].Opcode)
	if m < 1 || m > n {
		return false
	}
	if l-3 != n {
		return false
	}
	for _, op := range ops[1 : l-2] {
		if len(op.Data) != 33 && len(op.Data) != 65 {
			return false
		}
	}
	return true
}

func isNullData(ops []ParsedOp) bool {
	if len(ops) == 0 || ops[0].Opcode != OP_RETURN {
		return false
	}
	for _, op := range ops[1:] {
		if !op.IsPush() || len(op.Data) > MaxDataCarrierSize {
			return false
		}
	}
	return true
}

// ClassifyScript returns the standard template a script matches, or
// NonStandard if it recognizes none of them. Scripts that fail to parse
// also classify as NonStandard.
func ClassifyScript(script []byte) Class {
	ops, err := ParseScript(script)
	if err != nil {
		return NonStandard
	}
	switch {
	case isPubKey(ops):
		return PubKey
	case isPubKeyHash(ops):
		return PubKeyHash
	case isScriptHash(ops):
		return ScriptHash
	case isWitnessPubKeyHash(ops):
		return WitnessV0PubKeyHash
	case isWitnessScriptHash(ops):
		return WitnessV0ScriptHash
	case isWitnessTaproot(ops):
		return WitnessV1Taproot
	case isMultiSig(ops):
		return MultiSig
	case isNullData(ops):
		return NullData
	default:
		return NonStandard
	}
}

// ExtractWitnessProgram reports the version and program bytes of script if
// it is a native segwit output (OP_0/OP_1..OP_16 followed by a single 2- to
// 40-byte push), per BIP141. Used by txverify to recognize a P2SH-wrapped
// witness program after popping the redeem script off the stack.
func ExtractWitnessProgram(script []byte) (version byte, program []byte, ok bool) {
	ops, err := ParseScript(script)
	if err != nil || len(ops) != 2 {
		return 0, nil, false
	}
	if !IsSmallInt(ops[0].Opcode) || !ops[1].IsPush() {
		return 0, nil, false
	}
	data := DisassembleDataPush(ops[1])
	if len(data) < 2 || len(data) > 40 {
		return 0, nil, false
	}
	return byte(AsSmallInt(ops[0].Opcode)), data, true
}

// PayToPubKeyHashScript builds OP_DUP OP_HASH160 <hash> OP_EQUALVERIFY
// OP_CHECKSIG.
func PayToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "pubkey hash must be 20 bytes, got %d", len(pubKeyHash))
	}
	return NewBuilder().
		AddOp(OP_DUP).AddOp(OP_HASH160).
		AddData(pubKeyHash).
		AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		Script()
}

// PayToScriptHashScript builds OP_HASH160 <hash> OP_EQUAL.
func PayToScriptHashScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 20 {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "script hash must be 20 bytes, got %d", len(scriptHash))
	}
	return NewBuilder().AddOp(OP_HASH160).AddData(scriptHash).AddOp(OP_EQUAL).Script()
}

// PayToWitnessPubKeyHashScript builds OP_0 <20-byte-hash>.
func PayToWitnessPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "witness pubkey hash must be 20 bytes, got %d", len(pubKeyHash))
	}
	return NewBuilder().AddOp(OP_0).AddData(pubKeyHash).Script()
}

// PayToWitnessScriptHashScript builds OP_0 <32-byte-hash>.
func PayToWitnessScriptHashScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 32 {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "witness script hash must be 32 bytes, got %d", len(scriptHash))
	}
	return NewBuilder().AddOp(OP_0).AddData(scriptHash).Script()
}

// PayToTaprootScript builds OP_1 <32-byte-output-key>.
func PayToTaprootScript(outputKey []byte) ([]byte, error) {
	if len(outputKey) != 32 {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "taproot output key must be 32 bytes, got %d", len(outputKey))
	}
	return NewBuilder().AddOp(OP_1).AddData(outputKey).Script()
}

// PayToPubKeyScript builds <pubkey> OP_CHECKSIG.
func PayToPubKeyScript(serializedPubKey []byte) ([]byte, error) {
	if len(serializedPubKey) != 33 && len(serializedPubKey) != 65 {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "pubkey must be 33 or 65 bytes, got %d", len(serializedPubKey))
	}
	return NewBuilder().AddData(serializedPubKey).AddOp(OP_CHECKSIG).Script()
}

// NullDataScript builds OP_RETURN <data>.
func NullDataScript(data []byte) ([]byte, error) {
	if len(data) > MaxDataCarrierSize {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "nulldata payload %d bytes exceeds max %d", len(data), MaxDataCarrierSize)
	}
	return NewBuilder().AddOp(OP_RETURN).AddData(data).Script()
}

// MultiSigScript builds the bare CHECKMULTISIG output script requiring
// nrequired signatures out of pubkeys.
func MultiSigScript(pubkeys [][]byte, nrequired int) ([]byte, error) {
	if nrequired < 1 || nrequired > len(pubkeys) {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "nrequired %d invalid for %d public keys", nrequired, len(pubkeys))
	}
	if len(pubkeys) > 16 {
		return nil, btcerr.Newf(btcerr.KindScriptSyntax, "bare multisig supports at most 16 public keys, got %d", len(pubkeys))
	}
	b := NewBuilder().AddInt64(int64(nrequired))
	for _, pk := range pubkeys {
		b = b.AddData(pk)
	}
	b = b.AddInt64(int64(len(pubkeys))).AddOp(OP_CHECKMULTISIG)
	return b.Script()
}
