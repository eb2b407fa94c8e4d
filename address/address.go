// Package address implements the Bitcoin address codec: legacy
// (P2PKH/P2SH) Base58Check addresses, P2SH-wrapped ("compat") segwit
// addresses, native segwit v0 (P2WPKH/P2WSH) and v1 (P2TR, taproot) bech32m
// addresses, parameterized over a chaincfg.Params registry so any
// registered network gets the same address family for free.
package address

import (
	"strings"

	"github.com/olehkaliuzhnyi/btcprim/bech32"
	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/bsbytes"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
	"github.com/olehkaliuzhnyi/btcprim/chaincfg"
	"github.com/olehkaliuzhnyi/btcprim/ecc"
	"github.com/olehkaliuzhnyi/btcprim/hdkeys"
)

// Type identifies an address's output template.
type Type int

const (
	TypeP2PKH Type = iota
	TypeP2SH       // also used for P2SH-wrapped ("compat") segwit
	TypeP2WPKH
	TypeP2WSH
	TypeP2TR
)

func (t Type) String() string {
	switch t {
	case TypeP2PKH:
		return "p2pkh"
	case TypeP2SH:
		return "p2sh"
	case TypeP2WPKH:
		return "p2wpkh"
	case TypeP2WSH:
		return "p2wsh"
	case TypeP2TR:
		return "p2tr"
	default:
		return "unknown"
	}
}

// Address is a decoded or about-to-be-encoded Bitcoin address: a template
// type, the network it belongs to, and the hash/program payload.
type Address struct {
	Type    Type
	Network *chaincfg.Params
	// Hash is the 20-byte pubkey/script hash for P2PKH/P2SH/P2WPKH, the
	// 32-byte script hash for P2WSH, or the 32-byte x-only output key for
	// P2TR.
	Hash []byte
	// WitnessVersion is the segwit witness version (0 or 1) for
	// TypeP2WPKH/TypeP2WSH/TypeP2TR, and unused otherwise.
	WitnessVersion byte
}

// P2PKH builds a legacy pay-to-pubkey-hash address.
func P2PKH(pubKeyHash []byte, network *chaincfg.Params) (*Address, error) {
	if len(pubKeyHash) != 20 {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "P2PKH hash must be 20 bytes, got %d", len(pubKeyHash))
	}
	return &Address{Type: TypeP2PKH, Network: network, Hash: pubKeyHash}, nil
}

// P2SH builds a pay-to-script-hash address (also used for P2SH-wrapped
// segwit, i.e. "compat" addresses).
func P2SH(scriptHash []byte, network *chaincfg.Params) (*Address, error) {
	if len(scriptHash) != 20 {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "P2SH hash must be 20 bytes, got %d", len(scriptHash))
	}
	return &Address{Type: TypeP2SH, Network: network, Hash: scriptHash}, nil
}

// P2WPKH builds a native segwit v0 pay-to-witness-pubkey-hash address.
func P2WPKH(pubKeyHash []byte, network *chaincfg.Params) (*Address, error) {
	if !network.SupportsSegwit() {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "network %q does not support segwit", network.Name)
	}
	if len(pubKeyHash) != 20 {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "P2WPKH hash must be 20 bytes, got %d", len(pubKeyHash))
	}
	return &Address{Type: TypeP2WPKH, Network: network, Hash: pubKeyHash, WitnessVersion: 0}, nil
}

// P2WSH builds a native segwit v0 pay-to-witness-script-hash address.
func P2WSH(scriptHash []byte, network *chaincfg.Params) (*Address, error) {
	if !network.SupportsSegwit() {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "network %q does not support segwit", network.Name)
	}
	if len(scriptHash) != 32 {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "P2WSH hash must be 32 bytes, got %d", len(scriptHash))
	}
	return &Address{Type: TypeP2WSH, Network: network, Hash: scriptHash, WitnessVersion: 0}, nil
}

// P2TR builds a taproot address from a 32-byte x-only output key.
func P2TR(outputKey []byte, network *chaincfg.Params) (*Address, error) {
	if !network.SupportsSegwit() {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "network %q does not support segwit", network.Name)
	}
	if len(outputKey) != 32 {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "P2TR output key must be 32 bytes, got %d", len(outputKey))
	}
	return &Address{Type: TypeP2TR, Network: network, Hash: outputKey, WitnessVersion: 1}, nil
}

// FromPublicKeyLegacy builds the P2PKH address for a compressed or
// uncompressed public key.
func FromPublicKeyLegacy(pub *ecc.PublicKey, network *chaincfg.Params, compressed bool) (*Address, error) {
	h := bhash.Hash160(pubKeyBytes(pub, compressed))
	return P2PKH(h[:], network)
}

// FromPublicKeyCompat builds a P2SH-wrapped segwit address embedding a
// P2WPKH redeem script: OP_0 <hash160(pubkey)>.
func FromPublicKeyCompat(pub *ecc.PublicKey, network *chaincfg.Params) (*Address, error) {
	pkHash := bhash.Hash160(pub.SerializeCompressed())
	redeem := append([]byte{0x00, 0x14}, pkHash[:]...)
	h := bhash.Hash160(redeem)
	return P2SH(h[:], network)
}

// FromPublicKeySegwit builds a native P2WPKH address.
func FromPublicKeySegwit(pub *ecc.PublicKey, network *chaincfg.Params) (*Address, error) {
	h := bhash.Hash160(pub.SerializeCompressed())
	return P2WPKH(h[:], network)
}

// FromPublicKeyTaproot builds the key-path-only taproot address for pub used
// as the BIP341 internal key.
func FromPublicKeyTaproot(pub *ecc.PublicKey, network *chaincfg.Params) (*Address, error) {
	outputKey, err := pub.TaprootOutputKey()
	if err != nil {
		return nil, err
	}
	return P2TR(outputKey, network)
}

// FromPublicKeyAuto selects the address family from the key's BIP44 purpose
// tag: 44 legacy, 49 compat, 84 native segwit. A zero purpose falls back to
// native segwit when the network supports it and legacy otherwise.
func FromPublicKeyAuto(pub *ecc.PublicKey, network *chaincfg.Params, purpose hdkeys.Purpose) (*Address, error) {
	switch purpose {
	case hdkeys.PurposeLegacy:
		return FromPublicKeyLegacy(pub, network, true)
	case hdkeys.PurposeCompat:
		return FromPublicKeyCompat(pub, network)
	case hdkeys.PurposeSegwit:
		return FromPublicKeySegwit(pub, network)
	case 0:
		if network.SupportsSegwit() {
			return FromPublicKeySegwit(pub, network)
		}
		return FromPublicKeyLegacy(pub, network, true)
	default:
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "unsupported purpose %d", purpose)
	}
}

func pubKeyBytes(pub *ecc.PublicKey, compressed bool) []byte {
	if compressed {
		return pub.SerializeCompressed()
	}
	return pub.SerializeUncompressed()
}

// FromScriptLegacy builds the P2SH address paying to script.
func FromScriptLegacy(script []byte, network *chaincfg.Params) (*Address, error) {
	h := bhash.Hash160(script)
	return P2SH(h[:], network)
}

// FromScriptCompat builds a P2SH-wrapped segwit address for script: the
// redeem script is the P2WSH program OP_0 <sha256(script)>.
func FromScriptCompat(script []byte, network *chaincfg.Params) (*Address, error) {
	if !network.SupportsSegwit() {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "network %q does not support segwit", network.Name)
	}
	sum := bhash.Sum256(script)
	redeem := append([]byte{0x00, 0x20}, sum[:]...)
	h := bhash.Hash160(redeem)
	return P2SH(h[:], network)
}

// FromScriptSegwit builds the native P2WSH address paying to script.
func FromScriptSegwit(script []byte, network *chaincfg.Params) (*Address, error) {
	sum := bhash.Sum256(script)
	return P2WSH(sum[:], network)
}

// Encode renders a into its textual form.
func (a *Address) Encode() (string, error) {
	switch a.Type {
	case TypeP2PKH:
		return bsbytes.CheckEncode(a.Network.PubKeyHashAddrID, a.Hash), nil
	case TypeP2SH:
		return bsbytes.CheckEncode(a.Network.ScriptHashAddrID, a.Hash), nil
	case TypeP2WPKH, TypeP2WSH, TypeP2TR:
		if !a.Network.SupportsSegwit() {
			return "", btcerr.Newf(btcerr.KindAddressGenerate, "network %q does not support segwit", a.Network.Name)
		}
		return bech32.SegwitEncode(a.Network.Bech32HRP, a.WitnessVersion, a.Hash)
	default:
		return "", btcerr.Newf(btcerr.KindAddressGenerate, "unknown address type %v", a.Type)
	}
}

// Decode parses a textual address, inferring its type from its encoding.
// registry may be nil to use chaincfg.Default; Decode scans the networks
// registered in registry to identify which network the address belongs to.
func Decode(s string, registry *chaincfg.Registry) (*Address, error) {
	if registry == nil {
		registry = chaincfg.Default
	}

	if nets := candidateNetworks(registry, s); len(nets) > 0 {
		for _, net := range nets {
			version, program, err := bech32.SegwitDecode(net.Bech32HRP, s)
			if err != nil {
				continue
			}
			return addressFromWitnessProgram(net, version, program)
		}
		return nil, btcerr.New(btcerr.KindAddressGenerate, nil)
	}

	version, payload, err := bsbytes.CheckDecode(s)
	if err != nil {
		return nil, err
	}
	if len(payload) != 20 {
		return nil, btcerr.Newf(btcerr.KindAddressGenerate, "decoded address payload must be 20 bytes, got %d", len(payload))
	}

	net, addrType, err := classifyByVersion(registry, version)
	if err != nil {
		return nil, err
	}
	return &Address{Type: addrType, Network: net, Hash: payload}, nil
}

// candidateNetworks returns every registered network whose HRP is a
// prefix-plausible match for s, default network first (registry.All's
// order).
func candidateNetworks(registry *chaincfg.Registry, s string) []*chaincfg.Params {
	lower := strings.ToLower(s)
	var nets []*chaincfg.Params
	for _, p := range registry.All() {
		if p.SupportsSegwit() && strings.HasPrefix(lower, strings.ToLower(p.Bech32HRP)+"1") {
			nets = append(nets, p)
		}
	}
	return nets
}

func addressFromWitnessProgram(net *chaincfg.Params, version byte, program []byte) (*Address, error) {
	switch {
	case version == 0 && len(program) == 20:
		return &Address{Type: TypeP2WPKH, Network: net, Hash: program, WitnessVersion: 0}, nil
	case version == 0 && len(program) == 32:
		return &Address{Type: TypeP2WSH, Network: net, Hash: program, WitnessVersion: 0}, nil
	case version == 1 && len(program) == 32:
		return &Address{Type: TypeP2TR, Network: net, Hash: program, WitnessVersion: 1}, nil
	default:
		return nil, btcerr.Newf(btcerr.KindSegwitProgram, "unrecognized witness program: version %d, length %d", version, len(program))
	}
}

// classifyByVersion resolves a Base58Check version byte against every
// registered network's PubKeyHashAddrID/ScriptHashAddrID, preferring the
// default network on ambiguity exactly as chaincfg.Registry.ByWIFByte does
// (registry.All returns the default network first).
func classifyByVersion(registry *chaincfg.Registry, version byte) (*chaincfg.Params, Type, error) {
	for _, p := range registry.All() {
		switch version {
		case p.PubKeyHashAddrID:
			return p, TypeP2PKH, nil
		case p.ScriptHashAddrID:
			return p, TypeP2SH, nil
		}
	}
	return nil, 0, btcerr.Newf(btcerr.KindAddressGenerate, "no registered network recognizes version byte 0x%02x", version)
}
