package ecc

import (
	"github.com/olehkaliuzhnyi/btcprim/bsbytes"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// wifCompressedFlag is appended to the scalar when the WIF encodes a key
// meant to be used with its compressed public key form.
const wifCompressedFlag = 0x01

// EncodeWIF encodes k as Wallet Import Format under versionByte (a network's
// WIF byte): versionByte || 32-byte scalar || [0x01 if
// compressed] || 4-byte checksum, Base58-encoded. Network resolution is the
// caller's job (chaincfg.Registry); this package only knows the scalar.
func (k *PrivateKey) EncodeWIF(versionByte byte, compressed bool) string {
	payload := k.Bytes()
	if compressed {
		payload = append(payload, wifCompressedFlag)
	}
	return bsbytes.CheckEncode(versionByte, payload)
}

// DecodeWIF decodes a WIF string into its private key, the WIF version byte
// it was encoded under (which the caller resolves to a network via
// chaincfg.Registry.ByWIFByte), and whether the key was marked for use with
// a compressed public key.
func DecodeWIF(s string) (priv *PrivateKey, versionByte byte, compressed bool, err error) {
	versionByte, payload, err := bsbytes.CheckDecode(s)
	if err != nil {
		return nil, 0, false, err
	}
	switch len(payload) {
	case 32:
		compressed = false
	case 33:
		if payload[32] != wifCompressedFlag {
			return nil, 0, false, btcerr.Newf(btcerr.KindKeyCreate, "invalid WIF compression flag byte 0x%02x", payload[32])
		}
		compressed = true
		payload = payload[:32]
	default:
		return nil, 0, false, btcerr.Newf(btcerr.KindKeyCreate, "WIF payload must be 32 or 33 bytes, got %d", len(payload))
	}
	priv, err = NewPrivateKeyFromBytes(payload)
	if err != nil {
		return nil, 0, false, err
	}
	return priv, versionByte, compressed, nil
}
