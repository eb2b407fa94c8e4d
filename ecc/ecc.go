// Package ecc wraps secp256k1 scalar/point operations, ECDSA sign (RFC 6979)
// and verify, and public-key parsing. It is built directly on
// github.com/btcsuite/btcd/btcec/v2 and, for the BIP341 taproot tweak
// arithmetic in taproot.go, on the lower-level
// github.com/decred/dcrd/dcrec/secp256k1/v4 types that btcec itself is a
// thin wrapper over.
package ecc

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// PrivateKey is a 32-byte secp256k1 scalar, always reduced mod the curve
// order n, with n zero rejected at construction.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey is a secp256k1 curve point, never the point at infinity.
type PublicKey struct {
	key *btcec.PublicKey
}

// NewPrivateKeyFromBytes constructs a PrivateKey from a 32-byte big-endian
// scalar, rejecting zero and values >= n.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, btcerr.Newf(btcerr.KindKeyCreate, "private key must be 32 bytes, got %d", len(b))
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	overflow := false
	// btcec.PrivKeyFromBytes silently reduces mod n; detect overflow/zero
	// explicitly by re-deriving and comparing, since this constructor must
	// hard-reject rather than silently reduce.
	if isZero(b) {
		return nil, btcerr.New(btcerr.KindKeyCreate, nil)
	}
	overflow = !bytesEqual(priv.Serialize(), b)
	if overflow {
		return nil, btcerr.Newf(btcerr.KindKeyCreate, "scalar is not reduced mod n")
	}
	return &PrivateKey{key: priv}, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Bytes returns the 32-byte big-endian scalar.
func (k *PrivateKey) Bytes() []byte {
	b := k.key.Serialize()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// PubKey returns the public key corresponding to this private key.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// Sign produces a deterministic (RFC 6979) ECDSA signature over a 32-byte
// digest, returned as DER-encoded bytes.
func (k *PrivateKey) Sign(digest32 []byte) ([]byte, error) {
	if len(digest32) != 32 {
		return nil, btcerr.Newf(btcerr.KindSign, "digest must be 32 bytes, got %d", len(digest32))
	}
	sig := ecdsa.Sign(k.key, digest32)
	return sig.Serialize(), nil
}

// ParsePublicKey parses a compressed (33-byte) or uncompressed (65-byte)
// public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	pk, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, btcerr.Wrap(btcerr.KindKeyCreate, "parse public key", err)
	}
	return &PublicKey{key: pk}, nil
}

// SerializeCompressed returns the 33-byte compressed point encoding.
func (k *PublicKey) SerializeCompressed() []byte {
	return k.key.SerializeCompressed()
}

// SerializeUncompressed returns the 65-byte uncompressed point encoding.
func (k *PublicKey) SerializeUncompressed() []byte {
	return k.key.SerializeUncompressed()
}

// Verify checks a DER+no-sighash-byte ECDSA signature against a 32-byte
// digest.
func (k *PublicKey) Verify(digest32, derSig []byte) (bool, error) {
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return false, btcerr.Wrap(btcerr.KindVerify, "parse der signature", err)
	}
	return sig.Verify(digest32, k.key), nil
}

// BTCEC exposes the underlying btcec key for packages (hdkeys, address) that
// need to perform curve arithmetic this package does not itself surface.
func (k *PrivateKey) BTCEC() *btcec.PrivateKey { return k.key }

// BTCEC exposes the underlying btcec key for packages that need direct
// point access (e.g. hdkeys' CKDpub).
func (k *PublicKey) BTCEC() *btcec.PublicKey { return k.key }

// FromBTCECPrivateKey wraps an existing btcec.PrivateKey.
func FromBTCECPrivateKey(k *btcec.PrivateKey) *PrivateKey { return &PrivateKey{key: k} }

// FromBTCECPublicKey wraps an existing btcec.PublicKey.
func FromBTCECPublicKey(k *btcec.PublicKey) *PublicKey { return &PublicKey{key: k} }
