package ecc

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// taggedHash computes the BIP340 tagged hash
// SHA256(SHA256(tag) || SHA256(tag) || msg).
func taggedHash(tag string, msg []byte) [32]byte {
	tagSum := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagSum[:])
	h.Write(tagSum[:])
	h.Write(msg)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// XOnlyBytes returns the 32-byte x-only encoding of the point, implicitly
// selecting the even-Y candidate per BIP340.
func (k *PublicKey) XOnlyBytes() []byte {
	return schnorr.SerializePubKey(k.key)
}

// TaprootOutputKey computes the BIP341 key-path-only output key for this
// key used as the taproot internal key: Q = lift_x(P) + int(tH)*G where
// tH = taggedHash("TapTweak", xonly(P)). The returned 32 bytes are the
// witness program of the corresponding P2TR output.
func (k *PublicKey) TaprootOutputKey() ([]byte, error) {
	internal := k.XOnlyBytes()
	tweak := taggedHash("TapTweak", internal)

	var t secp256k1.ModNScalar
	if overflow := t.SetByteSlice(tweak[:]); overflow {
		return nil, btcerr.Newf(btcerr.KindKeyCreate, "taproot tweak overflows the curve order")
	}

	lifted, err := secp256k1.ParsePubKey(append([]byte{0x02}, internal...))
	if err != nil {
		return nil, btcerr.Wrap(btcerr.KindKeyCreate, "lift x-only internal key", err)
	}

	var p, tg, q secp256k1.JacobianPoint
	lifted.AsJacobian(&p)
	secp256k1.ScalarBaseMultNonConst(&t, &tg)
	secp256k1.AddNonConst(&p, &tg, &q)
	if q.Z.IsZero() {
		return nil, btcerr.Newf(btcerr.KindKeyCreate, "taproot tweak produced the point at infinity")
	}
	q.ToAffine()

	return schnorr.SerializePubKey(secp256k1.NewPublicKey(&q.X, &q.Y)), nil
}
