package ecc

import (
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// messageMagic is prefixed to every message before hashing, matching the
// long-standing Bitcoin Core "signmessage" convention so signatures
// produced here verify against any compatible wallet.
const messageMagic = "Bitcoin Signed Message:\n"

func messageDigest(msg []byte) [32]byte {
	var buf []byte
	buf = appendVarString(buf, messageMagic)
	buf = appendVarString(buf, string(msg))
	return bhash.Hash256(buf)
}

func appendVarString(buf []byte, s string) []byte {
	buf = appendVarInt(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendVarInt(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		return append(buf, 0xfd, byte(n), byte(n>>8))
	case n <= 0xffffffff:
		return append(buf, 0xfe, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	default:
		return append(buf, 0xff,
			byte(n), byte(n>>8), byte(n>>16), byte(n>>24),
			byte(n>>32), byte(n>>40), byte(n>>48), byte(n>>56))
	}
}

// SignMessage signs an arbitrary message using the Bitcoin Signed Message
// convention: magic-prefixed varstring, hash256'd, signed with a recoverable
// compact signature so VerifyMessage can recover the expected public key
// without it being supplied out of band.
func (k *PrivateKey) SignMessage(msg []byte, compressed bool) ([]byte, error) {
	digest := messageDigest(msg)
	sig := ecdsa.SignCompact(k.key, digest[:], compressed)
	return sig, nil
}

// VerifyMessage recovers the signer's public key from a compact signature
// over msg and reports whether it matches pub.
func (pub *PublicKey) VerifyMessage(msg, sig []byte) (bool, error) {
	digest := messageDigest(msg)
	recovered, _, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return false, btcerr.Wrap(btcerr.KindVerify, "recover compact signature", err)
	}
	return recovered.IsEqual(pub.key), nil
}
