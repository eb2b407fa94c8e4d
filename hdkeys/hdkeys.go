// Package hdkeys implements BIP32 hierarchical deterministic extended keys:
// master-key generation from a seed, CKDpriv/CKDpub child derivation, and
// the 78-byte extended-key serialization. The curve arithmetic
// for CKDpub (point addition) is done directly against
// github.com/decred/dcrd/dcrec/secp256k1/v4, the library btcec/v2 itself
// wraps, because btcec does not expose EC point addition.
package hdkeys

import (
	"encoding/binary"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/bsbytes"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
	"github.com/olehkaliuzhnyi/btcprim/chaincfg"
	"github.com/olehkaliuzhnyi/btcprim/ecc"
	"github.com/olehkaliuzhnyi/btcprim/mnemonic"
)

// Purpose selects which of the three BIP32 version-prefix families a key
// serializes under.
type Purpose uint8

const (
	PurposeLegacy Purpose = 44 // xprv/xpub
	PurposeCompat Purpose = 49 // yprv/ypub, P2SH-wrapped segwit
	PurposeSegwit Purpose = 84 // zprv/zpub, native segwit
)

// hardenedStart is the offset added to a child index to mark it hardened.
const hardenedStart = uint32(1) << 31

// IsHardened reports whether a raw (already-offset) child index is
// hardened.
func IsHardened(index uint32) bool { return index >= hardenedStart }

// Harden returns i encoded as a hardened child index. i must be < 2^31.
func Harden(i uint32) uint32 { return i + hardenedStart }

// Unharden strips the hardened offset from a raw child index.
func Unharden(index uint32) uint32 { return index - hardenedStart }

// base holds the fields shared by extended private and public keys.
type base struct {
	chainCode         [32]byte
	depth             byte
	parentFingerprint [4]byte
	childNumber       uint32
	network           *chaincfg.Params
	purpose           Purpose
}

func (b *base) Depth() byte                { return b.depth }
func (b *base) ChildNumber() uint32        { return b.childNumber }
func (b *base) ParentFingerprint() [4]byte { return b.parentFingerprint }
func (b *base) ChainCode() [32]byte        { return b.chainCode }
func (b *base) Network() *chaincfg.Params  { return b.network }

// Purpose returns the BIP44 purpose family this key serializes under by
// default: the one its version prefix identified at parse time, inherited
// by every derived child, PurposeLegacy for fresh master keys.
func (b *base) Purpose() Purpose { return b.purpose }

// PrivateKey is a BIP32 extended private key.
type PrivateKey struct {
	base
	key *secp256k1.PrivateKey
}

// PublicKey is a BIP32 extended public key.
type PublicKey struct {
	base
	key *secp256k1.PublicKey
}

// NewMasterKey derives the master extended private key from a BIP39 (or
// otherwise) seed: I = HMAC-SHA512("Bitcoin seed", seed); left 32 bytes is
// the scalar (must be in [1,n-1]), right 32 bytes is the chain code.
func NewMasterKey(seed []byte, network *chaincfg.Params) (*PrivateKey, error) {
	i := bhash.HMACSHA512([]byte("Bitcoin seed"), seed)
	il, ir := i[:32], i[32:]

	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(il)
	if overflow || scalar.IsZero() {
		return nil, btcerr.New(btcerr.KindKeyDerive, nil)
	}

	pk := &PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}
	pk.network = network
	pk.purpose = PurposeLegacy
	copy(pk.chainCode[:], ir)
	return pk, nil
}

// NewMasterKeyFromMnemonic validates mnemonic, stretches it into a BIP39
// seed with passphrase, and derives the master extended private key.
func NewMasterKeyFromMnemonic(m, passphrase string, network *chaincfg.Params) (*PrivateKey, error) {
	seed, err := mnemonic.SeedFromValidMnemonic(m, passphrase)
	if err != nil {
		return nil, err
	}
	return NewMasterKey(seed, network)
}

// IsPrivate reports true for PrivateKey values (used by callers holding a
// common interface).
func (k *PrivateKey) IsPrivate() bool { return true }

// Scalar returns the 32-byte private scalar.
func (k *PrivateKey) Scalar() []byte {
	b := k.key.Serialize()
	out := make([]byte, 32)
	copy(out, b)
	return out
}

// ECPrivateKey returns the ecc.PrivateKey wrapping this key's scalar.
func (k *PrivateKey) ECPrivateKey() *ecc.PrivateKey {
	priv, err := ecc.NewPrivateKeyFromBytes(k.Scalar())
	if err != nil {
		// k.key was constructed from an already-validated scalar, so this
		// can only happen if that invariant was violated upstream.
		panic(err)
	}
	return priv
}

// PublicKey returns the compressed public key corresponding to k.
func (k *PrivateKey) PublicKey() *ecc.PublicKey {
	return ecc.FromBTCECPublicKey(k.key.PubKey())
}

// fingerprintOf returns the first 4 bytes of hash160(compressed pubkey).
func fingerprintOf(pub *secp256k1.PublicKey) [4]byte {
	h := bhash.Hash160(pub.SerializeCompressed())
	var fp [4]byte
	copy(fp[:], h[:4])
	return fp
}

// Child derives CKDpriv(k, index). Hardened indices must already
// be offset by Harden. A zero or out-of-range resulting scalar surfaces as
// KindKeyDerive; the caller is expected to retry with index+1 when driving
// a derivation loop that tolerates skips.
func (k *PrivateKey) Child(index uint32) (*PrivateKey, error) {
	var data []byte
	if IsHardened(index) {
		data = make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, k.Scalar()...)
	} else {
		data = make([]byte, 0, 37)
		data = append(data, k.key.PubKey().SerializeCompressed()...)
	}
	data = append(data, ser32(index)...)

	i := bhash.HMACSHA512(k.chainCode[:], data)
	il, ir := i[:32], i[32:]

	var ilScalar secp256k1.ModNScalar
	if overflow := ilScalar.SetByteSlice(il); overflow {
		return nil, btcerr.New(btcerr.KindKeyDerive, nil)
	}

	childScalar := new(secp256k1.ModNScalar).Set(&ilScalar)
	parentScalar := k.key.Key
	childScalar.Add(&parentScalar)
	if childScalar.IsZero() {
		return nil, btcerr.New(btcerr.KindKeyDerive, nil)
	}

	child := &PrivateKey{key: secp256k1.NewPrivateKey(childScalar)}
	child.network = k.network
	child.purpose = k.purpose
	child.depth = k.depth + 1
	child.parentFingerprint = fingerprintOf(k.key.PubKey())
	child.childNumber = index
	copy(child.chainCode[:], ir)
	return child, nil
}

// Neuter returns the extended public key corresponding to k, discarding the
// private scalar.
func (k *PrivateKey) Neuter() *PublicKey {
	pub := &PublicKey{key: k.key.PubKey()}
	pub.base = k.base
	return pub
}

// IsPrivate reports false for PublicKey values.
func (k *PublicKey) IsPrivate() bool { return false }

// ECPublicKey returns the ecc.PublicKey wrapping this key's point.
func (k *PublicKey) ECPublicKey() *ecc.PublicKey {
	return ecc.FromBTCECPublicKey(k.key)
}

// Child derives CKDpub(K, index). Hardened children cannot be
// derived from a public key alone and fail with KindKeyDerive.
func (k *PublicKey) Child(index uint32) (*PublicKey, error) {
	if IsHardened(index) {
		return nil, btcerr.Newf(btcerr.KindKeyDerive, "cannot derive hardened child %d from a public key", Unharden(index))
	}

	data := make([]byte, 0, 37)
	data = append(data, k.key.SerializeCompressed()...)
	data = append(data, ser32(index)...)

	i := bhash.HMACSHA512(k.chainCode[:], data)
	il, ir := i[:32], i[32:]

	var ilScalar secp256k1.ModNScalar
	if overflow := ilScalar.SetByteSlice(il); overflow {
		return nil, btcerr.New(btcerr.KindKeyDerive, nil)
	}

	var ilPoint secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&ilScalar, &ilPoint)

	var parentPoint secp256k1.JacobianPoint
	k.key.AsJacobian(&parentPoint)

	var sum secp256k1.JacobianPoint
	secp256k1.AddNonConst(&ilPoint, &parentPoint, &sum)
	if sum.Z.IsZero() {
		return nil, btcerr.New(btcerr.KindKeyDerive, nil)
	}
	sum.ToAffine()
	childPub := secp256k1.NewPublicKey(&sum.X, &sum.Y)

	child := &PublicKey{key: childPub}
	child.network = k.network
	child.purpose = k.purpose
	child.depth = k.depth + 1
	child.parentFingerprint = fingerprintOf(k.key)
	child.childNumber = index
	copy(child.chainCode[:], ir)
	return child, nil
}

func ser32(i uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, i)
	return b
}

// versionFor resolves the 4-byte version prefix for (network, purpose,
// private-vs-public). Networks that never defined a compat or segwit HD
// version (their Params field stays the zero value) reject those purposes
// rather than silently serializing an all-zero prefix.
func versionFor(network *chaincfg.Params, purpose Purpose, private bool) ([4]byte, error) {
	hd := network.HD
	var version [4]byte
	switch purpose {
	case PurposeLegacy:
		if private {
			version = hd.LegacyPrivate
		} else {
			version = hd.LegacyPublic
		}
	case PurposeCompat:
		if private {
			version = hd.CompatPrivate
		} else {
			version = hd.CompatPublic
		}
	case PurposeSegwit:
		if private {
			version = hd.SegwitPrivate
		} else {
			version = hd.SegwitPublic
		}
	default:
		return [4]byte{}, btcerr.Newf(btcerr.KindKeyCreate, "unsupported purpose %d", purpose)
	}
	if version == ([4]byte{}) {
		return [4]byte{}, btcerr.Newf(btcerr.KindKeyCreate, "network %q has no version prefix for purpose %d", network.Name, purpose)
	}
	return version, nil
}

// Serialize encodes k as a Base58Check 78-byte extended private key blob
// under the version prefix selected by purpose.
func (k *PrivateKey) Serialize(purpose Purpose) (string, error) {
	version, err := versionFor(k.network, purpose, true)
	if err != nil {
		return "", err
	}
	payload := make([]byte, 0, 77)
	payload = append(payload, k.depth)
	payload = append(payload, k.parentFingerprint[:]...)
	payload = append(payload, ser32(k.childNumber)...)
	payload = append(payload, k.chainCode[:]...)
	payload = append(payload, 0x00)
	payload = append(payload, k.Scalar()...)
	return bsbytes.CheckEncode(version[0], append(version[1:], payload...)), nil
}

// Serialize encodes k as a Base58Check 78-byte extended public key blob
// under the version prefix selected by purpose.
func (k *PublicKey) Serialize(purpose Purpose) (string, error) {
	version, err := versionFor(k.network, purpose, false)
	if err != nil {
		return "", err
	}
	payload := make([]byte, 0, 77)
	payload = append(payload, k.depth)
	payload = append(payload, k.parentFingerprint[:]...)
	payload = append(payload, ser32(k.childNumber)...)
	payload = append(payload, k.chainCode[:]...)
	payload = append(payload, k.key.SerializeCompressed()...)
	return bsbytes.CheckEncode(version[0], append(version[1:], payload...)), nil
}

// versionMatch resolves a 4-byte extended-key version prefix to the network
// and purpose that registered it, scanning every network known to registry.
// When several registered networks share a version (the built-in pepecoin
// networks reuse bitcoin's mainnet and testnet prefixes, and a custom
// Register may add more), the first match in registry.All() order wins: the
// default network, then the rest sorted by name. ParseExtendedKey takes no
// network hint that would override this choice.
func versionMatch(registry *chaincfg.Registry, version [4]byte) (network *chaincfg.Params, purpose Purpose, private bool, ok bool) {
	for _, net := range registry.All() {
		switch version {
		case net.HD.LegacyPrivate:
			return net, PurposeLegacy, true, net.HD.LegacyPrivate != ([4]byte{})
		case net.HD.LegacyPublic:
			return net, PurposeLegacy, false, net.HD.LegacyPublic != ([4]byte{})
		case net.HD.CompatPrivate:
			return net, PurposeCompat, true, net.HD.CompatPrivate != ([4]byte{})
		case net.HD.CompatPublic:
			return net, PurposeCompat, false, net.HD.CompatPublic != ([4]byte{})
		case net.HD.SegwitPrivate:
			return net, PurposeSegwit, true, net.HD.SegwitPrivate != ([4]byte{})
		case net.HD.SegwitPublic:
			return net, PurposeSegwit, false, net.HD.SegwitPublic != ([4]byte{})
		}
	}
	return nil, 0, false, false
}

// ParseExtendedKey decodes a Base58Check-encoded extended key string,
// identifying its network and purpose from the 4-byte version prefix.
// Exactly one of the returned private/public keys is non-nil. The
// version prefix is matched against every network registry.All() returns,
// default network first; an unrecognized prefix fails with KindKeyCreate.
func ParseExtendedKey(s string, registry *chaincfg.Registry) (priv *PrivateKey, pub *PublicKey, err error) {
	versionByte, rest, err := bsbytes.CheckDecode(s)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) != 77 {
		return nil, nil, btcerr.Newf(btcerr.KindKeyCreate, "extended key payload must be 77 bytes, got %d", len(rest))
	}

	version := [4]byte{versionByte, rest[0], rest[1], rest[2]}
	body := rest[3:] // depth(1) parentFP(4) childNumber(4) chainCode(32) keyData(33)

	network, purpose, private, ok := versionMatch(registry, version)
	if !ok {
		return nil, nil, btcerr.Newf(btcerr.KindKeyCreate, "unrecognized extended key version %x", version)
	}

	b := base{
		depth:       body[0],
		childNumber: binary.BigEndian.Uint32(body[5:9]),
		network:     network,
		purpose:     purpose,
	}
	copy(b.parentFingerprint[:], body[1:5])
	copy(b.chainCode[:], body[9:41])
	keyData := body[41:74]

	if private {
		if keyData[0] != 0x00 {
			return nil, nil, btcerr.New(btcerr.KindKeyCreate, nil)
		}
		var scalar secp256k1.ModNScalar
		if overflow := scalar.SetByteSlice(keyData[1:]); overflow || scalar.IsZero() {
			return nil, nil, btcerr.New(btcerr.KindKeyCreate, nil)
		}
		pk := &PrivateKey{base: b, key: secp256k1.NewPrivateKey(&scalar)}
		return pk, nil, nil
	}

	parsed, err := secp256k1.ParsePubKey(keyData)
	if err != nil {
		return nil, nil, btcerr.Wrap(btcerr.KindKeyCreate, "parse extended public key point", err)
	}
	return nil, &PublicKey{base: b, key: parsed}, nil
}
