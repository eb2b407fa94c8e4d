// Package mnemonic implements BIP39: entropy<->wordlist conversion and
// mnemonic-to-seed derivation. The wordlist and the entropy<->mnemonic
// checksum bookkeeping are delegated to github.com/tyler-smith/go-bip39;
// seed derivation is implemented directly against golang.org/x/crypto/pbkdf2
// and golang.org/x/text/unicode/norm so the NFKD normalization step stays
// explicit and auditable rather than hidden inside a third-party NewSeed
// call.
package mnemonic

import (
	gobip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"

	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// ValidEntropyBits are the BIP39-permitted entropy lengths.
var ValidEntropyBits = []int{128, 160, 192, 224, 256}

func validEntropyLen(bits int) bool {
	for _, b := range ValidEntropyBits {
		if b == bits {
			return true
		}
	}
	return false
}

// Generate produces a new mnemonic from the given entropy bytes, whose
// length in bits must be one of ValidEntropyBits (caller supplies a
// cryptographically secure RNG indirectly via entropy; this package does
// not read any ambient randomness source itself).
func Generate(entropy []byte) (string, error) {
	bits := len(entropy) * 8
	if !validEntropyLen(bits) {
		return "", btcerr.Newf(btcerr.KindMnemonicGenerate, "entropy length %d bits is not one of %v", bits, ValidEntropyBits)
	}
	m, err := gobip39.NewMnemonic(entropy)
	if err != nil {
		return "", btcerr.Wrap(btcerr.KindMnemonicGenerate, "encode mnemonic", err)
	}
	return m, nil
}

// ToEntropy recovers the original entropy from a mnemonic, verifying its
// embedded checksum.
func ToEntropy(m string) ([]byte, error) {
	entropy, err := gobip39.EntropyFromMnemonic(normalizeWords(m))
	if err != nil {
		return nil, btcerr.Wrap(btcerr.KindMnemonicCheck, "decode mnemonic", err)
	}
	return entropy, nil
}

// Validate reports whether m is a well-formed mnemonic (valid wordlist
// entries, valid length, valid checksum).
func Validate(m string) bool {
	return gobip39.IsMnemonicValid(normalizeWords(m))
}

// normalizeWords NFKD-normalizes a mnemonic phrase as a whole; surrounding
// whitespace is not trimmed. gobip39's own wordlist lookups are ASCII-only,
// so this only matters for
// non-English wordlists callers may plug in via the underlying library.
func normalizeWords(m string) string {
	return norm.NFKD.String(m)
}

// SeedFromMnemonic derives the 64-byte BIP39 seed:
// PBKDF2-HMAC-SHA512(password=NFKD(mnemonic), salt="mnemonic"+NFKD(passphrase),
// iters=2048, dkLen=64). Both mnemonic and passphrase are NFKD-normalized
// and UTF-8 encoded before stretching.
func SeedFromMnemonic(m, passphrase string) []byte {
	password := norm.NFKD.String(m)
	salt := "mnemonic" + norm.NFKD.String(passphrase)
	return bhash.PBKDF2HMACSHA512([]byte(password), []byte(salt), 2048, 64)
}

// SeedFromValidMnemonic is SeedFromMnemonic guarded by a checksum
// validation, failing with KindMnemonicCheck on a malformed mnemonic.
func SeedFromValidMnemonic(m, passphrase string) ([]byte, error) {
	if !Validate(m) {
		return nil, btcerr.New(btcerr.KindMnemonicCheck, nil)
	}
	return SeedFromMnemonic(m, passphrase), nil
}
