// Package derivpath builds and parses BIP32 derivation paths, including the
// BIP44 account/change/address-index structure and BIP85 deterministic
// entropy paths.
package derivpath

import (
	"strconv"
	"strings"

	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
	"github.com/olehkaliuzhnyi/btcprim/hdkeys"
	"github.com/olehkaliuzhnyi/btcprim/mnemonic"
)

// Purpose is the BIP43 purpose field used by BIP44-style paths.
type Purpose uint32

const (
	PurposeBIP44 Purpose = 44 // legacy P2PKH
	PurposeBIP49 Purpose = 49 // P2SH-wrapped segwit
	PurposeBIP84 Purpose = 84 // native segwit
)

// Account returns the hardened m/purpose'/coin_type'/account' prefix.
func Account(purpose Purpose, coinType, account uint32) []uint32 {
	return []uint32{
		hdkeys.Harden(uint32(purpose)),
		hdkeys.Harden(coinType),
		hdkeys.Harden(account),
	}
}

// FromAccount appends the non-hardened change/address_index levels to an
// account-level path previously returned by Account.
func FromAccount(accountPath []uint32, change, addressIndex uint32) []uint32 {
	out := make([]uint32, 0, len(accountPath)+2)
	out = append(out, accountPath...)
	out = append(out, change, addressIndex)
	return out
}

// BuildBIP44 returns the full m/purpose'/coin_type'/account'/change/index
// path in one call.
func BuildBIP44(purpose Purpose, coinType, account, change, addressIndex uint32) []uint32 {
	return FromAccount(Account(purpose, coinType, account), change, addressIndex)
}

// Parse converts a "m/44'/0'/0'/0/0" style string into raw child indices.
func Parse(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, btcerr.New(btcerr.KindKeyDerive, nil)
	}
	if !strings.HasPrefix(path, "m") {
		return nil, btcerr.Newf(btcerr.KindKeyDerive, "derivation path %q must start with \"m\"", path)
	}
	parts := strings.Split(path, "/")[1:]
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") || strings.HasSuffix(part, "H")
		trimmed := strings.TrimRight(part, "'hH")
		n, err := strconv.ParseUint(trimmed, 10, 32)
		if err != nil {
			return nil, btcerr.Wrap(btcerr.KindKeyDerive, "parse path component "+part, err)
		}
		index := uint32(n)
		if hardened {
			index = hdkeys.Harden(index)
		}
		indices = append(indices, index)
	}
	return indices, nil
}

// String renders a parsed path back into "m/44'/0'/0'/0/0" form.
func String(path []uint32) string {
	var b strings.Builder
	b.WriteByte('m')
	for _, idx := range path {
		b.WriteByte('/')
		if hdkeys.IsHardened(idx) {
			b.WriteString(strconv.FormatUint(uint64(hdkeys.Unharden(idx)), 10))
			b.WriteByte('\'')
		} else {
			b.WriteString(strconv.FormatUint(uint64(idx), 10))
		}
	}
	return b.String()
}

// Derive walks master through each index in path via CKDpriv, in order.
func Derive(master *hdkeys.PrivateKey, path []uint32) (*hdkeys.PrivateKey, error) {
	current := master
	for _, idx := range path {
		child, err := current.Child(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// bip85Purpose is the fixed BIP85 purpose field: 83696968 is the ASCII
// codes of "SEED" (83 69 69 68) written as one decimal number.
const bip85Purpose = 83696968

// BIP85Application identifies a BIP85 derivation output format.
type BIP85Application uint32

const (
	BIP85AppBIP39 BIP85Application = 39
	BIP85AppWIF   BIP85Application = 2
	BIP85AppHex   BIP85Application = 128169
)

// BIP85BIP39Path builds m/83696968'/39'/language'/words'/index', the path
// for BIP85's "Deterministic BIP39 Mnemonic" application.
func BIP85BIP39Path(language, words, index uint32) []uint32 {
	return []uint32{
		hdkeys.Harden(bip85Purpose),
		hdkeys.Harden(uint32(BIP85AppBIP39)),
		hdkeys.Harden(language),
		hdkeys.Harden(words),
		hdkeys.Harden(index),
	}
}

// BIP85HexPath builds m/83696968'/128169'/num_bytes'/index', the path for
// BIP85's "HEX" application.
func BIP85HexPath(numBytes, index uint32) []uint32 {
	return []uint32{
		hdkeys.Harden(bip85Purpose),
		hdkeys.Harden(uint32(BIP85AppHex)),
		hdkeys.Harden(numBytes),
		hdkeys.Harden(index),
	}
}

// BIP85WIFPath builds m/83696968'/2'/index', the path for BIP85's "WIF"
// application.
func BIP85WIFPath(index uint32) []uint32 {
	return []uint32{
		hdkeys.Harden(bip85Purpose),
		hdkeys.Harden(uint32(BIP85AppWIF)),
		hdkeys.Harden(index),
	}
}

// DeriveEntropy walks master to path, then computes
// HMAC-SHA512(key="bip-entropy-from-k", msg=derived_scalar), the 64-byte
// value BIP85 applications slice their output entropy from.
func DeriveEntropy(master *hdkeys.PrivateKey, path []uint32) ([]byte, error) {
	derived, err := Derive(master, path)
	if err != nil {
		return nil, err
	}
	sum := bhash.HMACSHA512([]byte("bip-entropy-from-k"), derived.Scalar())
	return sum[:], nil
}

// bip39WordsToEntropyBytes maps a mnemonic word count to the entropy length
// (in bytes) BIP39 derives it from.
func bip39WordsToEntropyBytes(words uint32) (int, error) {
	switch words {
	case 12:
		return 16, nil
	case 15:
		return 20, nil
	case 18:
		return 24, nil
	case 21:
		return 28, nil
	case 24:
		return 32, nil
	default:
		return 0, btcerr.Newf(btcerr.KindKeyDerive, "unsupported BIP85 mnemonic word count %d", words)
	}
}

// DeriveBIP39Entropy derives the entropy for a BIP85 "Deterministic BIP39
// Mnemonic" at the given language/word-count/index, truncated to the
// number of bytes that word count's wordlist checksum expects.
func DeriveBIP39Entropy(master *hdkeys.PrivateKey, language, words, index uint32) ([]byte, error) {
	n, err := bip39WordsToEntropyBytes(words)
	if err != nil {
		return nil, err
	}
	full, err := DeriveEntropy(master, BIP85BIP39Path(language, words, index))
	if err != nil {
		return nil, err
	}
	return full[:n], nil
}

// DeriveMnemonic derives the BIP85 "Deterministic BIP39 Mnemonic" at the
// given language/word-count/index and encodes it, satisfying the
// bip85.derive_mnemonic(words, index) external interface directly.
func DeriveMnemonic(master *hdkeys.PrivateKey, language, words, index uint32) (string, error) {
	entropy, err := DeriveBIP39Entropy(master, language, words, index)
	if err != nil {
		return "", err
	}
	return mnemonic.Generate(entropy)
}

// DeriveHexEntropy derives the entropy for a BIP85 "HEX" application at the
// given length/index, truncated to numBytes (16-64).
func DeriveHexEntropy(master *hdkeys.PrivateKey, numBytes, index uint32) ([]byte, error) {
	if numBytes < 16 || numBytes > 64 {
		return nil, btcerr.Newf(btcerr.KindKeyDerive, "BIP85 HEX application supports 16-64 bytes, got %d", numBytes)
	}
	full, err := DeriveEntropy(master, BIP85HexPath(numBytes, index))
	if err != nil {
		return nil, err
	}
	return full[:numBytes], nil
}
