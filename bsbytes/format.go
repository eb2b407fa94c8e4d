// Package bsbytes implements the byte/format codec: hex, base58,
// base58check, and base64 encode/decode, plus the format-descriptor
// indirection ("(format_tag, string)") used anywhere a bytestring is
// accepted.
package bsbytes

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/olehkaliuzhnyi/btcprim/bhash"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// Format identifies how a bytestring is textually represented.
type Format string

const (
	FormatBytes  Format = "bytes"
	FormatHex    Format = "hex"
	FormatBase58 Format = "base58"
	FormatBase64 Format = "base64"
)

// ToFormat encodes x per the given format tag. FormatBytes returns the raw
// bytes reinterpreted as a Latin-1 string, matching the source ecosystem's
// convention that "bytes" is itself a valid format descriptor.
func ToFormat(f Format, x []byte) (string, error) {
	switch f {
	case FormatBytes:
		return string(x), nil
	case FormatHex:
		return hex.EncodeToString(x), nil
	case FormatBase58:
		return base58.Encode(x), nil
	case FormatBase64:
		return base64.StdEncoding.EncodeToString(x), nil
	default:
		return "", btcerr.Newf(btcerr.KindBase58InputFormat, "unknown format %q", f)
	}
}

// FromFormat decodes s per the given format tag, the inverse of ToFormat.
func FromFormat(f Format, s string) ([]byte, error) {
	switch f {
	case FormatBytes:
		return []byte(s), nil
	case FormatHex:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, btcerr.Wrap(btcerr.KindBase58InputFormat, "hex decode", err)
		}
		return b, nil
	case FormatBase58:
		return Decode(s)
	case FormatBase64:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, btcerr.Wrap(btcerr.KindBase58InputFormat, "base64 decode", err)
		}
		return b, nil
	default:
		return nil, btcerr.Newf(btcerr.KindBase58InputFormat, "unknown format %q", f)
	}
}

// alphabet is the Base58 alphabet used by Bitcoin: digits and letters with
// the visually ambiguous 0, O, I, l removed.
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var alphabetSet [256]bool

func init() {
	for i := 0; i < len(alphabet); i++ {
		alphabetSet[alphabet[i]] = true
	}
}

// Encode encodes b as plain (non-checksummed) Base58.
func Encode(b []byte) string {
	return base58.Encode(b)
}

// Decode decodes a plain Base58 string, validating that every character
// belongs to the Bitcoin alphabet (btcutil's decoder silently skips unknown
// runes, so the validation is done here).
func Decode(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if !alphabetSet[s[i]] {
			return nil, btcerr.Newf(btcerr.KindBase58InputFormat, "invalid base58 character %q at position %d", s[i], i)
		}
	}
	decoded := base58.Decode(s)
	if len(decoded) == 0 && len(s) > 0 {
		return nil, btcerr.New(btcerr.KindBase58InputFormat, nil)
	}
	return decoded, nil
}

// CheckEncode encodes version||payload as Base58Check: the payload is
// prefixed with the version byte and suffixed with the first four bytes of
// hash256(version||payload).
func CheckEncode(version byte, payload []byte) string {
	data := make([]byte, 0, 1+len(payload)+4)
	data = append(data, version)
	data = append(data, payload...)
	checksum := bhash.Hash256(data)
	data = append(data, checksum[:4]...)
	return base58.Encode(data)
}

// CheckDecode decodes a Base58Check string, returning the version byte and
// payload. It fails with KindBase58InputFormat for input with non-alphabet
// characters or too short to carry a version+checksum, and
// KindBase58InputChecksum when the checksum does not match.
func CheckDecode(s string) (version byte, payload []byte, err error) {
	raw, err := Decode(s)
	if err != nil {
		return 0, nil, err
	}
	if len(raw) < 5 {
		return 0, nil, btcerr.Newf(btcerr.KindBase58InputFormat, "base58check input too short: %d bytes", len(raw))
	}
	body := raw[:len(raw)-4]
	checksum := raw[len(raw)-4:]
	want := bhash.Hash256(body)
	for i := 0; i < 4; i++ {
		if checksum[i] != want[i] {
			return 0, nil, btcerr.New(btcerr.KindBase58InputChecksum, nil)
		}
	}
	return body[0], body[1:], nil
}
