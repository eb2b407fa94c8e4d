// Package bech32 implements the Bech32 (BIP173) and Bech32m (BIP350) string
// formats, plus the segwit witness-program address codec layered on top of
// them.
package bech32

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// Encoding selects which checksum constant to apply.
type Encoding int

const (
	Bech32 Encoding = iota
	Bech32m
)

const (
	bech32Const  = 1
	bech32mConst = 0x2bc830a3
)

var generator = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

var charsetIndex [256]int8

func init() {
	for i := range charsetIndex {
		charsetIndex[i] = -1
	}
	for i := 0; i < len(charset); i++ {
		charsetIndex[charset[i]] = int8(i)
	}
}

func polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= generator[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func checksumConst(enc Encoding) uint32 {
	if enc == Bech32m {
		return bech32mConst
	}
	return bech32Const
}

func createChecksum(hrp string, data []byte, enc Encoding) []byte {
	values := append(hrpExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ checksumConst(enc)
	checksum := make([]byte, 6)
	for i := 0; i < 6; i++ {
		checksum[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return checksum
}

func verifyChecksum(hrp string, data []byte, enc Encoding) bool {
	values := append(hrpExpand(hrp), data...)
	return polymod(values) == checksumConst(enc)
}

// Encode encodes hrp and a 5-bit data payload as a Bech32 or Bech32m string.
func Encode(hrp string, data []byte, enc Encoding) (string, error) {
	if len(hrp) < 1 || len(hrp) > 83 {
		return "", btcerr.Newf(btcerr.KindBech32InputFormat, "hrp length %d out of range", len(hrp))
	}
	for i := 0; i < len(hrp); i++ {
		if hrp[i] < 0x21 || hrp[i] > 0x7e {
			return "", btcerr.Newf(btcerr.KindBech32InputFormat, "invalid hrp byte 0x%02x", hrp[i])
		}
	}
	lower := strings.ToLower(hrp)
	checksum := createChecksum(lower, data, enc)
	combined := append(append([]byte{}, data...), checksum...)

	var sb strings.Builder
	sb.WriteString(lower)
	sb.WriteByte('1')
	for _, b := range combined {
		if int(b) >= len(charset) {
			return "", btcerr.Newf(btcerr.KindBech32InputData, "data value %d out of range", b)
		}
		sb.WriteByte(charset[b])
	}

	out := sb.String()
	if len(out) > 90 {
		return "", btcerr.Newf(btcerr.KindBech32InputFormat, "encoded length %d exceeds 90", len(out))
	}
	return out, nil
}

// Decode decodes a Bech32 or Bech32m string, returning the HRP, the 5-bit
// data payload (without the checksum), and which checksum constant matched.
func Decode(s string) (hrp string, data []byte, enc Encoding, err error) {
	if len(s) < 8 || len(s) > 90 {
		return "", nil, 0, btcerr.Newf(btcerr.KindBech32InputFormat, "length %d out of range", len(s))
	}
	hasLower, hasUpper := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x21 || c > 0x7e {
			return "", nil, 0, btcerr.Newf(btcerr.KindBech32InputFormat, "invalid byte 0x%02x", c)
		}
		if c >= 'a' && c <= 'z' {
			hasLower = true
		}
		if c >= 'A' && c <= 'Z' {
			hasUpper = true
		}
	}
	if hasLower && hasUpper {
		return "", nil, 0, btcerr.New(btcerr.KindBech32InputFormat, nil)
	}

	lowered := strings.ToLower(s)
	sep := strings.LastIndexByte(lowered, '1')
	if sep < 1 || sep+7 > len(lowered) {
		return "", nil, 0, btcerr.New(btcerr.KindBech32InputFormat, nil)
	}

	hrpPart := lowered[:sep]
	if len(hrpPart) < 1 || len(hrpPart) > 83 {
		return "", nil, 0, btcerr.Newf(btcerr.KindBech32InputFormat, "hrp length %d out of range", len(hrpPart))
	}
	dataPart := lowered[sep+1:]

	values := make([]byte, len(dataPart))
	for i := 0; i < len(dataPart); i++ {
		idx := charsetIndex[dataPart[i]]
		if idx < 0 {
			return "", nil, 0, btcerr.Newf(btcerr.KindBech32InputData, "invalid data character %q", dataPart[i])
		}
		values[i] = byte(idx)
	}

	if verifyChecksum(hrpPart, values, Bech32) {
		return hrpPart, values[:len(values)-6], Bech32, nil
	}
	if verifyChecksum(hrpPart, values, Bech32m) {
		return hrpPart, values[:len(values)-6], Bech32m, nil
	}
	return "", nil, 0, btcerr.New(btcerr.KindBech32InputChecksum, nil)
}

// ConvertBits regroups a slice of fromBits-wide values into toBits-wide
// values, big-endian bit packing. It delegates to btcutil/bech32's
// implementation of the same BIP173 algorithm.
func ConvertBits(data []byte, fromBits, toBits uint8, pad bool) ([]byte, error) {
	out, err := bech32.ConvertBits(data, fromBits, toBits, pad)
	if err != nil {
		return nil, btcerr.Wrap(btcerr.KindBech32InputData, "convert bits", err)
	}
	return out, nil
}
