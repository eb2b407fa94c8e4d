package bech32

import "github.com/olehkaliuzhnyi/btcprim/btcerr"

// SegwitEncode encodes a witness version and program as a segwit address
// string: version 0 uses Bech32, version >= 1 uses Bech32m, per BIP173/350.
func SegwitEncode(hrp string, version byte, program []byte) (string, error) {
	if err := ValidateProgram(version, program); err != nil {
		return "", err
	}
	converted, err := ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", err
	}
	data := make([]byte, 0, len(converted)+1)
	data = append(data, version)
	data = append(data, converted...)

	enc := Bech32
	if version > 0 {
		enc = Bech32m
	}
	return Encode(hrp, data, enc)
}

// SegwitDecode decodes a segwit address string for the given expected HRP,
// returning the witness version and program. It enforces that version 0
// strings used plain Bech32 and version >= 1 strings used Bech32m.
func SegwitDecode(expectedHRP, s string) (version byte, program []byte, err error) {
	hrp, data, enc, err := Decode(s)
	if err != nil {
		return 0, nil, err
	}
	if hrp != expectedHRP {
		return 0, nil, btcerr.Newf(btcerr.KindBech32Type, "hrp %q does not match expected %q", hrp, expectedHRP)
	}
	if len(data) < 1 {
		return 0, nil, btcerr.New(btcerr.KindSegwitProgram, nil)
	}
	version = data[0]

	wantEnc := Bech32
	if version > 0 {
		wantEnc = Bech32m
	}
	if enc != wantEnc {
		return 0, nil, btcerr.Newf(btcerr.KindSegwitProgram, "witness version %d used wrong checksum constant", version)
	}

	program, err = ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return 0, nil, btcerr.Wrap(btcerr.KindSegwitProgram, "convert program bits", err)
	}
	if err := ValidateProgram(version, program); err != nil {
		return 0, nil, err
	}
	return version, program, nil
}

// ValidateProgram checks witness version and program length:
// version in [0,16], program length in [2,40], and version 0 programs must
// be exactly 20 or 32 bytes (P2WPKH or P2WSH).
func ValidateProgram(version byte, program []byte) error {
	if version > 16 {
		return btcerr.Newf(btcerr.KindSegwitProgram, "witness version %d out of range", version)
	}
	if len(program) < 2 || len(program) > 40 {
		return btcerr.Newf(btcerr.KindSegwitProgram, "witness program length %d out of range", len(program))
	}
	if version == 0 && len(program) != 20 && len(program) != 32 {
		return btcerr.Newf(btcerr.KindSegwitProgram, "witness v0 program length %d must be 20 or 32", len(program))
	}
	return nil
}
