package txscript

import "github.com/olehkaliuzhnyi/btcprim/btcerr"

// defaultScriptNumLen is the maximum encoded length accepted for a script
// number outside of CHECKLOCKTIMEVERIFY/CHECKSEQUENCEVERIFY, which accept
// wider 5-byte numbers.
const defaultScriptNumLen = 4

// makeScriptNum decodes the minimal-signed-magnitude little-endian integer
// encoding Script uses for arithmetic opcodes.
func makeScriptNum(data []byte, requireMinimal bool, maxLen int) (int64, error) {
	if len(data) > maxLen {
		return 0, btcerr.Newf(btcerr.KindScriptRuntime, "numeric operand length %d exceeds max %d", len(data), maxLen)
	}
	if requireMinimal && len(data) > 0 {
		last := data[len(data)-1]
		if last&0x7f == 0 {
			if len(data) == 1 || data[len(data)-2]&0x80 == 0 {
				return 0, btcerr.New(btcerr.KindScriptRuntime, nil)
			}
		}
	}
	if len(data) == 0 {
		return 0, nil
	}
	var result int64
	for i, b := range data {
		result |= int64(b) << uint(8*i)
	}
	if data[len(data)-1]&0x80 != 0 {
		result &^= int64(0x80) << uint(8*(len(data)-1))
		result = -result
	}
	return result, nil
}

// scriptNumBytes encodes n in Script's minimal-signed-magnitude
// little-endian form.
func scriptNumBytes(n int64) []byte {
	if n == 0 {
		return nil
	}
	negative := n < 0
	abs := n
	if negative {
		abs = -n
	}
	var result []byte
	for abs > 0 {
		result = append(result, byte(abs&0xff))
		abs >>= 8
	}
	if result[len(result)-1]&0x80 != 0 {
		if negative {
			result = append(result, 0x80)
		} else {
			result = append(result, 0x00)
		}
	} else if negative {
		result[len(result)-1] |= 0x80
	}
	return result
}
