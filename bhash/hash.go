// Package bhash implements the hash and key-stretching primitives used
// throughout btcprim: SHA256, double-SHA256 ("hash256"), RIPEMD160(SHA256)
// ("hash160"), HMAC-SHA512, and PBKDF2-HMAC-SHA512.
package bhash

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD-160 is mandated by the Bitcoin protocol's Hash160
)

// Sum256 returns the SHA256 digest of x.
func Sum256(x []byte) [32]byte {
	return sha256.Sum256(x)
}

// Hash256 returns SHA256(SHA256(x)), Bitcoin's "double SHA256".
func Hash256(x []byte) [32]byte {
	first := sha256.Sum256(x)
	return sha256.Sum256(first[:])
}

// Hash160 returns RIPEMD160(SHA256(x)).
func Hash160(x []byte) [20]byte {
	sum := sha256.Sum256(x)
	return RIPEMD160(sum[:])
}

// RIPEMD160 returns the bare RIPEMD-160 digest of x, with no SHA256
// pre-step. Used directly by the Script OP_RIPEMD160 opcode, which Hash160
// does not cover.
func RIPEMD160(x []byte) [20]byte {
	h := ripemd160.New()
	h.Write(x)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HMACSHA512 returns HMAC-SHA512(key, data).
func HMACSHA512(key, data []byte) [64]byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	var out [64]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// PBKDF2HMACSHA512 derives dkLen bytes from password and salt using
// PBKDF2-HMAC-SHA512 with the given iteration count.
func PBKDF2HMACSHA512(password, salt []byte, iters, dkLen int) []byte {
	return pbkdf2.Key(password, salt, iters, dkLen, sha512.New)
}
