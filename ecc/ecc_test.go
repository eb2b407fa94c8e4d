package ecc

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustPrivateKey(t *testing.T, hexScalar string) *PrivateKey {
	t.Helper()
	b, err := hex.DecodeString(hexScalar)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	priv, err := NewPrivateKeyFromBytes(b)
	if err != nil {
		t.Fatalf("NewPrivateKeyFromBytes: %v", err)
	}
	return priv
}

func TestNewPrivateKeyFromBytesRejectsZero(t *testing.T) {
	if _, err := NewPrivateKeyFromBytes(make([]byte, 32)); err == nil {
		t.Error("expected error for zero scalar, got nil")
	}
}

func TestNewPrivateKeyFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := NewPrivateKeyFromBytes(make([]byte, 31)); err == nil {
		t.Error("expected error for short scalar, got nil")
	}
}

func TestNewPrivateKeyFromBytesRejectsOverflow(t *testing.T) {
	// Curve order n; any value >= n must be rejected rather than silently
	// reduced.
	n, _ := hex.DecodeString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141")
	if _, err := NewPrivateKeyFromBytes(n); err == nil {
		t.Error("expected error for scalar == n, got nil")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv := mustPrivateKey(t, "972e85e7e3345cb7e6a5f812aa5f5bea82005e3ded7b32d9d56f5ab2504f1648")
	digest := make([]byte, 32)
	for i := range digest {
		digest[i] = byte(i)
	}
	sig, err := priv.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	pub := priv.PubKey()
	ok, err := pub.Verify(digest, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify = false, want true for matching key/signature")
	}
}

func TestVerifyFailsForWrongKey(t *testing.T) {
	priv := mustPrivateKey(t, "0000000000000000000000000000000000000000000000000000000000000001")
	other := mustPrivateKey(t, "0000000000000000000000000000000000000000000000000000000000000002")
	digest := bytes.Repeat([]byte{0x11}, 32)

	sig, err := priv.Sign(digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ok, err := other.PubKey().Verify(digest, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify = true for mismatched key, want false")
	}
}

func TestParsePublicKeyCompressedUncompressedRoundTrip(t *testing.T) {
	priv := mustPrivateKey(t, "0000000000000000000000000000000000000000000000000000000000000001")
	pub := priv.PubKey()

	compressed, err := ParsePublicKey(pub.SerializeCompressed())
	if err != nil {
		t.Fatalf("ParsePublicKey(compressed): %v", err)
	}
	uncompressed, err := ParsePublicKey(pub.SerializeUncompressed())
	if err != nil {
		t.Fatalf("ParsePublicKey(uncompressed): %v", err)
	}
	if !bytes.Equal(compressed.SerializeCompressed(), uncompressed.SerializeCompressed()) {
		t.Error("compressed and uncompressed parses disagree on the point")
	}
}

func TestWIFRoundTripConcreteVector(t *testing.T) {
	wif := "5JxsKGzCoJwaWEjQvfNqD4qPEoUQ696BUEq68Y68WQ2GNR6zrxW"
	priv, versionByte, compressed, err := DecodeWIF(wif)
	if err != nil {
		t.Fatalf("DecodeWIF: %v", err)
	}
	if compressed {
		t.Error("compressed = true, want false for this vector")
	}
	if versionByte != 0x80 {
		t.Errorf("versionByte = 0x%02x, want 0x80", versionByte)
	}
	want, _ := hex.DecodeString("972e85e7e3345cb7e6a5f812aa5f5bea82005e3ded7b32d9d56f5ab2504f1648")
	if !bytes.Equal(priv.Bytes(), want) {
		t.Errorf("scalar = %x, want %x", priv.Bytes(), want)
	}

	reencoded := priv.EncodeWIF(versionByte, compressed)
	if reencoded != wif {
		t.Errorf("re-encoded WIF = %s, want %s", reencoded, wif)
	}
}

func TestWIFEncodeDecodeRoundTripCompressed(t *testing.T) {
	priv := mustPrivateKey(t, "0000000000000000000000000000000000000000000000000000000000000001")
	wif := priv.EncodeWIF(0x80, true)

	decoded, versionByte, compressed, err := DecodeWIF(wif)
	if err != nil {
		t.Fatalf("DecodeWIF: %v", err)
	}
	if !compressed {
		t.Error("compressed = false, want true")
	}
	if versionByte != 0x80 {
		t.Errorf("versionByte = 0x%02x, want 0x80", versionByte)
	}
	if !bytes.Equal(decoded.Bytes(), priv.Bytes()) {
		t.Errorf("decoded scalar mismatch: %x vs %x", decoded.Bytes(), priv.Bytes())
	}
}

func TestTaprootOutputKeyIsDeterministicTweak(t *testing.T) {
	priv := mustPrivateKey(t, "0000000000000000000000000000000000000000000000000000000000000001")
	pub := priv.PubKey()

	out1, err := pub.TaprootOutputKey()
	if err != nil {
		t.Fatalf("TaprootOutputKey: %v", err)
	}
	out2, err := pub.TaprootOutputKey()
	if err != nil {
		t.Fatalf("TaprootOutputKey: %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Error("TaprootOutputKey is not deterministic")
	}
	if len(out1) != 32 {
		t.Fatalf("output key length = %d, want 32", len(out1))
	}
	if bytes.Equal(out1, pub.XOnlyBytes()) {
		t.Error("output key must differ from the untweaked internal key")
	}
}

func TestSignMessageVerifyMessageRoundTrip(t *testing.T) {
	priv := mustPrivateKey(t, "0000000000000000000000000000000000000000000000000000000000000001")
	msg := []byte("hello bitcoin")

	sig, err := priv.SignMessage(msg, true)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	ok, err := priv.PubKey().VerifyMessage(msg, sig)
	if err != nil {
		t.Fatalf("VerifyMessage: %v", err)
	}
	if !ok {
		t.Error("VerifyMessage = false, want true")
	}
}

func TestVerifyMessageFailsForWrongMessage(t *testing.T) {
	priv := mustPrivateKey(t, "0000000000000000000000000000000000000000000000000000000000000001")
	sig, err := priv.SignMessage([]byte("original"), true)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	ok, err := priv.PubKey().VerifyMessage([]byte("tampered"), sig)
	if err != nil {
		t.Fatalf("VerifyMessage: %v", err)
	}
	if ok {
		t.Error("VerifyMessage = true for tampered message, want false")
	}
}
