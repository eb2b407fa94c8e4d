package mnemonic

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestGenerateToEntropyRoundTrip(t *testing.T) {
	for _, bits := range ValidEntropyBits {
		t.Run(hexLabel(bits), func(t *testing.T) {
			entropy := make([]byte, bits/8)
			for i := range entropy {
				entropy[i] = byte(i * 7)
			}
			m, err := Generate(entropy)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !Validate(m) {
				t.Errorf("Validate(%q) = false, want true", m)
			}
			got, err := ToEntropy(m)
			if err != nil {
				t.Fatalf("ToEntropy: %v", err)
			}
			if !bytes.Equal(got, entropy) {
				t.Errorf("ToEntropy round trip = %x, want %x", got, entropy)
			}
		})
	}
}

func hexLabel(bits int) string {
	switch bits {
	case 128:
		return "128bit"
	case 160:
		return "160bit"
	case 192:
		return "192bit"
	case 224:
		return "224bit"
	case 256:
		return "256bit"
	default:
		return "unknown"
	}
}

func TestGenerateRejectsInvalidEntropyLength(t *testing.T) {
	if _, err := Generate(make([]byte, 15)); err == nil {
		t.Error("expected error for non-standard entropy length, got nil")
	}
}

func TestValidateRejectsBadChecksum(t *testing.T) {
	m := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon"
	if Validate(m) {
		t.Errorf("Validate(%q) = true, want false (bad checksum)", m)
	}
}

func TestSeedFromMnemonicKnownVectorAllZeroEntropy(t *testing.T) {
	m := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	got := SeedFromMnemonic(m, "")
	want, _ := hex.DecodeString("5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4")
	if !bytes.Equal(got, want) {
		t.Errorf("SeedFromMnemonic = %x, want %x", got, want)
	}
}

func TestSeedFromMnemonicKnownVectorWithPassphrase(t *testing.T) {
	m := "legal winner thank year wave sausage worth useful legal winner thank yellow"
	got := SeedFromMnemonic(m, "TREZOR")
	want, _ := hex.DecodeString("2e8905819b8723fe2c1d161860e5ee1830318dbf49a83bd451cfb8440c28bd6fa457fe1296106559a3c80937a1c1069be3a3a5bd381ee6260e8d9739fce1f607")
	if !bytes.Equal(got, want) {
		t.Errorf("SeedFromMnemonic = %x, want %x", got, want)
	}
}

func TestSeedFromMnemonicNormalizesPassphrase(t *testing.T) {
	m := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	// U+00E9 (precomposed e-acute) vs "e"+U+0301 (decomposed) must
	// normalize (NFKD) to the same seed.
	precomposed := "café"
	decomposed := "café"
	a := SeedFromMnemonic(m, precomposed)
	b := SeedFromMnemonic(m, decomposed)
	if !bytes.Equal(a, b) {
		t.Errorf("SeedFromMnemonic did not normalize passphrase: %x vs %x", a, b)
	}
}

func TestSeedFromValidMnemonicRejectsInvalidChecksum(t *testing.T) {
	m := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon"
	if _, err := SeedFromValidMnemonic(m, ""); err == nil {
		t.Error("expected error for mnemonic with invalid checksum, got nil")
	}
}

func TestSeedFromValidMnemonicAcceptsValid(t *testing.T) {
	m := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	seed, err := SeedFromValidMnemonic(m, "")
	if err != nil {
		t.Fatalf("SeedFromValidMnemonic: %v", err)
	}
	if len(seed) != 64 {
		t.Errorf("len(seed) = %d, want 64", len(seed))
	}
}
