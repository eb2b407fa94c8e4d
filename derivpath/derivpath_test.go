package derivpath

import (
	"encoding/hex"
	"reflect"
	"testing"

	"github.com/olehkaliuzhnyi/btcprim/chaincfg"
	"github.com/olehkaliuzhnyi/btcprim/hdkeys"
)

func mustMasterFromXprv(t *testing.T, xprv string) *hdkeys.PrivateKey {
	t.Helper()
	priv, pub, err := hdkeys.ParseExtendedKey(xprv, chaincfg.Default)
	if err != nil {
		t.Fatalf("ParseExtendedKey: %v", err)
	}
	if pub != nil {
		t.Fatal("ParseExtendedKey returned a public key for a private blob")
	}
	if priv == nil {
		t.Fatal("ParseExtendedKey returned no private key")
	}
	return priv
}

// TestDeriveEntropyVector1 seeds the suite with the published BIP85 root
// entropy vector: path m/83696968'/0'/0' off a known xprv.
func TestDeriveEntropyVector1(t *testing.T) {
	master := mustMasterFromXprv(t, "xprv9s21ZrQH143K2LBWUUQRFXhucrQqBpKdRRxNVq2zBqsx8HVqFk2uYo8kmbaLLHRdqtQpUm98uKfu3vca1LqdGhUtyoFnCNkfmXRyPXLjbKb")

	path := []uint32{hdkeys.Harden(83696968), hdkeys.Harden(0), hdkeys.Harden(0)}
	entropy, err := DeriveEntropy(master, path)
	if err != nil {
		t.Fatalf("DeriveEntropy: %v", err)
	}
	if len(entropy) != 64 {
		t.Fatalf("entropy length = %d, want 64", len(entropy))
	}
	got := hex.EncodeToString(entropy)
	wantPrefix := "efecfbccffea3132"
	if got[:len(wantPrefix)] != wantPrefix {
		t.Errorf("entropy = %s, want prefix %s", got, wantPrefix)
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"bip44 account", "m/44'/0'/0'/0/0"},
		{"mixed case hardener", "m/44H/0h/0'/1/5"},
		{"bare master", "m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indices, err := Parse(tt.path)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.path, err)
			}
			got := String(indices)
			indices2, err := Parse(got)
			if err != nil {
				t.Fatalf("Parse(String(...)): %v", err)
			}
			if !reflect.DeepEqual(indices, indices2) {
				t.Errorf("round trip mismatch: %v != %v", indices, indices2)
			}
		})
	}
}

func TestParseRejectsMissingMPrefix(t *testing.T) {
	if _, err := Parse("44'/0'/0'"); err == nil {
		t.Error("expected error for path missing \"m\" prefix")
	}
}

func TestParseRejectsEmptyPath(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestBuildBIP44(t *testing.T) {
	got := BuildBIP44(PurposeBIP44, 0, 0, 0, 5)
	want := []uint32{hdkeys.Harden(44), hdkeys.Harden(0), hdkeys.Harden(0), 0, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildBIP44 = %v, want %v", got, want)
	}

	parsed, err := Parse(String(got))
	if err != nil {
		t.Fatalf("Parse(String(...)): %v", err)
	}
	if !reflect.DeepEqual(parsed, got) {
		t.Errorf("round trip = %v, want %v", parsed, got)
	}
}

func TestAccountFromAccountComposition(t *testing.T) {
	account := Account(PurposeBIP84, 0, 2)
	full := FromAccount(account, 1, 7)
	want := []uint32{hdkeys.Harden(84), hdkeys.Harden(0), hdkeys.Harden(2), 1, 7}
	if !reflect.DeepEqual(full, want) {
		t.Errorf("FromAccount = %v, want %v", full, want)
	}
}

func TestDeriveWalksEachIndex(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	master, err := hdkeys.NewMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}

	path := BuildBIP44(PurposeBIP44, 0, 0, 0, 0)
	derived, err := Derive(master, path)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	want, err := master.Child(path[0])
	if err != nil {
		t.Fatalf("Child: %v", err)
	}
	for _, idx := range path[1:] {
		want, err = want.Child(idx)
		if err != nil {
			t.Fatalf("Child: %v", err)
		}
	}
	if hex.EncodeToString(derived.Scalar()) != hex.EncodeToString(want.Scalar()) {
		t.Errorf("Derive scalar = %x, want %x", derived.Scalar(), want.Scalar())
	}
}

func TestBIP85PathBuilders(t *testing.T) {
	t.Run("bip39", func(t *testing.T) {
		got := BIP85BIP39Path(0, 12, 0)
		want := []uint32{hdkeys.Harden(bip85Purpose), hdkeys.Harden(uint32(BIP85AppBIP39)), hdkeys.Harden(0), hdkeys.Harden(12), hdkeys.Harden(0)}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("BIP85BIP39Path = %v, want %v", got, want)
		}
	})
	t.Run("hex", func(t *testing.T) {
		got := BIP85HexPath(32, 0)
		want := []uint32{hdkeys.Harden(bip85Purpose), hdkeys.Harden(uint32(BIP85AppHex)), hdkeys.Harden(32), hdkeys.Harden(0)}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("BIP85HexPath = %v, want %v", got, want)
		}
	})
	t.Run("wif", func(t *testing.T) {
		got := BIP85WIFPath(0)
		want := []uint32{hdkeys.Harden(bip85Purpose), hdkeys.Harden(uint32(BIP85AppWIF)), hdkeys.Harden(0)}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("BIP85WIFPath = %v, want %v", got, want)
		}
	})
}

func TestDeriveHexEntropyLengthAndBounds(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	master, err := hdkeys.NewMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}

	entropy, err := DeriveHexEntropy(master, 32, 0)
	if err != nil {
		t.Fatalf("DeriveHexEntropy: %v", err)
	}
	if len(entropy) != 32 {
		t.Errorf("entropy length = %d, want 32", len(entropy))
	}

	if _, err := DeriveHexEntropy(master, 15, 0); err == nil {
		t.Error("expected error for numBytes below 16")
	}
	if _, err := DeriveHexEntropy(master, 65, 0); err == nil {
		t.Error("expected error for numBytes above 64")
	}
}

func TestDeriveBIP39EntropyRejectsUnsupportedWordCount(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	master, err := hdkeys.NewMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	if _, err := DeriveBIP39Entropy(master, 0, 13, 0); err == nil {
		t.Error("expected error for unsupported word count")
	}
}

func TestDeriveMnemonicProducesWords(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	master, err := hdkeys.NewMasterKey(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	words, err := DeriveMnemonic(master, 0, 12, 0)
	if err != nil {
		t.Fatalf("DeriveMnemonic: %v", err)
	}
	if words == "" {
		t.Error("DeriveMnemonic returned empty string")
	}
}
