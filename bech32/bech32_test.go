package bech32

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		hrp  string
		data []byte
		enc  Encoding
	}{
		{"bech32 empty data", "bc", []byte{}, Bech32},
		{"bech32 with data", "bc", []byte{0, 1, 2, 3, 4, 5}, Bech32},
		{"bech32m with data", "bc", []byte{1, 2, 3, 4, 5}, Bech32m},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Encode(tt.hrp, tt.data, tt.enc)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			hrp, data, enc, err := Decode(s)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if hrp != tt.hrp {
				t.Errorf("hrp = %q, want %q", hrp, tt.hrp)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("data = %v, want %v", data, tt.data)
			}
			if enc != tt.enc {
				t.Errorf("encoding = %v, want %v", enc, tt.enc)
			}
		})
	}
}

func TestDecodeRejectsMixedCase(t *testing.T) {
	s, err := Encode("bc", []byte{0, 1, 2}, Bech32)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	mixed := strings.ToUpper(s[:len(s)/2]) + s[len(s)/2:]
	if _, _, _, err := Decode(mixed); err == nil {
		t.Error("expected error decoding mixed-case string, got nil")
	}
}

func TestDecodeRejectsCorruptChecksum(t *testing.T) {
	s, err := Encode("bc", []byte{0, 1, 2}, Bech32)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Flip the final checksum character to a different valid charset letter.
	last := s[len(s)-1]
	var replacement byte
	for i := 0; i < len(charset); i++ {
		if charset[i] != last {
			replacement = charset[i]
			break
		}
	}
	mutated := s[:len(s)-1] + string(replacement)
	if _, _, _, err := Decode(mutated); err == nil {
		t.Error("expected checksum error after mutation, got nil")
	}
}

func TestSegwitDecodeConcreteVector(t *testing.T) {
	// BIP173 test vector.
	addr := "BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4"
	version, program, err := SegwitDecode("bc", strings.ToLower(addr))
	if err != nil {
		t.Fatalf("SegwitDecode: %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
	want, _ := hex.DecodeString("751e76e8199196d454941c45d1b3a323f1433bd6")
	if !bytes.Equal(program, want) {
		t.Errorf("program = %x, want %x", program, want)
	}
}

func TestSegwitEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		version byte
		program []byte
	}{
		{"v0 p2wpkh", 0, bytes.Repeat([]byte{0xAB}, 20)},
		{"v0 p2wsh", 0, bytes.Repeat([]byte{0xCD}, 32)},
		{"v1 taproot", 1, bytes.Repeat([]byte{0xEF}, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := SegwitEncode("bc", tt.version, tt.program)
			if err != nil {
				t.Fatalf("SegwitEncode: %v", err)
			}
			version, program, err := SegwitDecode("bc", addr)
			if err != nil {
				t.Fatalf("SegwitDecode: %v", err)
			}
			if version != tt.version {
				t.Errorf("version = %d, want %d", version, tt.version)
			}
			if !bytes.Equal(program, tt.program) {
				t.Errorf("program = %x, want %x", program, tt.program)
			}
		})
	}
}

func TestValidateProgram(t *testing.T) {
	tests := []struct {
		name    string
		version byte
		program []byte
		wantErr bool
	}{
		{"v0 20 bytes ok", 0, make([]byte, 20), false},
		{"v0 32 bytes ok", 0, make([]byte, 32), false},
		{"v0 21 bytes bad", 0, make([]byte, 21), true},
		{"v1 32 bytes ok", 1, make([]byte, 32), false},
		{"version too high", 17, make([]byte, 20), true},
		{"program too short", 0, make([]byte, 1), true},
		{"program too long", 0, make([]byte, 41), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProgram(tt.version, tt.program)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProgram() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
