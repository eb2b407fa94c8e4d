package txscript

import (
	"bytes"
	"testing"
)

func TestClassifyScriptTemplates(t *testing.T) {
	hash20 := bytes.Repeat([]byte{0x11}, 20)
	hash32 := bytes.Repeat([]byte{0x22}, 32)
	pub33 := bytes.Repeat([]byte{0x02}, 33)

	tests := []struct {
		name   string
		script func() ([]byte, error)
		want   Class
	}{
		{"pubkeyhash", func() ([]byte, error) { return PayToPubKeyHashScript(hash20) }, PubKeyHash},
		{"scripthash", func() ([]byte, error) { return PayToScriptHashScript(hash20) }, ScriptHash},
		{"witness v0 keyhash", func() ([]byte, error) { return PayToWitnessPubKeyHashScript(hash20) }, WitnessV0PubKeyHash},
		{"witness v0 scripthash", func() ([]byte, error) { return PayToWitnessScriptHashScript(hash32) }, WitnessV0ScriptHash},
		{"witness v1 taproot", func() ([]byte, error) { return PayToTaprootScript(hash32) }, WitnessV1Taproot},
		{"pubkey", func() ([]byte, error) { return PayToPubKeyScript(pub33) }, PubKey},
		{"nulldata", func() ([]byte, error) { return NullDataScript([]byte("hello")) }, NullData},
		{"multisig", func() ([]byte, error) { return MultiSigScript([][]byte{pub33, pub33}, 1) }, MultiSig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := tt.script()
			if err != nil {
				t.Fatalf("build script: %v", err)
			}
			got := ClassifyScript(script)
			if got != tt.want {
				t.Errorf("ClassifyScript = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyScriptNonStandard(t *testing.T) {
	script, err := NewBuilder().AddOp(OP_DUP).AddOp(OP_DROP).Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	if got := ClassifyScript(script); got != NonStandard {
		t.Errorf("ClassifyScript = %v, want NonStandard", got)
	}
}

func TestExtractWitnessProgram(t *testing.T) {
	hash20 := bytes.Repeat([]byte{0x33}, 20)
	script, err := PayToWitnessPubKeyHashScript(hash20)
	if err != nil {
		t.Fatalf("PayToWitnessPubKeyHashScript: %v", err)
	}
	version, program, ok := ExtractWitnessProgram(script)
	if !ok {
		t.Fatal("ExtractWitnessProgram: ok = false, want true")
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
	if !bytes.Equal(program, hash20) {
		t.Errorf("program = %x, want %x", program, hash20)
	}
}

func TestExtractWitnessProgramRejectsNonWitnessScript(t *testing.T) {
	script, err := PayToScriptHashScript(bytes.Repeat([]byte{0x01}, 20))
	if err != nil {
		t.Fatalf("PayToScriptHashScript: %v", err)
	}
	if _, _, ok := ExtractWitnessProgram(script); ok {
		t.Error("expected ExtractWitnessProgram to reject a P2SH script")
	}
}

func TestClassString(t *testing.T) {
	if got := PubKeyHash.String(); got != "pubkeyhash" {
		t.Errorf("PubKeyHash.String() = %q, want %q", got, "pubkeyhash")
	}
	if got := Class(99).String(); got != "invalid" {
		t.Errorf("Class(99).String() = %q, want %q", got, "invalid")
	}
}

func TestNullDataScriptRejectsOversizedPayload(t *testing.T) {
	if _, err := NullDataScript(bytes.Repeat([]byte{0x01}, MaxDataCarrierSize+1)); err == nil {
		t.Error("expected error for an oversized OP_RETURN payload")
	}
}
