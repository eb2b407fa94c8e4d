package utxo

import (
	"testing"

	"github.com/olehkaliuzhnyi/btcprim/wire"
)

func sampleOutPoint(b byte, index uint32) wire.OutPoint {
	var h wire.Hash
	h[0] = b
	return wire.OutPoint{Hash: h, Index: index}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	op := sampleOutPoint(1, 0)
	out := &Output{Value: 1000, LockingScript: []byte{0x51}}
	r.Register(op, out)

	got, err := r.Lookup(op)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != out {
		t.Error("Lookup returned a different Output than was registered")
	}
}

func TestLookupMissingWithoutLoaderFails(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup(sampleOutPoint(9, 0)); err == nil {
		t.Error("expected error looking up an unregistered outpoint with no loader")
	}
}

func TestUnregisterRemovesEntry(t *testing.T) {
	r := NewRegistry()
	op := sampleOutPoint(2, 0)
	r.Register(op, &Output{Value: 500})
	r.Unregister(op)
	if _, err := r.Lookup(op); err == nil {
		t.Error("expected error looking up an unregistered outpoint")
	}
}

func TestLookupLoaderIsCalledAtMostOnce(t *testing.T) {
	r := NewRegistry()
	op := sampleOutPoint(3, 0)
	calls := 0
	r.SetLoader(func(lookup wire.OutPoint) (*Output, error) {
		calls++
		return &Output{Value: 777, LockingScript: []byte{0x52}}, nil
	})

	first, err := r.Lookup(op)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if first.Value != 777 {
		t.Errorf("Value = %d, want 777", first.Value)
	}
	if _, err := r.Lookup(op); err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}
}

func TestLookupLoaderErrorPropagates(t *testing.T) {
	r := NewRegistry()
	r.SetLoader(func(wire.OutPoint) (*Output, error) {
		return nil, errNotFound
	})
	if _, err := r.Lookup(sampleOutPoint(4, 0)); err == nil {
		t.Error("expected the loader's error to propagate")
	}
}

func TestLookupLoaderNilResultIsError(t *testing.T) {
	r := NewRegistry()
	r.SetLoader(func(wire.OutPoint) (*Output, error) {
		return nil, nil
	})
	if _, err := r.Lookup(sampleOutPoint(5, 0)); err == nil {
		t.Error("expected error when the loader reports no output")
	}
}

func TestFeeSumsInputsMinusOutputs(t *testing.T) {
	r := NewRegistry()
	op0 := sampleOutPoint(6, 0)
	op1 := sampleOutPoint(6, 1)
	r.Register(op0, &Output{Value: 1000})
	r.Register(op1, &Output{Value: 2000})

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(op0, nil))
	tx.AddTxIn(wire.NewTxIn(op1, nil))
	tx.AddTxOut(wire.NewTxOut(2500, []byte{0x51}))

	fee, err := Fee(tx, r)
	if err != nil {
		t.Fatalf("Fee: %v", err)
	}
	if fee != 500 {
		t.Errorf("Fee = %d, want 500", fee)
	}
}

func TestUpdateFromTransactionUnregistersSpentAndRegistersCreated(t *testing.T) {
	r := NewRegistry()
	spent := sampleOutPoint(7, 0)
	r.Register(spent, &Output{Value: 1000})

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(spent, nil))
	tx.AddTxOut(wire.NewTxOut(900, []byte{0x51}))

	if err := UpdateFromTransaction(tx, r, nil); err != nil {
		t.Fatalf("UpdateFromTransaction: %v", err)
	}
	if _, err := r.Lookup(spent); err == nil {
		t.Error("expected the spent outpoint to be unregistered")
	}

	hash, err := tx.TxHash()
	if err != nil {
		t.Fatalf("TxHash: %v", err)
	}
	created := wire.OutPoint{Hash: hash, Index: 0}
	out, err := r.Lookup(created)
	if err != nil {
		t.Fatalf("Lookup(created): %v", err)
	}
	if out.Value != 900 {
		t.Errorf("created output value = %d, want 900", out.Value)
	}
}

func TestFeeRate(t *testing.T) {
	r := NewRegistry()
	op := sampleOutPoint(8, 0)
	r.Register(op, &Output{Value: 100000})

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(op, nil))
	tx.AddTxOut(wire.NewTxOut(99000, []byte{0x51}))

	rate, err := FeeRate(tx, r)
	if err != nil {
		t.Fatalf("FeeRate: %v", err)
	}
	if rate <= 0 {
		t.Errorf("FeeRate = %f, want > 0", rate)
	}
}

// errNotFound is a sentinel used only to exercise loader error propagation.
type notFoundError struct{}

func (notFoundError) Error() string { return "utxo not found upstream" }

var errNotFound = notFoundError{}
