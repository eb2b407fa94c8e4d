// Package utxo implements the unspent-output registry: an outpoint-keyed
// cache of {value, locking script, confirming block} records that txverify
// and txsign consult to resolve what a transaction's inputs actually
// spend, with an optional pluggable loader for outpoints the registry was
// not pre-seeded with.
package utxo

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/olehkaliuzhnyi/btcprim/btcerr"
	"github.com/olehkaliuzhnyi/btcprim/wire"
)

// BlockRef is the minimal block context a caller supplies for a UTXO's
// confirming block (for relative-locktime checks) or for the block a
// transaction is being verified against (for absolute-locktime checks).
// Computing median-time-past from a full header chain is the caller's
// responsibility; the registry only stores what it is given.
type BlockRef struct {
	Height         int64
	MedianTimePast int64
}

// Output is a UTXO: the spent output's value and locking script, plus the
// block it confirmed in (nil for a not-yet-confirmed output, which fails
// any relative-locktime check that requires one).
type Output struct {
	Value         int64
	LockingScript []byte
	Confirmed     *BlockRef
}

// Loader resolves an outpoint the registry has no cached entry for. It must
// be idempotent: the registry caches a non-nil result, so later lookups of
// that outpoint do not call the loader again, but a call that returns an
// error or nil is not cached, concurrent lookups that miss together each
// call the loader, and an outpoint removed by Unregister is loaded again.
type Loader func(op wire.OutPoint) (*Output, error)

// Registry is a process-wide (or privately held) cache of resolved UTXOs.
type Registry struct {
	mu      sync.RWMutex
	outputs map[wire.OutPoint]*Output
	loader  Loader
	logger  *slog.Logger
}

// NewRegistry returns an empty Registry with no loader configured.
func NewRegistry() *Registry {
	return &Registry{
		outputs: make(map[wire.OutPoint]*Output),
		logger:  slog.Default().With("component", "utxo"),
	}
}

// SetLogger overrides the diagnostic logger (nil resets to slog.Default()).
func (r *Registry) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	r.logger = l.With("component", "utxo")
}

// SetLoader installs the fallback loader consulted on a cache miss.
func (r *Registry) SetLoader(loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loader = loader
}

// Register seeds the registry with a known UTXO, overwriting any existing
// entry for the same outpoint.
func (r *Registry) Register(op wire.OutPoint, out *Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[op] = out
}

// Unregister removes a cached UTXO, e.g. once its transaction has spent it
// and the caller wants to catch accidental double-spends within a batch.
func (r *Registry) Unregister(op wire.OutPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outputs, op)
}

// Lookup resolves op from the cache, falling back to the configured loader
// once on a miss and caching the result when it is a non-nil output; a
// loader error or nil result is returned without being cached. A missing UTXO
// (no cache entry, no loader, or a loader that reports nothing) is a fatal
// KindTransactionInput error — callers must not treat it as retryable.
func (r *Registry) Lookup(op wire.OutPoint) (*Output, error) {
	r.mu.RLock()
	out, ok := r.outputs[op]
	loader := r.loader
	r.mu.RUnlock()
	if ok {
		return out, nil
	}

	label := fmt.Sprintf("%s:%d", op.Hash.String(), op.Index)
	if loader == nil {
		return nil, btcerr.Newf(btcerr.KindTransactionInput, "utxo %s not registered and no loader configured", label)
	}

	loaded, err := loader(op)
	if err != nil {
		return nil, btcerr.Wrap(btcerr.KindTransactionInput, "load utxo "+label, err)
	}
	if loaded == nil {
		return nil, btcerr.Newf(btcerr.KindTransactionInput, "utxo %s not found", label)
	}

	r.mu.Lock()
	r.outputs[op] = loaded
	r.mu.Unlock()
	r.logger.Debug("loaded utxo", "outpoint", label)
	return loaded, nil
}

// Fee resolves every input of tx through r and returns the sum of input
// values minus the sum of output values. A negative result
// means tx is not yet balanced (outputs exceed inputs), which txverify.Verify
// independently rejects.
func Fee(tx *wire.MsgTx, r *Registry) (int64, error) {
	var totalIn int64
	for _, in := range tx.TxIn {
		out, err := r.Lookup(in.PreviousOutPoint)
		if err != nil {
			return 0, err
		}
		totalIn += out.Value
	}
	var totalOut int64
	for _, out := range tx.TxOut {
		totalOut += out.Value
	}
	return totalIn - totalOut, nil
}

// UpdateFromTransaction applies tx's effect on r:
// every outpoint tx spends is unregistered, and every output tx creates is
// registered as a new UTXO confirmed at confirmedAt (nil for unconfirmed,
// e.g. a transaction just accepted into a mempool the caller tracks
// out-of-band). Callers resolve inputs through r before calling this, since
// Unregister does not itself validate that the spent outpoint existed.
func UpdateFromTransaction(tx *wire.MsgTx, r *Registry, confirmedAt *BlockRef) error {
	hash, err := tx.TxHash()
	if err != nil {
		return btcerr.Wrap(btcerr.KindTransaction, "hash transaction for utxo update", err)
	}
	for _, in := range tx.TxIn {
		r.Unregister(in.PreviousOutPoint)
	}
	for index, out := range tx.TxOut {
		op := wire.OutPoint{Hash: hash, Index: uint32(index)}
		r.Register(op, &Output{
			Value:         out.Value,
			LockingScript: out.PkScript,
			Confirmed:     confirmedAt,
		})
	}
	return nil
}

// FeeRate returns tx's fee per virtual byte, resolving
// inputs through r.
func FeeRate(tx *wire.MsgTx, r *Registry) (float64, error) {
	fee, err := Fee(tx, r)
	if err != nil {
		return 0, err
	}
	vsize, err := tx.VirtualSize()
	if err != nil {
		return 0, err
	}
	if vsize == 0 {
		return 0, btcerr.New(btcerr.KindTransaction, nil)
	}
	return float64(fee) / float64(vsize), nil
}
