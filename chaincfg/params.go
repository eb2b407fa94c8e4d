// Package chaincfg implements the network registry: a process-wide mapping
// from network identifier to descriptor, an overridable default network,
// and an optional single-network mode. Networks register at init time, are
// looked up by identifier, and a main package may add custom networks via
// Register.
package chaincfg

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/olehkaliuzhnyi/btcprim/btcerr"
)

// HDVersions holds the six BIP32 extended-key version prefixes for a
// network, one private/public pair per derivation purpose.
type HDVersions struct {
	LegacyPrivate [4]byte // xprv-style, purpose 44
	LegacyPublic  [4]byte // xpub-style
	CompatPrivate [4]byte // yprv-style, purpose 49 (P2SH-wrapped segwit)
	CompatPublic  [4]byte // ypub-style
	SegwitPrivate [4]byte // zprv-style, purpose 84 (native segwit)
	SegwitPublic  [4]byte // zpub-style
}

// Params is an immutable network descriptor. A single Params value
// is created at registration time and never mutated.
type Params struct {
	Name string

	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	WIFByte          byte

	// Bech32HRP is empty when the network does not support segwit
	// addresses.
	Bech32HRP string

	HD HDVersions

	// HDCoinType is the BIP44 coin_type' value for this network.
	HDCoinType uint32
}

// SupportsSegwit reports whether the network has a bech32 HRP configured.
func (p *Params) SupportsSegwit() bool { return p.Bech32HRP != "" }

// Built-in networks, populated into the default Registry at package init.
var (
	MainNetParams = Params{
		Name:             "bitcoin",
		PubKeyHashAddrID: 0x00,
		ScriptHashAddrID: 0x05,
		WIFByte:          0x80,
		Bech32HRP:        "bc",
		HD: HDVersions{
			LegacyPrivate: [4]byte{0x04, 0x88, 0xAD, 0xE4}, // xprv
			LegacyPublic:  [4]byte{0x04, 0x88, 0xB2, 0x1E}, // xpub
			CompatPrivate: [4]byte{0x04, 0x9D, 0x78, 0x78}, // yprv
			CompatPublic:  [4]byte{0x04, 0x9D, 0x7C, 0xB2}, // ypub
			SegwitPrivate: [4]byte{0x04, 0xB2, 0x43, 0x0C}, // zprv
			SegwitPublic:  [4]byte{0x04, 0xB2, 0x47, 0x46}, // zpub
		},
		HDCoinType: 0,
	}

	TestNetParams = Params{
		Name:             "bitcoin_testnet",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		WIFByte:          0xef,
		Bech32HRP:        "tb",
		HD: HDVersions{
			LegacyPrivate: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
			LegacyPublic:  [4]byte{0x04, 0x35, 0x87, 0xCF}, // tpub
			CompatPrivate: [4]byte{0x04, 0x4A, 0x4E, 0x28}, // uprv
			CompatPublic:  [4]byte{0x04, 0x4A, 0x52, 0x62}, // upub
			SegwitPrivate: [4]byte{0x04, 0x5F, 0x18, 0xBC}, // vprv
			SegwitPublic:  [4]byte{0x04, 0x5F, 0x1C, 0xF6}, // vpub
		},
		HDCoinType: 1,
	}

	DogecoinParams = Params{
		Name:             "dogecoin",
		PubKeyHashAddrID: 0x1e,
		ScriptHashAddrID: 0x16,
		WIFByte:          0x9e,
		Bech32HRP:        "", // Dogecoin does not support segwit
		HD: HDVersions{
			LegacyPrivate: [4]byte{0x02, 0xFA, 0xC3, 0x98}, // dgpv
			LegacyPublic:  [4]byte{0x02, 0xFA, 0xCA, 0xFD}, // dgub
		},
		HDCoinType: 3,
	}

	DogecoinTestNetParams = Params{
		Name:             "dogecoin_testnet",
		PubKeyHashAddrID: 0x71,
		ScriptHashAddrID: 0xc4,
		WIFByte:          0xf1,
		Bech32HRP:        "",
		HD: HDVersions{
			LegacyPrivate: [4]byte{0x04, 0x32, 0xA2, 0x43}, // tgpv
			LegacyPublic:  [4]byte{0x04, 0x32, 0xA9, 0xA8}, // tgub
		},
		HDCoinType: 1,
	}

	PepecoinParams = Params{
		Name:             "pepecoin",
		PubKeyHashAddrID: 0x38,
		ScriptHashAddrID: 0x0a,
		WIFByte:          0xb8,
		Bech32HRP:        "",
		HD: HDVersions{
			LegacyPrivate: [4]byte{0x04, 0x88, 0xAD, 0xE4},
			LegacyPublic:  [4]byte{0x04, 0x88, 0xB2, 0x1E},
		},
		HDCoinType: 3434,
	}

	PepecoinTestNetParams = Params{
		Name:             "pepecoin_testnet",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		WIFByte:          0xef,
		Bech32HRP:        "",
		HD: HDVersions{
			LegacyPrivate: [4]byte{0x04, 0x35, 0x83, 0x94},
			LegacyPublic:  [4]byte{0x04, 0x35, 0x87, 0xCF},
		},
		HDCoinType: 1,
	}
)

// Registry is a process-wide (or, for callers that want isolation, a
// privately held) mapping of network identifier to Params, plus a mutable
// default-network cell and an optional single-network mode.
//
// Mutations (Register, SetDefault, SetSingleNetwork) must happen before the
// Registry is shared across goroutines.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]*Params
	defaultNet string
	singleNet  string // empty means single-network mode is off
	logger     *slog.Logger
}

// NewRegistry returns a Registry pre-populated with the six built-in
// networks and "bitcoin" selected as default.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]*Params),
		logger: slog.Default().With("component", "chaincfg"),
	}
	for _, p := range []*Params{
		&MainNetParams, &TestNetParams,
		&DogecoinParams, &DogecoinTestNetParams,
		&PepecoinParams, &PepecoinTestNetParams,
	} {
		r.byName[p.Name] = p
	}
	r.defaultNet = MainNetParams.Name
	return r
}

// SetLogger overrides the diagnostic logger (nil resets to slog.Default()).
func (r *Registry) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	r.logger = l.With("component", "chaincfg")
}

// Register adds a new network descriptor. It is a KindNetworkConfig error to
// register a name that already exists.
func (r *Registry) Register(p Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[p.Name]; ok {
		return btcerr.Newf(btcerr.KindNetworkConfig, "network %q already registered", p.Name)
	}
	cp := p
	r.byName[p.Name] = &cp
	r.logger.Info("registered network", "name", p.Name)
	return nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (*Params, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, btcerr.Newf(btcerr.KindNetworkConfig, "unknown network %q", name)
	}
	return p, nil
}

// Default returns the currently selected default network.
func (r *Registry) Default() *Params {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[r.defaultNet]
}

// SetDefault changes the default network.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return btcerr.Newf(btcerr.KindNetworkConfig, "unknown network %q", name)
	}
	r.defaultNet = name
	return nil
}

// SetSingleNetwork restricts the registry to a single named network; any
// subsequent Require call for a different network fails. Passing "" lifts
// the restriction.
func (r *Registry) SetSingleNetwork(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name != "" {
		if _, ok := r.byName[name]; !ok {
			return btcerr.Newf(btcerr.KindNetworkConfig, "unknown network %q", name)
		}
	}
	r.singleNet = name
	return nil
}

// Require looks up name and enforces single-network mode, the check every
// network-bound constructor (keys, addresses) should route through.
func (r *Registry) Require(name string) (*Params, error) {
	r.mu.RLock()
	single := r.singleNet
	r.mu.RUnlock()
	if single != "" && name != single {
		return nil, btcerr.Newf(btcerr.KindNetworkConfig, "single-network mode restricts to %q, rejecting %q", single, name)
	}
	return r.Lookup(name)
}

// All returns every registered network descriptor, default network first,
// the rest sorted by name. Used by callers (hdkeys, address) that must scan
// every registered network to resolve a version byte; the fixed order keeps
// collision resolution deterministic.
func (r *Registry) All() []*Params {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		if name != r.defaultNet {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]*Params, 0, len(r.byName))
	if def, ok := r.byName[r.defaultNet]; ok {
		out = append(out, def)
	}
	for _, name := range names {
		out = append(out, r.byName[name])
	}
	return out
}

// ByWIFByte resolves a network from a WIF version byte: if the
// default network's WIF byte matches, prefer it; otherwise, if exactly one
// registered network matches, return it; otherwise KindKeyCreate listing
// candidates.
func (r *Registry) ByWIFByte(b byte) (*Params, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, ok := r.byName[r.defaultNet]; ok && def.WIFByte == b {
		return def, nil
	}

	var matches []*Params
	for _, p := range r.byName {
		if p.WIFByte == b {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, btcerr.Newf(btcerr.KindKeyCreate, "no registered network has WIF byte 0x%02x", b)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, p := range matches {
			names[i] = p.Name
		}
		return nil, btcerr.Newf(btcerr.KindKeyCreate, "ambiguous WIF byte 0x%02x, candidates: %v", b, names)
	}
}

// Default is the process-wide registry used by package-level convenience
// functions across btcprim.
var Default = NewRegistry()
