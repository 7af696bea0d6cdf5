// Package registry keeps the administrator-curated list of fixed-rate trading pairs.
//
// Pairs live in an append-only slice addressed by their ID. Removing a pair
// tombstones it in place, so IDs are never reused and Count only grows.
package registry

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"semidex-go/internal/ledger"
	"semidex-go/internal/metrics"
)

// Registry mutation names, used for logs and metrics.
const (
	OpAddPair    = "add_pair"
	OpUpdateRate = "update_rate"
	OpRemove     = "remove"
)

// Store persists pairs and the NewPair audit log.
type Store interface {
	LoadPairs(ctx context.Context) ([]Pair, error)
	LoadEvents(ctx context.Context) ([]NewPairEvent, error)
	// CreatePair stores a new pair together with its creation event.
	CreatePair(ctx context.Context, pair Pair, event NewPairEvent) error
	// SavePair overwrites an existing pair.
	SavePair(ctx context.Context, pair Pair) error
}

// Options configures a Registry.
type Options struct {
	Admin   ledger.Address
	Ledger  ledger.Ledger
	Store   Store // optional; nil keeps pairs in memory only
	Logger  *zap.Logger
	Metrics *metrics.Metrics // optional
}

// Registry owns all pairs. Every operation, including whole trades run through
// WithPair, is serialized by a single lock.
type Registry struct {
	access  AccessControl
	ledger  ledger.Ledger
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	pairs  []Pair
	events []NewPairEvent

	// notifyMu is taken before mu is released so listeners see events in ID order.
	notifyMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []Listener
}

// New creates a Registry, restoring previously stored pairs when a Store is configured.
func New(ctx context.Context, opts Options) (*Registry, error) {
	if opts.Admin.IsNull() {
		return nil, fmt.Errorf("administrator must be set: %w", ErrInvalidArgument)
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger must be set: %w", ErrInvalidArgument)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		access:  NewAccessControl(opts.Admin),
		ledger:  opts.Ledger,
		store:   opts.Store,
		logger:  logger.Named("registry"),
		metrics: opts.Metrics,
	}

	if r.store != nil {
		pairs, err := r.store.LoadPairs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load pairs: %w", err)
		}
		for i, p := range pairs {
			if p.ID != PairID(i) {
				return nil, fmt.Errorf("stored pairs are not contiguous: position %d holds pair %d", i, p.ID)
			}
		}
		events, err := r.store.LoadEvents(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load pair events: %w", err)
		}
		r.pairs = pairs
		r.events = events
		r.logger.Info("Restored pairs from store", zap.Int("count", len(pairs)))
	}
	r.metrics.SetPairs(uint64(len(r.pairs)))

	return r, nil
}

// Admin returns the administrator identity.
func (r *Registry) Admin() ledger.Address {
	return r.access.Admin()
}

// Subscribe registers a listener for NewPairEvents. It may be called from inside a
// listener; the new listener receives events from the next pair on.
func (r *Registry) Subscribe(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

// AddPair appends a new active pair and returns its ID.
func (r *Registry) AddPair(ctx context.Context, caller, tokenA, tokenB ledger.Address, rateAtoB math.Int, reserveA, reserveB ledger.Address) (id PairID, err error) {
	defer func() { r.metrics.ObserveMutation(OpAddPair, err) }()

	if err := r.access.Authorize(caller); err != nil {
		return 0, err
	}
	if rateAtoB.IsNil() || !rateAtoB.IsPositive() {
		return 0, fmt.Errorf("rate must be positive, got %s: %w", rateAtoB, ErrInvalidArgument)
	}
	if tokenA.IsNull() || tokenB.IsNull() {
		return 0, fmt.Errorf("token identifiers must not be null: %w", ErrInvalidArgument)
	}

	r.mu.Lock()
	pair := Pair{
		ID:       PairID(len(r.pairs)),
		TokenA:   tokenA,
		TokenB:   tokenB,
		RateAtoB: rateAtoB,
		ReserveA: reserveA,
		ReserveB: reserveB,
	}
	event := NewPairEvent{
		PairID:   pair.ID,
		TokenA:   tokenA,
		TokenB:   tokenB,
		RateAtoB: rateAtoB,
	}

	if r.store != nil {
		if err := r.store.CreatePair(ctx, pair, event); err != nil {
			r.mu.Unlock()
			return 0, fmt.Errorf("failed to persist pair: %w", err)
		}
	}
	r.pairs = append(r.pairs, pair)
	r.events = append(r.events, event)
	r.metrics.SetPairs(uint64(len(r.pairs)))

	r.notifyMu.Lock()
	r.mu.Unlock()
	for _, l := range r.snapshotListeners() {
		l(event)
	}
	r.notifyMu.Unlock()

	r.logger.Info("Pair added",
		zap.Uint64("pair_id", uint64(pair.ID)),
		zap.String("token_a", tokenA.String()),
		zap.String("token_b", tokenB.String()),
		zap.String("rate_a_to_b", rateAtoB.String()),
	)
	return pair.ID, nil
}

// UpdateRate overwrites the rate of a pair. A removed pair accepts the write but stays removed.
func (r *Registry) UpdateRate(ctx context.Context, caller ledger.Address, id PairID, newRate math.Int) (err error) {
	defer func() { r.metrics.ObserveMutation(OpUpdateRate, err) }()

	if err := r.access.Authorize(caller); err != nil {
		return err
	}
	if newRate.IsNil() || !newRate.IsPositive() {
		return fmt.Errorf("rate must be positive, got %s: %w", newRate, ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pair, err := r.get(id)
	if err != nil {
		return err
	}
	old := pair.RateAtoB
	pair.RateAtoB = newRate
	if err := r.save(ctx, pair); err != nil {
		return err
	}

	r.logger.Info("Pair rate updated",
		zap.Uint64("pair_id", uint64(id)),
		zap.String("old_rate", old.String()),
		zap.String("new_rate", newRate.String()),
	)
	return nil
}

// Remove tombstones a pair. Removing a removed pair succeeds without effect.
func (r *Registry) Remove(ctx context.Context, caller ledger.Address, id PairID) (err error) {
	defer func() { r.metrics.ObserveMutation(OpRemove, err) }()

	if err := r.access.Authorize(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pair, err := r.get(id)
	if err != nil {
		return err
	}
	if pair.IsRemoved() && pair.RateAtoB.IsZero() {
		return nil
	}
	pair.tombstone()
	if err := r.save(ctx, pair); err != nil {
		return err
	}

	r.logger.Info("Pair removed", zap.Uint64("pair_id", uint64(id)))
	return nil
}

// Count returns the number of pairs ever created.
func (r *Registry) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.pairs))
}

// Get returns the stored pair.
func (r *Registry) Get(id PairID) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

// IsRemoved reports whether the pair has been tombstoned.
func (r *Registry) IsRemoved(id PairID) (bool, error) {
	pair, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return pair.IsRemoved(), nil
}

// List returns a copy of every pair in ID order.
func (r *Registry) List() []Pair {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := make([]Pair, len(r.pairs))
	copy(pairs, r.pairs)
	return pairs
}

// Events returns a copy of the NewPair log.
func (r *Registry) Events() []NewPairEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]NewPairEvent, len(r.events))
	copy(events, r.events)
	return events
}

// GetDetails returns the pair with token metadata and the live balances of both reserves.
// Nothing is cached: every call queries the ledger.
func (r *Registry) GetDetails(ctx context.Context, id PairID) (PairDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, err := r.get(id)
	if err != nil {
		return PairDetails{}, err
	}

	details := PairDetails{Pair: pair, Removed: pair.IsRemoved()}
	if !pair.TokenA.IsNull() {
		if details.SymbolA, details.DecimalsA, details.BalanceA, err = r.side(ctx, pair.TokenA, pair.ReserveA); err != nil {
			return PairDetails{}, fmt.Errorf("pair %d token A: %w", id, err)
		}
	} else {
		details.BalanceA = math.ZeroInt()
	}
	if !pair.TokenB.IsNull() {
		if details.SymbolB, details.DecimalsB, details.BalanceB, err = r.side(ctx, pair.TokenB, pair.ReserveB); err != nil {
			return PairDetails{}, fmt.Errorf("pair %d token B: %w", id, err)
		}
	} else {
		details.BalanceB = math.ZeroInt()
	}
	return details, nil
}

func (r *Registry) side(ctx context.Context, token, reserve ledger.Address) (string, uint8, math.Int, error) {
	symbol, err := r.ledger.Symbol(ctx, token)
	if err != nil {
		return "", 0, math.Int{}, fmt.Errorf("failed to read symbol: %w", err)
	}
	decimals, err := r.ledger.Decimals(ctx, token)
	if err != nil {
		return "", 0, math.Int{}, fmt.Errorf("failed to read decimals: %w", err)
	}
	balance, err := r.ledger.BalanceOf(ctx, token, reserve)
	if err != nil {
		return "", 0, math.Int{}, fmt.Errorf("failed to read reserve balance: %w", err)
	}
	return symbol, decimals, balance, nil
}

// WithPair runs fn with a snapshot of the pair while holding the registry lock,
// so nothing else observes or mutates the registry until fn returns.
func (r *Registry) WithPair(id PairID, fn func(Pair) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, err := r.get(id)
	if err != nil {
		return err
	}
	return fn(pair)
}

func (r *Registry) snapshotListeners() []Listener {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()

	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	return listeners
}

// get must be called with mu held.
func (r *Registry) get(id PairID) (Pair, error) {
	if uint64(id) >= uint64(len(r.pairs)) {
		return Pair{}, fmt.Errorf("pair %d of %d: %w", id, len(r.pairs), ErrNotFound)
	}
	return r.pairs[id], nil
}

// save persists pair and then replaces it in memory. Must be called with mu held.
func (r *Registry) save(ctx context.Context, pair Pair) error {
	if r.store != nil {
		if err := r.store.SavePair(ctx, pair); err != nil {
			return fmt.Errorf("failed to persist pair %d: %w", pair.ID, err)
		}
	}
	r.pairs[pair.ID] = pair
	return nil
}
