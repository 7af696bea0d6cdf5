package registry

import (
	"cosmossdk.io/math"

	"semidex-go/internal/ledger"
)

// PairID is the position of a pair in the registry. IDs are assigned sequentially from zero.
type PairID uint64

// Pair is a registered fixed-rate trading relationship between two tokens.
type Pair struct {
	ID       PairID         `json:"id"`
	TokenA   ledger.Address `json:"token_a"`
	TokenB   ledger.Address `json:"token_b"`
	RateAtoB math.Int       `json:"rate_a_to_b"` // minimal units of TokenB per minimal unit of TokenA
	ReserveA ledger.Address `json:"reserve_a"`
	ReserveB ledger.Address `json:"reserve_b"`
}

// IsRemoved reports whether the pair has been tombstoned.
func (p Pair) IsRemoved() bool {
	return p.TokenA.IsNull() && p.TokenB.IsNull()
}

// IsActive reports whether the pair can be traded against.
func (p Pair) IsActive() bool {
	return !p.TokenA.IsNull() && !p.TokenB.IsNull() && p.RateAtoB.IsPositive()
}

func (p *Pair) tombstone() {
	p.TokenA = ledger.NullAddress
	p.TokenB = ledger.NullAddress
	p.RateAtoB = math.ZeroInt()
}

// PairDetails is a Pair enriched with token metadata and live reserve balances.
type PairDetails struct {
	Pair
	Removed   bool     `json:"removed"`
	SymbolA   string   `json:"symbol_a"`
	SymbolB   string   `json:"symbol_b"`
	DecimalsA uint8    `json:"decimals_a"`
	DecimalsB uint8    `json:"decimals_b"`
	BalanceA  math.Int `json:"balance_a"`
	BalanceB  math.Int `json:"balance_b"`
}

// NewPairEvent is published once for every pair added to the registry.
type NewPairEvent struct {
	PairID   PairID         `json:"pair_id"`
	TokenA   ledger.Address `json:"token_a"`
	TokenB   ledger.Address `json:"token_b"`
	RateAtoB math.Int       `json:"rate_a_to_b"`
}

// Listener receives NewPairEvents in ID order. It may call Subscribe and any read
// operation, but calling AddPair from a listener deadlocks: delivery of the current
// event holds the lock that orders notifications.
type Listener func(NewPairEvent)
