// Package ledger defines the fungible-token ledger the registry and the swap
// engine settle against, together with an in-process implementation and an
// HTTP client for a remote ledger service.
package ledger

import (
	"context"
	"errors"

	"cosmossdk.io/math"
)

// Address identifies a token contract or an account on the ledger.
type Address string

// NullAddress is the zero identifier. Removed pairs carry it in place of their tokens.
const NullAddress Address = ""

// IsNull reports whether a is the null identifier.
func (a Address) IsNull() bool {
	return a == NullAddress
}

func (a Address) String() string {
	return string(a)
}

var (
	ErrUnknownToken          = errors.New("unknown token")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// Ledger is the subset of a token ledger the exchange depends on.
type Ledger interface {
	// BalanceOf returns the holdings of account in token.
	BalanceOf(ctx context.Context, token, account Address) (math.Int, error)
	// TransferFrom moves amount of token from owner to to, spending the allowance owner granted spender.
	TransferFrom(ctx context.Context, token, spender, owner, to Address, amount math.Int) error
	// Symbol returns the token's ticker.
	Symbol(ctx context.Context, token Address) (string, error)
	// Decimals returns the number of decimals of the token's minimal unit.
	Decimals(ctx context.Context, token Address) (uint8, error)
}
