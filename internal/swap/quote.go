package swap

import (
	"fmt"

	"cosmossdk.io/math"

	"semidex-go/internal/ledger"
	"semidex-go/internal/registry"
)

// Direction is the side of a pair a trade sells.
type Direction string

const (
	AtoB Direction = "a_to_b"
	BtoA Direction = "b_to_a"
)

// Quote is the outcome of applying a pair's rate to an input amount.
type Quote struct {
	PairID       registry.PairID `json:"pair_id"`
	Direction    Direction       `json:"direction"`
	InputToken   ledger.Address  `json:"input_token"`
	OutputToken  ledger.Address  `json:"output_token"`
	InputAmount  math.Int        `json:"input_amount"`
	OutputAmount math.Int        `json:"output_amount"`
	// Remainder is the part of a B to A input that buys nothing and stays in reserve B.
	Remainder  math.Int       `json:"remainder"`
	ReserveIn  ledger.Address `json:"-"`
	ReserveOut ledger.Address `json:"-"`
}

// ComputeQuote resolves the trade direction and output amount for pair.
// Selling A multiplies by the rate exactly; selling B floor-divides and leaves the remainder in the reserve.
func ComputeQuote(pair registry.Pair, inputToken ledger.Address, inputAmount math.Int) (Quote, error) {
	if !pair.IsActive() {
		return Quote{}, fmt.Errorf("pair %d is removed: %w", pair.ID, registry.ErrInvalidArgument)
	}
	if inputAmount.IsNil() || !inputAmount.IsPositive() {
		return Quote{}, fmt.Errorf("input amount must be positive, got %s: %w", inputAmount, registry.ErrInvalidArgument)
	}

	q := Quote{
		PairID:      pair.ID,
		InputToken:  inputToken,
		InputAmount: inputAmount,
	}

	switch inputToken {
	case pair.TokenA:
		out, err := inputAmount.SafeMul(pair.RateAtoB)
		if err != nil {
			return Quote{}, fmt.Errorf("output of %s at rate %s overflows: %w", inputAmount, pair.RateAtoB, registry.ErrInvalidArgument)
		}
		q.Direction = AtoB
		q.OutputToken = pair.TokenB
		q.OutputAmount = out
		q.Remainder = math.ZeroInt()
		q.ReserveIn, q.ReserveOut = pair.ReserveA, pair.ReserveB
	case pair.TokenB:
		q.Direction = BtoA
		q.OutputToken = pair.TokenA
		q.OutputAmount = inputAmount.Quo(pair.RateAtoB)
		q.Remainder = inputAmount.Mod(pair.RateAtoB)
		q.ReserveIn, q.ReserveOut = pair.ReserveB, pair.ReserveA
	default:
		return Quote{}, fmt.Errorf("token %q is not part of pair %d (%s/%s): %w",
			inputToken, pair.ID, pair.TokenA, pair.TokenB, registry.ErrInvalidArgument)
	}
	return q, nil
}
