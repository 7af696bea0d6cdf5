package main

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"semidex-go/internal/config"
	"semidex-go/internal/ledger"
	"semidex-go/internal/registry"
)

// newLedger builds the ledger backend selected by ledger.mode.
func newLedger(cfg config.Config, log *zap.Logger) (ledger.Ledger, error) {
	switch cfg.Ledger.Mode {
	case config.LedgerModeRest:
		log.Info("Using remote ledger", zap.String("url", cfg.Ledger.URL))
		return ledger.NewRestClient(&cfg.Ledger, log), nil
	default:
		mem := ledger.NewMemory()
		if err := seedMemory(mem, cfg.Ledger.Tokens, ledger.Address(cfg.Engine.Address)); err != nil {
			return nil, err
		}
		log.Info("Using in-memory ledger", zap.Int("tokens", len(cfg.Ledger.Tokens)))
		return mem, nil
	}
}

// seedMemory registers tokens, mints balances and grants the engine unlimited allowances.
func seedMemory(mem *ledger.Memory, tokens []config.TokenSeed, engine ledger.Address) error {
	for _, t := range tokens {
		token := ledger.Address(t.Address)
		if token.IsNull() {
			return fmt.Errorf("ledger token seed without address")
		}
		mem.RegisterToken(token, t.Symbol, t.Decimals)

		for _, b := range t.Balances {
			amount, ok := math.NewIntFromString(b.Amount)
			if !ok {
				return fmt.Errorf("token %s: malformed balance %q for %s", t.Address, b.Amount, b.Account)
			}
			if err := mem.Mint(token, ledger.Address(b.Account), amount); err != nil {
				return fmt.Errorf("token %s: %w", t.Address, err)
			}
		}
		for _, owner := range t.Approvals {
			if err := mem.ApproveUnlimited(token, ledger.Address(owner), engine); err != nil {
				return fmt.Errorf("token %s: %w", t.Address, err)
			}
		}
	}
	return nil
}

// bootstrapPairs adds the configured pairs as the administrator, but only into an empty registry.
func bootstrapPairs(ctx context.Context, reg *registry.Registry, seeds []config.PairSeed, log *zap.Logger) error {
	if reg.Count() > 0 || len(seeds) == 0 {
		return nil
	}
	for i, s := range seeds {
		rate, ok := math.NewIntFromString(s.RateAtoB)
		if !ok {
			return fmt.Errorf("pairs[%d]: malformed rate %q", i, s.RateAtoB)
		}
		id, err := reg.AddPair(ctx, reg.Admin(),
			ledger.Address(s.TokenA), ledger.Address(s.TokenB), rate,
			ledger.Address(s.ReserveA), ledger.Address(s.ReserveB))
		if err != nil {
			return fmt.Errorf("pairs[%d]: %w", i, err)
		}
		log.Info("Bootstrapped pair", zap.Uint64("pair_id", uint64(id)))
	}
	return nil
}
