package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"semidex-go/internal/config"
	"semidex-go/internal/database"
	"semidex-go/internal/ledger"
	"semidex-go/internal/registry"
)

func TestSeedMemory(t *testing.T) {
	tokens := []config.TokenSeed{
		{
			Address:   "ETH",
			Symbol:    "ETH",
			Decimals:  18,
			Balances:  []config.BalanceSeed{{Account: "reserve-eth", Amount: "1000"}, {Account: "alice", Amount: "5"}},
			Approvals: []string{"reserve-eth"},
		},
	}

	t.Run("Valid", func(t *testing.T) {
		mem := ledger.NewMemory()
		require.NoError(t, seedMemory(mem, tokens, "semidex"))

		ctx := context.Background()
		symbol, err := mem.Symbol(ctx, "ETH")
		require.NoError(t, err)
		assert.Equal(t, "ETH", symbol)

		balance, err := mem.BalanceOf(ctx, "ETH", "reserve-eth")
		require.NoError(t, err)
		assert.Equal(t, "1000", balance.String())

		_, unlimited, err := mem.Allowance("ETH", "reserve-eth", "semidex")
		require.NoError(t, err)
		assert.True(t, unlimited)

		_, unlimited, err = mem.Allowance("ETH", "alice", "semidex")
		require.NoError(t, err)
		assert.False(t, unlimited)
	})

	testCases := []struct {
		name   string
		tokens []config.TokenSeed
	}{
		{"MissingAddress", []config.TokenSeed{{Symbol: "ETH"}}},
		{"MalformedBalance", []config.TokenSeed{{Address: "ETH", Balances: []config.BalanceSeed{{Account: "a", Amount: "ten"}}}}},
		{"NegativeBalance", []config.TokenSeed{{Address: "ETH", Balances: []config.BalanceSeed{{Account: "a", Amount: "-1"}}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, seedMemory(ledger.NewMemory(), tc.tokens, "semidex"))
		})
	}
}

func TestNewLedger(t *testing.T) {
	cfg := config.Config{
		Engine: config.Engine{Address: "semidex"},
		Ledger: config.Ledger{Mode: config.LedgerModeRest, URL: "http://localhost:9000", RateLimit: 10, RateLimitBurst: 1},
	}
	led, err := newLedger(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ledger.RestClient{}, led)

	cfg.Ledger.Mode = config.LedgerModeMemory
	led, err = newLedger(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ledger.Memory{}, led)
}

func newTestRegistry(t *testing.T) *registry.Registry {
	reg, err := registry.New(context.Background(), registry.Options{Admin: "admin", Ledger: ledger.NewMemory()})
	require.NoError(t, err)
	return reg
}

func TestBootstrapPairs(t *testing.T) {
	seeds := []config.PairSeed{
		{TokenA: "ETH", TokenB: "USDC", RateAtoB: "185", ReserveA: "reserve-eth", ReserveB: "reserve-usdc"},
		{TokenA: "BTC", TokenB: "USDC", RateAtoB: "60000", ReserveA: "reserve-btc", ReserveB: "reserve-usdc"},
	}
	ctx := context.Background()

	t.Run("EmptyRegistry", func(t *testing.T) {
		reg := newTestRegistry(t)
		require.NoError(t, bootstrapPairs(ctx, reg, seeds, zap.NewNop()))
		assert.Equal(t, uint64(2), reg.Count())

		pair, err := reg.Get(1)
		require.NoError(t, err)
		assert.Equal(t, ledger.Address("BTC"), pair.TokenA)
		assert.Equal(t, "60000", pair.RateAtoB.String())
	})

	t.Run("RestoredRegistry", func(t *testing.T) {
		reg := newTestRegistry(t)
		_, err := reg.AddPair(ctx, "admin", "SOL", "USDC", math.NewInt(150), "ra", "rb")
		require.NoError(t, err)

		require.NoError(t, bootstrapPairs(ctx, reg, seeds, zap.NewNop()))
		assert.Equal(t, uint64(1), reg.Count())
	})

	t.Run("MalformedRate", func(t *testing.T) {
		reg := newTestRegistry(t)
		err := bootstrapPairs(ctx, reg, []config.PairSeed{{TokenA: "ETH", TokenB: "USDC", RateAtoB: "1e3"}}, zap.NewNop())
		assert.Error(t, err)
		assert.Equal(t, uint64(0), reg.Count())
	})

	t.Run("ZeroRate", func(t *testing.T) {
		reg := newTestRegistry(t)
		err := bootstrapPairs(ctx, reg, []config.PairSeed{{TokenA: "ETH", TokenB: "USDC", RateAtoB: "0"}}, zap.NewNop())
		assert.ErrorIs(t, err, registry.ErrInvalidArgument)
	})
}

func TestPairsCmd(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "semidex.db")
	configYAML := "registry:\n  admin: admin\ndatabase:\n  dsn: " + dsn + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configYAML), 0o600))

	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	reg, err := registry.New(context.Background(), registry.Options{
		Admin:  "admin",
		Ledger: ledger.NewMemory(),
		Store:  database.NewPairStore(db),
	})
	require.NoError(t, err)
	_, err = reg.AddPair(context.Background(), "admin", "ETH", "USDC", math.NewInt(185), "reserve-eth", "reserve-usdc")
	require.NoError(t, err)
	_, err = reg.AddPair(context.Background(), "admin", "BTC", "USDC", math.NewInt(60000), "reserve-btc", "reserve-usdc")
	require.NoError(t, err)
	require.NoError(t, reg.Remove(context.Background(), "admin", 1))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"pairs", "--config", dir})
	require.NoError(t, cmd.Execute())

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "RATE A->B")
	assert.Contains(t, string(lines[1]), "185")
	assert.Contains(t, string(lines[1]), "false")
	assert.Contains(t, string(lines[2]), "true")
}

func TestRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	flag := cmd.PersistentFlags().Lookup(flagConfig)
	require.NotNil(t, flag)
	assert.Equal(t, "./configs", flag.DefValue)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "pairs"}, names)
}
