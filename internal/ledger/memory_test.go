package ledger

import (
	"context"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usdc    Address = "0xusdc"
	alice   Address = "alice"
	bob     Address = "bob"
	spender Address = "semidex"
)

func newSeededMemory(t *testing.T) *Memory {
	m := NewMemory()
	m.RegisterToken(usdc, "USDC", 6)
	require.NoError(t, m.Mint(usdc, alice, math.NewInt(100)))
	return m
}

func TestMemory_Metadata(t *testing.T) {
	m := newSeededMemory(t)
	ctx := context.Background()

	symbol, err := m.Symbol(ctx, usdc)
	assert.NoError(t, err)
	assert.Equal(t, "USDC", symbol)

	decimals, err := m.Decimals(ctx, usdc)
	assert.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	_, err = m.Symbol(ctx, "0xnope")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestMemory_TransferFrom(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		approve     func(m *Memory)
		amount      int64
		expectErr   error
		expectAlice int64
		expectBob   int64
	}{
		{
			name:        "Within allowance",
			approve:     func(m *Memory) { _ = m.Approve(usdc, alice, spender, math.NewInt(60)) },
			amount:      40,
			expectAlice: 60,
			expectBob:   40,
		},
		{
			name:        "Unlimited allowance",
			approve:     func(m *Memory) { _ = m.ApproveUnlimited(usdc, alice, spender) },
			amount:      100,
			expectAlice: 0,
			expectBob:   100,
		},
		{
			name:        "No allowance",
			approve:     func(m *Memory) {},
			amount:      1,
			expectErr:   ErrInsufficientAllowance,
			expectAlice: 100,
		},
		{
			name:        "Allowance too small",
			approve:     func(m *Memory) { _ = m.Approve(usdc, alice, spender, math.NewInt(10)) },
			amount:      11,
			expectErr:   ErrInsufficientAllowance,
			expectAlice: 100,
		},
		{
			name:        "Balance too small",
			approve:     func(m *Memory) { _ = m.ApproveUnlimited(usdc, alice, spender) },
			amount:      101,
			expectErr:   ErrInsufficientBalance,
			expectAlice: 100,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newSeededMemory(t)
			tc.approve(m)

			err := m.TransferFrom(ctx, usdc, spender, alice, bob, math.NewInt(tc.amount))
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			} else {
				assert.NoError(t, err)
			}

			aliceBalance, _ := m.BalanceOf(ctx, usdc, alice)
			bobBalance, _ := m.BalanceOf(ctx, usdc, bob)
			assert.Equal(t, math.NewInt(tc.expectAlice).String(), aliceBalance.String())
			assert.Equal(t, math.NewInt(tc.expectBob).String(), bobBalance.String())
		})
	}
}

func TestMemory_AllowanceIsSpent(t *testing.T) {
	m := newSeededMemory(t)
	ctx := context.Background()
	require.NoError(t, m.Approve(usdc, alice, spender, math.NewInt(50)))

	require.NoError(t, m.TransferFrom(ctx, usdc, spender, alice, bob, math.NewInt(30)))
	remaining, unlimited, err := m.Allowance(usdc, alice, spender)
	require.NoError(t, err)
	assert.False(t, unlimited)
	assert.Equal(t, "20", remaining.String())

	err = m.TransferFrom(ctx, usdc, spender, alice, bob, math.NewInt(30))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestMemory_RejectsNegativeAmounts(t *testing.T) {
	m := newSeededMemory(t)
	assert.ErrorIs(t, m.Mint(usdc, alice, math.NewInt(-1)), ErrInvalidAmount)
	assert.ErrorIs(t, m.Approve(usdc, alice, spender, math.NewInt(-1)), ErrInvalidAmount)
	assert.ErrorIs(t, m.TransferFrom(context.Background(), usdc, spender, alice, bob, math.NewInt(-1)), ErrInvalidAmount)
}

func TestMemory_CancelledContext(t *testing.T) {
	m := newSeededMemory(t)
	require.NoError(t, m.ApproveUnlimited(usdc, alice, spender))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.TransferFrom(ctx, usdc, spender, alice, bob, math.NewInt(1))
	assert.ErrorIs(t, err, context.Canceled)
	balance, _ := m.BalanceOf(context.Background(), usdc, alice)
	assert.Equal(t, "100", balance.String())
}
