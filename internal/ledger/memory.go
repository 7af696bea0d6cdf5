package ledger

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"
)

type allowance struct {
	amount    math.Int
	unlimited bool
}

type tokenState struct {
	symbol     string
	decimals   uint8
	balances   map[Address]math.Int
	allowances map[Address]map[Address]allowance // owner -> spender
}

// Memory is an in-process Ledger. Each method is atomic with respect to the others.
type Memory struct {
	mu     sync.RWMutex
	tokens map[Address]*tokenState
}

var _ Ledger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[Address]*tokenState)}
}

// RegisterToken declares a token. Registering an existing token updates its metadata only.
func (m *Memory) RegisterToken(token Address, symbol string, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tokens[token]; ok {
		t.symbol = symbol
		t.decimals = decimals
		return
	}
	m.tokens[token] = &tokenState{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[Address]math.Int),
		allowances: make(map[Address]map[Address]allowance),
	}
}

// Mint credits amount of token to account.
func (m *Memory) Mint(token, account Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("mint %s: %w", amount, ErrInvalidAmount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.token(token)
	if err != nil {
		return err
	}
	t.balances[account] = t.balance(account).Add(amount)
	return nil
}

// Approve sets the allowance spender may move out of owner's holdings.
func (m *Memory) Approve(token, owner, spender Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("approve %s: %w", amount, ErrInvalidAmount)
	}
	return m.setAllowance(token, owner, spender, allowance{amount: amount})
}

// ApproveUnlimited grants spender an allowance that is never decremented.
func (m *Memory) ApproveUnlimited(token, owner, spender Address) error {
	return m.setAllowance(token, owner, spender, allowance{amount: math.ZeroInt(), unlimited: true})
}

func (m *Memory) setAllowance(token, owner, spender Address, a allowance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.token(token)
	if err != nil {
		return err
	}
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[Address]allowance)
	}
	t.allowances[owner][spender] = a
	return nil
}

// Allowance returns the remaining allowance and whether it is unlimited.
func (m *Memory) Allowance(token, owner, spender Address) (math.Int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.token(token)
	if err != nil {
		return math.ZeroInt(), false, err
	}
	a, ok := t.allowances[owner][spender]
	if !ok {
		return math.ZeroInt(), false, nil
	}
	return a.amount, a.unlimited, nil
}

func (m *Memory) BalanceOf(ctx context.Context, token, account Address) (math.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.token(token)
	if err != nil {
		return math.ZeroInt(), err
	}
	return t.balance(account), nil
}

func (m *Memory) TransferFrom(ctx context.Context, token, spender, owner, to Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("transfer %s: %w", amount, ErrInvalidAmount)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.token(token)
	if err != nil {
		return err
	}

	a, ok := t.allowances[owner][spender]
	if !ok || (!a.unlimited && a.amount.LT(amount)) {
		return fmt.Errorf("%s may not move %s %s of %s: %w", spender, amount, t.symbol, owner, ErrInsufficientAllowance)
	}
	from := t.balance(owner)
	if from.LT(amount) {
		return fmt.Errorf("%s holds %s %s, needs %s: %w", owner, from, t.symbol, amount, ErrInsufficientBalance)
	}

	if !a.unlimited {
		a.amount = a.amount.Sub(amount)
		t.allowances[owner][spender] = a
	}
	t.balances[owner] = from.Sub(amount)
	t.balances[to] = t.balance(to).Add(amount)
	return nil
}

func (m *Memory) Symbol(ctx context.Context, token Address) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.token(token)
	if err != nil {
		return "", err
	}
	return t.symbol, nil
}

func (m *Memory) Decimals(ctx context.Context, token Address) (uint8, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.token(token)
	if err != nil {
		return 0, err
	}
	return t.decimals, nil
}

// token must be called with mu held.
func (m *Memory) token(token Address) (*tokenState, error) {
	t, ok := m.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token %q: %w", token, ErrUnknownToken)
	}
	return t, nil
}

func (t *tokenState) balance(account Address) math.Int {
	b, ok := t.balances[account]
	if !ok {
		return math.ZeroInt()
	}
	return b
}
