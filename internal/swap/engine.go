// Package swap executes trades against the pairs of a registry at their stored rate.
package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"semidex-go/internal/ledger"
	"semidex-go/internal/metrics"
	"semidex-go/internal/registry"
)

// ErrSettlement is returned when the ledger rejects either leg of a trade.
var ErrSettlement = errors.New("settlement failed")

// Trade statuses recorded in the journal.
const (
	StatusSettled            = "settled"
	StatusRejected           = "rejected"            // input pull failed, nothing moved
	StatusReverted           = "reverted"            // output push failed, input returned
	StatusCompensationFailed = "compensation_failed" // output push failed and the input could not be returned
)

const compensationTimeout = 30 * time.Second

// TradeRecord is one settled or failed trade.
type TradeRecord struct {
	ID           string
	PairID       registry.PairID
	Caller       ledger.Address
	Direction    Direction
	InputToken   ledger.Address
	OutputToken  ledger.Address
	InputAmount  math.Int
	OutputAmount math.Int
	Status       string
	Error        string
	ExecutedAt   time.Time
}

// Journal keeps a history of trades.
type Journal interface {
	RecordTrade(ctx context.Context, record TradeRecord) error
}

// Receipt is returned for a settled trade.
type Receipt struct {
	TradeID string `json:"trade_id"`
	Quote
}

// Options configures an Engine.
type Options struct {
	// Address is the spender identity reserves and traders approve on the ledger.
	Address           ledger.Address
	Registry          *registry.Registry
	Ledger            ledger.Ledger
	Journal           Journal // optional
	Logger            *zap.Logger
	Metrics           *metrics.Metrics // optional
	SettlementTimeout time.Duration    // zero means no timeout
}

// Engine settles trades between callers and pair reserves.
type Engine struct {
	address  ledger.Address
	registry *registry.Registry
	ledger   ledger.Ledger
	journal  Journal
	logger   *zap.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// NewEngine creates a new swap engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Address.IsNull() {
		return nil, fmt.Errorf("engine address must be set: %w", registry.ErrInvalidArgument)
	}
	if opts.Registry == nil || opts.Ledger == nil {
		return nil, fmt.Errorf("registry and ledger must be set: %w", registry.ErrInvalidArgument)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		address:  opts.Address,
		registry: opts.Registry,
		ledger:   opts.Ledger,
		journal:  opts.Journal,
		logger:   logger.Named("swap"),
		metrics:  opts.Metrics,
		timeout:  opts.SettlementTimeout,
	}, nil
}

// Address returns the engine's spender identity.
func (e *Engine) Address() ledger.Address {
	return e.address
}

// Quote computes what a trade would pay out without moving funds.
func (e *Engine) Quote(id registry.PairID, inputToken ledger.Address, inputAmount math.Int) (Quote, error) {
	var q Quote
	err := e.registry.WithPair(id, func(pair registry.Pair) error {
		var err error
		q, err = ComputeQuote(pair, inputToken, inputAmount)
		return err
	})
	return q, err
}

// Trade sells inputAmount of inputToken to pair id and pays the caller the other side.
//
// Settlement pulls the input from the caller into the input reserve, then pushes the
// output from the other reserve to the caller. If the push fails the pull is reversed.
// The registry stays locked for the whole trade.
func (e *Engine) Trade(ctx context.Context, caller ledger.Address, id registry.PairID, inputToken ledger.Address, inputAmount math.Int) (Receipt, error) {
	start := time.Now()
	receipt := Receipt{TradeID: uuid.NewString()}
	status := StatusRejected

	l := e.logger.With(
		zap.String("trade_id", receipt.TradeID),
		zap.Uint64("pair_id", uint64(id)),
		zap.String("caller", caller.String()),
		zap.String("input_token", inputToken.String()),
		zap.String("input_amount", inputAmount.String()),
	)

	err := e.registry.WithPair(id, func(pair registry.Pair) error {
		q, err := ComputeQuote(pair, inputToken, inputAmount)
		if err != nil {
			return err
		}
		receipt.Quote = q
		status, err = e.settle(ctx, l, caller, q)
		return err
	})

	direction := string(receipt.Direction)
	if direction == "" {
		direction = "invalid"
	}
	e.metrics.ObserveTrade(direction, err, start)
	if receipt.Direction != "" {
		e.record(ctx, l, caller, receipt, status, err)
	}
	if err != nil {
		l.Warn("Trade failed", zap.String("status", status), zap.Error(err))
		return Receipt{}, err
	}

	l.Info("Trade settled",
		zap.String("direction", string(receipt.Direction)),
		zap.String("output_token", receipt.OutputToken.String()),
		zap.String("output_amount", receipt.OutputAmount.String()),
		zap.String("remainder", receipt.Remainder.String()),
	)
	return receipt, nil
}

// settle moves the funds for q and returns the journal status.
func (e *Engine) settle(ctx context.Context, l *zap.Logger, caller ledger.Address, q Quote) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// Refuse up front when the output reserve cannot pay. A failed push is compensated by
	// moving the input back, but the allowance the pull spent is not restored.
	if q.OutputAmount.IsPositive() {
		available, err := e.ledger.BalanceOf(ctx, q.OutputToken, q.ReserveOut)
		if err != nil {
			return StatusRejected, fmt.Errorf("%w: read %s balance of %s: %w", ErrSettlement, q.OutputToken, q.ReserveOut, err)
		}
		if q.InputToken == q.OutputToken && q.ReserveIn == q.ReserveOut {
			available = available.Add(q.InputAmount)
		}
		if available.LT(q.OutputAmount) {
			return StatusRejected, fmt.Errorf("%w: reserve %s holds %s %s, needs %s: %w",
				ErrSettlement, q.ReserveOut, available, q.OutputToken, q.OutputAmount, ledger.ErrInsufficientBalance)
		}
	}

	// Step 1: pull the input from the caller into the input reserve.
	if err := e.ledger.TransferFrom(ctx, q.InputToken, e.address, caller, q.ReserveIn, q.InputAmount); err != nil {
		return StatusRejected, fmt.Errorf("%w: pull %s %s from %s: %w", ErrSettlement, q.InputAmount, q.InputToken, caller, err)
	}

	// A B to A input smaller than the rate buys nothing; there is nothing to push.
	if q.OutputAmount.IsZero() {
		return StatusSettled, nil
	}

	// Step 2: push the output from the other reserve to the caller.
	pushErr := e.ledger.TransferFrom(ctx, q.OutputToken, e.address, q.ReserveOut, caller, q.OutputAmount)
	if pushErr == nil {
		return StatusSettled, nil
	}

	// Step 3: return the input. The settlement context may already be expired.
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if revertErr := e.ledger.TransferFrom(compCtx, q.InputToken, e.address, q.ReserveIn, caller, q.InputAmount); revertErr != nil {
		l.Error("Failed to revert input transfer after output transfer failure",
			zap.NamedError("original_error", pushErr),
			zap.NamedError("revert_error", revertErr),
			zap.String("reserve_in", q.ReserveIn.String()),
		)
		return StatusCompensationFailed, fmt.Errorf("%w: push %s %s from %s: %w (input not returned: %v)",
			ErrSettlement, q.OutputAmount, q.OutputToken, q.ReserveOut, pushErr, revertErr)
	}
	return StatusReverted, fmt.Errorf("%w: push %s %s from %s: %w", ErrSettlement, q.OutputAmount, q.OutputToken, q.ReserveOut, pushErr)
}

func (e *Engine) record(ctx context.Context, l *zap.Logger, caller ledger.Address, receipt Receipt, status string, tradeErr error) {
	if e.journal == nil {
		return
	}
	rec := TradeRecord{
		ID:           receipt.TradeID,
		PairID:       receipt.PairID,
		Caller:       caller,
		Direction:    receipt.Direction,
		InputToken:   receipt.InputToken,
		OutputToken:  receipt.OutputToken,
		InputAmount:  receipt.InputAmount,
		OutputAmount: receipt.OutputAmount,
		Status:       status,
		ExecutedAt:   time.Now().UTC(),
	}
	if tradeErr != nil {
		rec.Error = tradeErr.Error()
	}
	// The trade outcome stands even if the journal cannot be written.
	if err := e.journal.RecordTrade(context.WithoutCancel(ctx), rec); err != nil {
		l.Error("Failed to save trade record to database", zap.Error(err))
	}
}
