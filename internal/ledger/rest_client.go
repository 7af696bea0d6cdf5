package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"semidex-go/internal/config"
)

const (
	maxRetries           = 3
	idempotencyKeyHeader = "Idempotency-Key"
)

// Error codes returned by the ledger service in the body of a failed request.
const (
	codeUnknownToken          = "unknown_token"
	codeInsufficientBalance   = "insufficient_balance"
	codeInsufficientAllowance = "insufficient_allowance"
	codeInvalidAmount         = "invalid_amount"
)

// RestClient is a client for a remote ledger service's REST API.
// It implements the Ledger interface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter

	metaMu   sync.RWMutex
	metadata map[Address]TokenMetadata
}

// ensure RestClient implements the interface
var _ Ledger = (*RestClient)(nil)

// NewRestClient creates a new ledger REST API client.
func NewRestClient(cfg *config.Ledger, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(cfg.URL)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:   client,
		logger:   logger.Named("ledger-client"),
		limiter:  limiter,
		metadata: make(map[Address]TokenMetadata),
	}
}

// TokenMetadata is the response of the token endpoint.
type TokenMetadata struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type transferFromRequest struct {
	Spender Address `json:"spender"`
	Owner   Address `json:"owner"`
	To      Address `json:"to"`
	Amount  string  `json:"amount"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// Only requests that are safe to repeat go through here: reads and transfers carrying an idempotency key.
func (c *RestClient) doRequest(ctx context.Context, method, path string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	req.SetContext(ctx)

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+path))
		resp, err = req.Execute(method, path)

		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, decodeError(resp)
		}

		if i == maxRetries-1 {
			break
		}
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil {
		err = decodeError(resp)
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// decodeError maps a ledger error body onto the package's sentinel errors.
func decodeError(resp *resty.Response) error {
	var body errorResponse
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr != nil || body.Code == "" {
		return fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
	}

	var sentinel error
	switch body.Code {
	case codeUnknownToken:
		sentinel = ErrUnknownToken
	case codeInsufficientBalance:
		sentinel = ErrInsufficientBalance
	case codeInsufficientAllowance:
		sentinel = ErrInsufficientAllowance
	case codeInvalidAmount:
		sentinel = ErrInvalidAmount
	default:
		return fmt.Errorf("request failed with status %s: %s: %s", resp.Status(), body.Code, body.Message)
	}
	return fmt.Errorf("%s: %w", body.Message, sentinel)
}

// Metadata fetches a token's symbol and decimals. Results are cached; token metadata never changes.
func (c *RestClient) Metadata(ctx context.Context, token Address) (TokenMetadata, error) {
	c.metaMu.RLock()
	meta, ok := c.metadata[token]
	c.metaMu.RUnlock()
	if ok {
		return meta, nil
	}

	req := c.client.R().
		SetResult(&TokenMetadata{}).
		SetHeader("Content-Type", "application/json")

	resp, err := c.doRequest(ctx, http.MethodGet, "/tokens/"+url.PathEscape(token.String()), req)
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("failed to get metadata of token %s: %w", token, err)
	}

	meta = *resp.Result().(*TokenMetadata)
	c.metaMu.Lock()
	c.metadata[token] = meta
	c.metaMu.Unlock()
	return meta, nil
}

func (c *RestClient) Symbol(ctx context.Context, token Address) (string, error) {
	meta, err := c.Metadata(ctx, token)
	if err != nil {
		return "", err
	}
	return meta.Symbol, nil
}

func (c *RestClient) Decimals(ctx context.Context, token Address) (uint8, error) {
	meta, err := c.Metadata(ctx, token)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// BalanceOf fetches the live balance of account in token.
func (c *RestClient) BalanceOf(ctx context.Context, token, account Address) (sdkmath.Int, error) {
	req := c.client.R().
		SetResult(&balanceResponse{}).
		SetHeader("Content-Type", "application/json")

	path := fmt.Sprintf("/tokens/%s/balances/%s", url.PathEscape(token.String()), url.PathEscape(account.String()))
	resp, err := c.doRequest(ctx, http.MethodGet, path, req)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to get balance of %s in %s: %w", account, token, err)
	}

	raw := resp.Result().(*balanceResponse).Balance
	balance, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("ledger returned malformed balance %q for %s", raw, account)
	}
	return balance, nil
}

// TransferFrom asks the ledger to move amount of token from owner to to on behalf of spender.
// Every call carries a fresh idempotency key so that retries never apply the transfer twice.
func (c *RestClient) TransferFrom(ctx context.Context, token, spender, owner, to Address, amount sdkmath.Int) error {
	key := uuid.NewString()
	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader(idempotencyKeyHeader, key).
		SetBody(transferFromRequest{
			Spender: spender,
			Owner:   owner,
			To:      to,
			Amount:  amount.String(),
		})

	path := fmt.Sprintf("/tokens/%s/transfer-from", url.PathEscape(token.String()))
	if _, err := c.doRequest(ctx, http.MethodPost, path, req); err != nil {
		c.logger.Error("Failed to transfer",
			zap.Error(err),
			zap.String("token", token.String()),
			zap.String("owner", owner.String()),
			zap.String("to", to.String()),
			zap.String("amount", amount.String()),
			zap.String("idempotency_key", key),
		)
		return fmt.Errorf("failed to transfer %s %s from %s to %s: %w", amount, token, owner, to, err)
	}
	return nil
}
