package devnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"

	"github.com/NethermindEth/juno/core/felt"
	"go.uber.org/zap"

	"github.com/starklab/starkdev_sdk_go/internal/devnetapi"
	"github.com/starklab/starkdev_sdk_go/internal/httpx"
	"github.com/starklab/starkdev_sdk_go/pkg/config"
)

// Backend is the transport behind a Client. The HTTP backend talks to a real
// devnet; pkg/devnet/mock provides an in-memory replacement.
type Backend interface {
	IsAlive(ctx context.Context) (bool, error)
	PredeployedAccounts(ctx context.Context) ([]PredeployedAccount, error)
	Mint(ctx context.Context, address *felt.Felt, amount *big.Int, unit BalanceUnit) (*MintResult, error)
	AccountBalance(ctx context.Context, address *felt.Felt, unit BalanceUnit) (*Balance, error)
	CreateBlock(ctx context.Context) (*BlockInfo, error)
	SetTime(ctx context.Context, unix uint64) (*BlockInfo, error)
	IncreaseTime(ctx context.Context, seconds uint64) (*BlockInfo, error)
	Restart(ctx context.Context) error
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	httpOpts []httpx.Option
	log      *zap.Logger
}

// WithLogger attaches a logger; requests are traced at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTuning derives the HTTP timeout and retry policy from the configured
// tuning options.
func WithTuning(opts config.Options) Option {
	return func(s *settings) {
		s.httpOpts = append(s.httpOpts,
			httpx.WithTimeout(opts.Timeout.Std()),
			httpx.WithRetryPolicy(httpx.RetryPolicy{
				MaxRetries: opts.RetryCount,
				BaseDelay:  opts.RetryDelay.Std(),
				MaxDelay:   8 * opts.RetryDelay.Std(),
				Jitter:     0.25,
			}),
		)
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(s *settings) {
		s.httpOpts = append(s.httpOpts, httpx.WithHTTPClient(h))
	}
}

// Client provides access to the devnet management API.
type Client struct {
	backend Backend
	log     *zap.Logger
}

// New constructs a Client bound to the devnet base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	s := settings{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	hc, err := httpx.NewClient(baseURL, s.httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("devnet: init HTTP client: %w", err)
	}
	return &Client{backend: &httpBackend{client: hc}, log: s.log}, nil
}

// NewWithBackend allows callers to supply a custom backend (e.g. the mock).
func NewWithBackend(b Backend, opts ...Option) *Client {
	s := settings{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Client{backend: b, log: s.log}
}

// IsAlive reports whether the devnet answers its liveness probe.
func (c *Client) IsAlive(ctx context.Context) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.backend.IsAlive(ctx)
}

// PredeployedAccounts lists the accounts funded at genesis.
func (c *Client) PredeployedAccounts(ctx context.Context) ([]PredeployedAccount, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	accounts, err := c.backend.PredeployedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Debug("fetched predeployed accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

// Mint credits amount of the given unit to address and returns the new
// balance.
func (c *Client) Mint(ctx context.Context, address *felt.Felt, amount *big.Int, unit BalanceUnit) (*MintResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if address == nil {
		return nil, errors.New("devnet: address is required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("devnet: mint amount must be positive")
	}
	res, err := c.backend.Mint(ctx, address, amount, normalizeUnit(unit))
	if err != nil {
		return nil, err
	}
	c.log.Debug("minted",
		zap.String("address", address.String()),
		zap.String("amount", amount.String()),
		zap.String("unit", string(res.Unit)))
	return res, nil
}

// AccountBalance returns the fee token balance of address.
func (c *Client) AccountBalance(ctx context.Context, address *felt.Felt, unit BalanceUnit) (*Balance, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if address == nil {
		return nil, errors.New("devnet: address is required")
	}
	return c.backend.AccountBalance(ctx, address, normalizeUnit(unit))
}

// CreateBlock forces the devnet to seal a new block.
func (c *Client) CreateBlock(ctx context.Context) (*BlockInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.backend.CreateBlock(ctx)
}

// SetTime pins the next block timestamp to the given unix time.
func (c *Client) SetTime(ctx context.Context, unix uint64) (*BlockInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.backend.SetTime(ctx, unix)
}

// IncreaseTime advances devnet time by seconds and seals a block.
func (c *Client) IncreaseTime(ctx context.Context, seconds uint64) (*BlockInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.backend.IncreaseTime(ctx, seconds)
}

// Restart resets the devnet to its genesis state.
func (c *Client) Restart(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.backend.Restart(ctx)
}

func (c *Client) ready() error {
	if c == nil || c.backend == nil {
		return errors.New("devnet: client is nil")
	}
	return nil
}

func normalizeUnit(unit BalanceUnit) BalanceUnit {
	if unit == "" {
		return UnitWEI
	}
	return unit
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) IsAlive(ctx context.Context) (bool, error) {
	_, err := b.client.Do(ctx, &httpx.Request{
		Method:       http.MethodGet,
		Path:         "is_alive",
		DisableRetry: true,
	})
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

func (b *httpBackend) PredeployedAccounts(ctx context.Context) ([]PredeployedAccount, error) {
	body, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   "predeployed_accounts",
	})
	if err != nil {
		return nil, err
	}
	var accounts []PredeployedAccount
	if err := devnetapi.Decode(body, &accounts); err != nil {
		return nil, fmt.Errorf("devnet: decode predeployed_accounts: %w", err)
	}
	return accounts, nil
}

func (b *httpBackend) Mint(ctx context.Context, address *felt.Felt, amount *big.Int, unit BalanceUnit) (*MintResult, error) {
	// The devnet expects the amount as a JSON number; big amounts must not
	// round-trip through float64.
	payload := map[string]json.RawMessage{
		"address": mustJSON(address.String()),
		"amount":  json.RawMessage(amount.String()),
		"unit":    mustJSON(string(unit)),
	}
	body, err := b.client.Do(ctx, &httpx.Request{
		Method:   http.MethodPost,
		Path:     "mint",
		JSONBody: payload,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		NewBalance string     `json:"new_balance"`
		Unit       string     `json:"unit"`
		TxHash     *felt.Felt `json:"tx_hash"`
	}
	if err := devnetapi.Decode(body, &resp); err != nil {
		return nil, fmt.Errorf("devnet: decode mint response: %w", err)
	}
	newBalance, ok := new(big.Int).SetString(resp.NewBalance, 10)
	if !ok {
		return nil, fmt.Errorf("devnet: mint returned malformed balance %q", resp.NewBalance)
	}
	return &MintResult{NewBalance: newBalance, Unit: BalanceUnit(resp.Unit), TxHash: resp.TxHash}, nil
}

func (b *httpBackend) AccountBalance(ctx context.Context, address *felt.Felt, unit BalanceUnit) (*Balance, error) {
	body, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   "account_balance",
		Query: url.Values{
			"address": {address.String()},
			"unit":    {string(unit)},
		},
	})
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, address.String())
		}
		return nil, err
	}
	var resp struct {
		Amount string `json:"amount"`
		Unit   string `json:"unit"`
	}
	if err := devnetapi.Decode(body, &resp); err != nil {
		return nil, fmt.Errorf("devnet: decode account_balance: %w", err)
	}
	amount, ok := new(big.Int).SetString(resp.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("devnet: malformed balance %q", resp.Amount)
	}
	return &Balance{Amount: amount, Unit: BalanceUnit(resp.Unit)}, nil
}

func (b *httpBackend) CreateBlock(ctx context.Context) (*BlockInfo, error) {
	return b.blockCall(ctx, "create_block", map[string]any{})
}

func (b *httpBackend) SetTime(ctx context.Context, unix uint64) (*BlockInfo, error) {
	return b.blockCall(ctx, "set_time", map[string]any{"time": unix, "generate_block": true})
}

func (b *httpBackend) IncreaseTime(ctx context.Context, seconds uint64) (*BlockInfo, error) {
	return b.blockCall(ctx, "increase_time", map[string]any{"time": seconds})
}

func (b *httpBackend) Restart(ctx context.Context) error {
	body, err := b.client.Do(ctx, &httpx.Request{
		Method:   http.MethodPost,
		Path:     "restart",
		JSONBody: map[string]any{},
	})
	if err != nil {
		return err
	}
	return devnetapi.ExtractError(body)
}

func (b *httpBackend) blockCall(ctx context.Context, path string, payload map[string]any) (*BlockInfo, error) {
	body, err := b.client.Do(ctx, &httpx.Request{
		Method:   http.MethodPost,
		Path:     path,
		JSONBody: payload,
	})
	if err != nil {
		return nil, err
	}
	var info BlockInfo
	if err := devnetapi.Decode(body, &info); err != nil {
		return nil, fmt.Errorf("devnet: decode %s response: %w", path, err)
	}
	return &info, nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
