// Package wallet wraps the SDK account abstraction with the handful of
// operations the integration flows need: bootstrap from configuration,
// ERC-20 balance reads, transfers, and transaction status polling. All
// signing, hashing and calldata formatting stays inside starknet.go.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/account"
	"github.com/NethermindEth/starknet.go/rpc"
	"github.com/NethermindEth/starknet.go/utils"

	"github.com/starklab/starkdev_sdk_go/pkg/config"
)

// defaultMaxFee is generous for a devnet; real networks should estimate.
const defaultMaxFeeHex = "0x16345785d8a0000" // 0.1 ETH

// ErrReverted is returned when a submitted transaction executes but reverts.
var ErrReverted = errors.New("wallet: transaction reverted")

// Option configures a Wallet.
type Option func(*Wallet)

// WithMaxFee overrides the static max fee attached to invokes.
func WithMaxFee(maxFee *felt.Felt) Option {
	return func(w *Wallet) {
		if maxFee != nil {
			w.maxFee = maxFee
		}
	}
}

// Wallet binds an SDK account to a fee token and tuning options.
type Wallet struct {
	Account  *account.Account
	provider *rpc.Provider
	feeToken *felt.Felt
	tuning   config.Options
	maxFee   *felt.Felt
}

// New derives the SDK account from the configured credentials and wires it to
// the provider.
func New(provider *rpc.Provider, acct config.Account, network config.Network, tuning config.Options, opts ...Option) (*Wallet, error) {
	if provider == nil {
		return nil, errors.New("wallet: provider is required")
	}
	if !acct.HasCredentials() {
		return nil, errors.New("wallet: account credentials are required")
	}

	address, err := utils.HexToFelt(acct.Address)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse account address: %w", err)
	}
	privKey, ok := new(big.Int).SetString(trimHexPrefix(acct.PrivateKey), 16)
	if !ok {
		return nil, errors.New("wallet: parse private key")
	}
	feeToken, err := utils.HexToFelt(network.FeeToken)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse fee token: %w", err)
	}

	ks := account.SetNewMemKeystore(acct.PublicKey, privKey)
	sdkAccount, err := account.NewAccount(provider, address, acct.PublicKey, ks, acct.CairoVersion)
	if err != nil {
		return nil, fmt.Errorf("wallet: init account: %w", err)
	}

	maxFee, err := utils.HexToFelt(defaultMaxFeeHex)
	if err != nil {
		return nil, err
	}
	w := &Wallet{
		Account:  sdkAccount,
		provider: provider,
		feeToken: feeToken,
		tuning:   tuning,
		maxFee:   maxFee,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Address returns the account contract address.
func (w *Wallet) Address() *felt.Felt {
	return w.Account.AccountAddress
}

// BalanceOf reads the fee token balance of address.
func (w *Wallet) BalanceOf(ctx context.Context, address *felt.Felt) (*big.Int, error) {
	if address == nil {
		return nil, errors.New("wallet: address is required")
	}
	result, err := w.provider.Call(ctx, rpc.FunctionCall{
		ContractAddress:    w.feeToken,
		EntryPointSelector: utils.GetSelectorFromNameFelt("balanceOf"),
		Calldata:           []*felt.Felt{address},
	}, rpc.WithBlockTag("latest"))
	if err != nil {
		return nil, fmt.Errorf("wallet: balanceOf: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("wallet: balanceOf returned %d felts, want u256", len(result))
	}
	return CombineUint256(result[0], result[1]), nil
}

// Transfer moves amount of the fee token to recipient and returns the
// transaction hash.
func (w *Wallet) Transfer(ctx context.Context, recipient *felt.Felt, amount *big.Int) (*felt.Felt, error) {
	if recipient == nil {
		return nil, errors.New("wallet: recipient is required")
	}
	low, high, err := SplitUint256(amount)
	if err != nil {
		return nil, err
	}
	return w.Invoke(ctx, []rpc.FunctionCall{{
		ContractAddress:    w.feeToken,
		EntryPointSelector: utils.GetSelectorFromNameFelt("transfer"),
		Calldata:           []*felt.Felt{recipient, low, high},
	}})
}

// Invoke signs and submits the calls as a single v1 invoke transaction.
func (w *Wallet) Invoke(ctx context.Context, calls []rpc.FunctionCall) (*felt.Felt, error) {
	if len(calls) == 0 {
		return nil, errors.New("wallet: at least one call is required")
	}

	nonce, err := w.Account.Nonce(ctx, rpc.WithBlockTag("latest"), w.Account.AccountAddress)
	if err != nil {
		return nil, fmt.Errorf("wallet: fetch nonce: %w", err)
	}

	invoke := rpc.InvokeTxnV1{
		MaxFee:        w.maxFee,
		Version:       rpc.TransactionV1,
		Nonce:         nonce,
		Type:          rpc.TransactionType_Invoke,
		SenderAddress: w.Account.AccountAddress,
	}
	invoke.Calldata, err = w.Account.FmtCalldata(calls)
	if err != nil {
		return nil, fmt.Errorf("wallet: format calldata: %w", err)
	}
	if err := w.Account.SignInvokeTransaction(ctx, &invoke); err != nil {
		return nil, fmt.Errorf("wallet: sign invoke: %w", err)
	}

	resp, err := w.Account.SendTransaction(ctx, rpc.BroadcastInvokev1Txn{InvokeTxnV1: invoke})
	if err != nil {
		return nil, fmt.Errorf("wallet: submit invoke: %w", err)
	}
	return resp.TransactionHash, nil
}

// WaitForStatus polls the transaction status until it is accepted, reverted,
// or the configured timeout elapses. Transient lookup errors (the devnet may
// not know the hash yet) are retried.
func (w *Wallet) WaitForStatus(ctx context.Context, txHash *felt.Felt) (*rpc.TxnStatusResp, error) {
	if txHash == nil {
		return nil, errors.New("wallet: transaction hash is required")
	}

	timeout := w.tuning.Timeout.Std()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	interval := w.tuning.RetryDelay.Std()
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		status, err := w.provider.GetTransactionStatus(ctx, txHash)
		if err == nil {
			if status.ExecutionStatus == rpc.TxnExecutionStatusREVERTED {
				return status, fmt.Errorf("%w: %s", ErrReverted, txHash.String())
			}
			switch status.FinalityStatus {
			case rpc.TxnStatus_Accepted_On_L2, rpc.TxnStatus_Accepted_On_L1:
				return status, nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("wallet: wait for %s: %w (last error: %v)", txHash.String(), ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("wallet: wait for %s: %w", txHash.String(), ctx.Err())
		case <-time.After(interval):
		}
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
