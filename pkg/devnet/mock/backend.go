package mock

import (
	"context"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starklab/starkdev_sdk_go/pkg/devnet"
)

// Backend adapts a Mock to the devnet.Backend interface so it can sit behind
// devnet.NewWithBackend without going through HTTP.
type Backend struct {
	m *Mock
}

// NewBackend wraps m.
func NewBackend(m *Mock) *Backend {
	return &Backend{m: m}
}

// Mock exposes the underlying state for test setup.
func (b *Backend) Mock() *Mock { return b.m }

func (b *Backend) IsAlive(_ context.Context) (bool, error) {
	return b.m.IsAlive(), nil
}

func (b *Backend) PredeployedAccounts(_ context.Context) ([]devnet.PredeployedAccount, error) {
	return b.m.PredeployedAccounts(), nil
}

func (b *Backend) Mint(_ context.Context, address *felt.Felt, amount *big.Int, unit devnet.BalanceUnit) (*devnet.MintResult, error) {
	return b.m.Mint(address, amount, unit)
}

func (b *Backend) AccountBalance(_ context.Context, address *felt.Felt, unit devnet.BalanceUnit) (*devnet.Balance, error) {
	return b.m.Balance(address, unit)
}

func (b *Backend) CreateBlock(_ context.Context) (*devnet.BlockInfo, error) {
	info := b.m.CreateBlock()
	return &info, nil
}

func (b *Backend) SetTime(_ context.Context, unix uint64) (*devnet.BlockInfo, error) {
	info := b.m.SetTime(unix)
	return &info, nil
}

func (b *Backend) IncreaseTime(_ context.Context, seconds uint64) (*devnet.BlockInfo, error) {
	info := b.m.IncreaseTime(seconds)
	return &info, nil
}

func (b *Backend) Restart(_ context.Context) error {
	b.m.Restart()
	return nil
}
