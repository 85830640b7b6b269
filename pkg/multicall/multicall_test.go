package multicall

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/rpc"
	"github.com/NethermindEth/starknet.go/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	failAt   map[string]error
}

func (f *fakeProvider) Call(ctx context.Context, call rpc.FunctionCall, _ rpc.BlockID) ([]*felt.Felt, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	f.mu.Lock()
	if current > f.maxSeen {
		f.maxSeen = current
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err, ok := f.failAt[call.ContractAddress.String()]; ok {
		return nil, err
	}
	// Echo the contract address so ordering is observable.
	return []*felt.Felt{call.ContractAddress}, nil
}

func callTo(t *testing.T, hex string) rpc.FunctionCall {
	t.Helper()
	addr, err := utils.HexToFelt(hex)
	require.NoError(t, err)
	return rpc.FunctionCall{
		ContractAddress:    addr,
		EntryPointSelector: utils.GetSelectorFromNameFelt("balanceOf"),
		Calldata:           []*felt.Felt{addr},
	}
}

func TestCallManyPreservesOrder(t *testing.T) {
	provider := &fakeProvider{}
	reader := New(provider)

	calls := []rpc.FunctionCall{
		callTo(t, "0x1"), callTo(t, "0x2"), callTo(t, "0x3"), callTo(t, "0x4"),
	}
	results, err := reader.CallMany(context.Background(), calls, rpc.WithBlockTag("latest"))
	require.NoError(t, err)
	require.Len(t, results, len(calls))

	for i, call := range calls {
		if diff := cmp.Diff(call.ContractAddress.String(), results[i][0].String()); diff != "" {
			t.Fatalf("result %d out of order (-want +got):\n%s", i, diff)
		}
	}
}

func TestCallManyBoundsConcurrency(t *testing.T) {
	provider := &fakeProvider{delay: 10 * time.Millisecond}
	reader := New(provider, WithConcurrency(2))

	calls := make([]rpc.FunctionCall, 8)
	for i := range calls {
		calls[i] = callTo(t, "0x1")
	}
	_, err := reader.CallMany(context.Background(), calls, rpc.WithBlockTag("latest"))
	require.NoError(t, err)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.LessOrEqual(t, provider.maxSeen, int32(2))
}

func TestCallManyPropagatesFirstError(t *testing.T) {
	boom := errors.New("contract not found")
	provider := &fakeProvider{failAt: map[string]error{"0x3": boom}}
	reader := New(provider)

	calls := []rpc.FunctionCall{callTo(t, "0x1"), callTo(t, "0x3")}
	_, err := reader.CallMany(context.Background(), calls, rpc.WithBlockTag("latest"))
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "call 1")
}

func TestCallManyEmptyBatch(t *testing.T) {
	reader := New(&fakeProvider{})
	results, err := reader.CallMany(context.Background(), nil, rpc.WithBlockTag("latest"))
	require.NoError(t, err)
	require.Nil(t, results)
}
