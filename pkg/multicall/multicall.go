// Package multicall batches independent contract reads. Starknet's JSON-RPC
// has no native read batching at this protocol version, so the batch is a
// bounded fan-out of starknet_call requests; results come back in input order
// and the first failure cancels the remainder.
package multicall

import (
	"context"
	"errors"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/rpc"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel requests against a local devnet.
const DefaultConcurrency = 8

// Provider is the read-only slice of the RPC provider used by the batcher.
type Provider interface {
	Call(ctx context.Context, call rpc.FunctionCall, blockID rpc.BlockID) ([]*felt.Felt, error)
}

// Option configures a Reader.
type Option func(*Reader)

// WithConcurrency bounds the number of in-flight requests.
func WithConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// Reader fans out batched reads over a provider.
type Reader struct {
	provider    Provider
	concurrency int
}

// New constructs a Reader.
func New(provider Provider, opts ...Option) *Reader {
	r := &Reader{provider: provider, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CallMany executes every call against the same block and returns the raw
// results in input order. The first error aborts the batch and is returned
// wrapped with the index of the failing call.
func (r *Reader) CallMany(ctx context.Context, calls []rpc.FunctionCall, blockID rpc.BlockID) ([][]*felt.Felt, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("multicall: reader is nil")
	}
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([][]*felt.Felt, len(calls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			res, err := r.provider.Call(ctx, call, blockID)
			if err != nil {
				return fmt.Errorf("multicall: call %d (%s): %w", i, call.ContractAddress.String(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
