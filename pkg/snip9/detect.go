package snip9

import (
	"context"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/rpc"
	"github.com/NethermindEth/starknet.go/utils"
)

// CallProvider is the read-only slice of the RPC provider this package needs.
type CallProvider interface {
	Call(ctx context.Context, call rpc.FunctionCall, blockID rpc.BlockID) ([]*felt.Felt, error)
}

// SupportedVersion probes the account through SNIP-5 supports_interface,
// preferring V2 over V1. It returns ErrNotSupported when the account
// implements neither interface.
func SupportedVersion(ctx context.Context, provider CallProvider, accountAddress *felt.Felt) (Version, error) {
	for _, v := range []Version{V2, V1} {
		ok, err := supportsInterface(ctx, provider, accountAddress, v.InterfaceID())
		if err != nil {
			return 0, err
		}
		if ok {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotSupported, accountAddress.String())
}

func supportsInterface(ctx context.Context, provider CallProvider, accountAddress, interfaceID *felt.Felt) (bool, error) {
	result, err := provider.Call(ctx, rpc.FunctionCall{
		ContractAddress:    accountAddress,
		EntryPointSelector: utils.GetSelectorFromNameFelt("supports_interface"),
		Calldata:           []*felt.Felt{interfaceID},
	}, rpc.WithBlockTag("latest"))
	if err != nil {
		return false, fmt.Errorf("snip9: supports_interface call: %w", err)
	}
	return len(result) > 0 && !result[0].IsZero(), nil
}
