package snip9

import (
	"context"
	"errors"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/rpc"
	"github.com/NethermindEth/starknet.go/utils"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func feltFromHex(t *testing.T, hex string) *felt.Felt {
	t.Helper()
	f, err := new(felt.Felt).SetString(hex)
	require.NoError(t, err)
	return f
}

// fixtureExecution authorizes a single 0.01 ETH transfer, open to any caller.
func fixtureExecution(t *testing.T) *OutsideExecution {
	t.Helper()
	return &OutsideExecution{
		Caller:        AnyCaller(),
		Nonce:         feltFromHex(t, "0x66aa339fbf7a1"),
		ExecuteAfter:  1700000000,
		ExecuteBefore: 1700003600,
		Calls: []Call{
			{
				To:       feltFromHex(t, "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"),
				Selector: utils.GetSelectorFromNameFelt("transfer"),
				Calldata: []*felt.Felt{
					feltFromHex(t, "0x78662e7352d062084b0010068b99288486c2d8b914f6e2a55ce945f8792c8b1"),
					feltFromHex(t, "0x2386f26fc10000"),
					new(felt.Felt),
				},
			},
		},
	}
}

func TestMessageHashDeterministicAndVersioned(t *testing.T) {
	exec := fixtureExecution(t)
	signer := feltFromHex(t, "0x64b48806902a367c8598f4f95c305e8c1a1acba5f082d294a43793113115691")

	v2, err := exec.MessageHash(V2, "SN_SEPOLIA", signer)
	require.NoError(t, err)
	again, err := exec.MessageHash(V2, "SN_SEPOLIA", signer)
	require.NoError(t, err)
	require.Equal(t, v2, again)

	v1, err := exec.MessageHash(V1, "SN_SEPOLIA", signer)
	require.NoError(t, err)
	require.NotEqual(t, v2, v1)

	otherChain, err := exec.MessageHash(V2, "SN_MAIN", signer)
	require.NoError(t, err)
	require.NotEqual(t, v2, otherChain)

	otherSigner, err := exec.MessageHash(V2, "SN_SEPOLIA", feltFromHex(t, "0x1"))
	require.NoError(t, err)
	require.NotEqual(t, v2, otherSigner)
}

func TestMessageHashSensitiveToWindowAndNonce(t *testing.T) {
	signer := feltFromHex(t, "0x64b48806902a367c8598f4f95c305e8c1a1acba5f082d294a43793113115691")
	base := fixtureExecution(t)
	baseHash, err := base.MessageHash(V2, "SN_SEPOLIA", signer)
	require.NoError(t, err)

	shifted := fixtureExecution(t)
	shifted.ExecuteBefore++
	shiftedHash, err := shifted.MessageHash(V2, "SN_SEPOLIA", signer)
	require.NoError(t, err)
	require.NotEqual(t, baseHash, shiftedHash)

	renonced := fixtureExecution(t)
	renonced.Nonce = feltFromHex(t, "0x2")
	renoncedHash, err := renonced.MessageHash(V2, "SN_SEPOLIA", signer)
	require.NoError(t, err)
	require.NotEqual(t, baseHash, renoncedHash)
}

func TestValidateRejectsMalformedExecutions(t *testing.T) {
	signer := feltFromHex(t, "0x1")

	missingCaller := fixtureExecution(t)
	missingCaller.Caller = nil
	_, err := missingCaller.MessageHash(V2, "SN_SEPOLIA", signer)
	require.Error(t, err)

	emptyWindow := fixtureExecution(t)
	emptyWindow.ExecuteBefore = emptyWindow.ExecuteAfter
	_, err = emptyWindow.MessageHash(V2, "SN_SEPOLIA", signer)
	require.Error(t, err)

	noCalls := fixtureExecution(t)
	noCalls.Calls = nil
	_, err = noCalls.MessageHash(V2, "SN_SEPOLIA", signer)
	require.Error(t, err)
}

func TestCalldataLayout(t *testing.T) {
	exec := fixtureExecution(t)
	sig := []*felt.Felt{feltFromHex(t, "0xa"), feltFromHex(t, "0xb")}

	got := exec.Calldata(sig)

	expected := []*felt.Felt{
		exec.Caller,
		exec.Nonce,
		new(felt.Felt).SetUint64(1700000000),
		new(felt.Felt).SetUint64(1700003600),
		new(felt.Felt).SetUint64(1),
		exec.Calls[0].To,
		exec.Calls[0].Selector,
		new(felt.Felt).SetUint64(3),
		exec.Calls[0].Calldata[0],
		exec.Calls[0].Calldata[1],
		exec.Calls[0].Calldata[2],
		new(felt.Felt).SetUint64(2),
		sig[0],
		sig[1],
	}
	require.Equal(t, expected, got)
}

func TestFunctionCallTargetsVersionedEntrypoint(t *testing.T) {
	exec := fixtureExecution(t)
	signerAccount := feltFromHex(t, "0x64b48806902a367c8598f4f95c305e8c1a1acba5f082d294a43793113115691")
	sig := []*felt.Felt{feltFromHex(t, "0xa"), feltFromHex(t, "0xb")}

	call := exec.FunctionCall(V2, signerAccount, sig)
	require.Equal(t, signerAccount, call.ContractAddress)
	require.Equal(t, utils.GetSelectorFromNameFelt("execute_from_outside_v2"), call.EntryPointSelector)
	require.Equal(t, exec.Calldata(sig), call.Calldata)

	v1Call := exec.FunctionCall(V1, signerAccount, sig)
	require.Equal(t, utils.GetSelectorFromNameFelt("execute_from_outside"), v1Call.EntryPointSelector)
}

func TestNewNonceIsUnique(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

type fakeCallProvider struct {
	supported map[string]bool
	err       error
}

func (f *fakeCallProvider) Call(_ context.Context, call rpc.FunctionCall, _ rpc.BlockID) ([]*felt.Felt, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(call.Calldata) != 1 {
		return nil, errors.New("supports_interface expects one argument")
	}
	if f.supported[call.Calldata[0].String()] {
		return []*felt.Felt{new(felt.Felt).SetUint64(1)}, nil
	}
	return []*felt.Felt{new(felt.Felt)}, nil
}

func TestSupportedVersionPrefersV2(t *testing.T) {
	ctx := context.Background()
	address := feltFromHex(t, "0x123")

	both := &fakeCallProvider{supported: map[string]bool{
		V1.InterfaceID().String(): true,
		V2.InterfaceID().String(): true,
	}}
	v, err := SupportedVersion(ctx, both, address)
	require.NoError(t, err)
	require.Equal(t, V2, v)

	v1Only := &fakeCallProvider{supported: map[string]bool{
		V1.InterfaceID().String(): true,
	}}
	v, err = SupportedVersion(ctx, v1Only, address)
	require.NoError(t, err)
	require.Equal(t, V1, v)
}

func TestSupportedVersionReportsAbsence(t *testing.T) {
	ctx := context.Background()
	address := feltFromHex(t, "0x123")

	none := &fakeCallProvider{supported: map[string]bool{}}
	_, err := SupportedVersion(ctx, none, address)
	require.ErrorIs(t, err, ErrNotSupported)

	broken := &fakeCallProvider{err: errors.New("connection refused")}
	_, err = SupportedVersion(ctx, broken, address)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotSupported)
}

func TestTypedDataJSONGolden(t *testing.T) {
	exec := fixtureExecution(t)
	g := goldie.New(t)

	v2Doc, err := exec.TypedDataJSON(V2, "SN_SEPOLIA")
	require.NoError(t, err)
	g.Assert(t, "outside_execution_v2", v2Doc)

	v1Doc, err := exec.TypedDataJSON(V1, "SN_SEPOLIA")
	require.NoError(t, err)
	g.Assert(t, "outside_execution_v1", v1Doc)
}
