package snip9

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/account"
	"github.com/NethermindEth/starknet.go/rpc"
	"github.com/NethermindEth/starknet.go/utils"

	"github.com/starklab/starkdev_sdk_go/pkg/snip12"
)

// Version identifies an outside-execution interface revision.
type Version int

const (
	// V1 is the original interface (revision-0 typed data).
	V1 Version = 1
	// V2 is the SNIP-9 standard interface (revision-1 typed data).
	V2 Version = 2
)

// Published SNIP-5 interface ids.
const (
	interfaceIDV1Hex = "0x68cfd18b92d1907b8ba3cc324900277f5a3622099431ea85dd8089255e4181"
	interfaceIDV2Hex = "0x1d1144bb2138366ff28d8e9ab57456b1d332ac42196230c3a602003c89872"
)

// Typed-data encodings for both revisions.
const (
	outsideExecutionTypeV1 = "OutsideExecution(caller:felt,nonce:felt,execute_after:felt,execute_before:felt,calls_len:felt,calls:OutsideCall*)OutsideCall(to:felt,selector:felt,calldata_len:felt,calldata:felt*)"
	outsideCallTypeV1      = "OutsideCall(to:felt,selector:felt,calldata_len:felt,calldata:felt*)"

	outsideExecutionTypeV2 = `"OutsideExecution"("Caller":"ContractAddress","Nonce":"felt","Execute After":"u128","Execute Before":"u128","Calls":"Call*")"Call"("To":"ContractAddress","Selector":"selector","Calldata":"felt*")`
	callTypeV2             = `"Call"("To":"ContractAddress","Selector":"selector","Calldata":"felt*")`
)

const domainName = "Account.execute_from_outside"

// ErrNotSupported is returned when an account implements neither
// outside-execution interface. Callers typically log and skip.
var ErrNotSupported = errors.New("snip9: outside execution not supported by account")

// AnyCaller is the wildcard ('ANY_CALLER') that lets any address submit the
// signed execution.
func AnyCaller() *felt.Felt {
	return snip12.MustShortString("ANY_CALLER")
}

// InterfaceID returns the SNIP-5 interface id probed for this version.
func (v Version) InterfaceID() *felt.Felt {
	switch v {
	case V1:
		return mustHexFelt(interfaceIDV1Hex)
	case V2:
		return mustHexFelt(interfaceIDV2Hex)
	default:
		panic(fmt.Sprintf("snip9: unknown version %d", v))
	}
}

// EntryPoint returns the account entrypoint the execution is submitted to.
func (v Version) EntryPoint() string {
	if v == V2 {
		return "execute_from_outside_v2"
	}
	return "execute_from_outside"
}

func (v Version) revision() snip12.Revision {
	if v == V2 {
		return snip12.Revision1
	}
	return snip12.Revision0
}

func (v Version) domain(chainID string) snip12.Domain {
	return snip12.Domain{
		Name:    domainName,
		Version: fmt.Sprintf("%d", v),
		ChainID: chainID,
	}
}

// Call is one call authorized by the signer.
type Call struct {
	To       *felt.Felt
	Selector *felt.Felt
	Calldata []*felt.Felt
}

// OutsideExecution is the payload the account owner signs: who may submit it,
// an anti-replay nonce, the validity window, and the calls to run.
type OutsideExecution struct {
	Caller        *felt.Felt
	Nonce         *felt.Felt
	ExecuteAfter  uint64
	ExecuteBefore uint64
	Calls         []Call
}

// NewNonce draws a random outside-execution nonce. The nonce only needs to be
// unique per signer, not sequential.
func NewNonce() (*felt.Felt, error) {
	var buf [31]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("snip9: draw nonce: %w", err)
	}
	return new(felt.Felt).SetBytes(buf[:]), nil
}

func (o *OutsideExecution) validate() error {
	if o == nil {
		return errors.New("snip9: outside execution is nil")
	}
	if o.Caller == nil {
		return errors.New("snip9: caller is required (use AnyCaller for the wildcard)")
	}
	if o.Nonce == nil {
		return errors.New("snip9: nonce is required")
	}
	if o.ExecuteBefore <= o.ExecuteAfter {
		return errors.New("snip9: execution window is empty")
	}
	if len(o.Calls) == 0 {
		return errors.New("snip9: at least one call is required")
	}
	for i, call := range o.Calls {
		if call.To == nil || call.Selector == nil {
			return fmt.Errorf("snip9: call %d is missing target or selector", i)
		}
	}
	return nil
}

// MessageHash computes the typed-data hash the account owner signs.
func (o *OutsideExecution) MessageHash(v Version, chainID string, signer *felt.Felt) (*felt.Felt, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, errors.New("snip9: signer address is required")
	}
	structHash := o.structHash(v)
	return snip12.MessageHash(v.revision(), v.domain(chainID), signer, structHash)
}

func (o *OutsideExecution) structHash(v Version) *felt.Felt {
	rev := v.revision()
	after := new(felt.Felt).SetUint64(o.ExecuteAfter)
	before := new(felt.Felt).SetUint64(o.ExecuteBefore)

	callHashes := make([]*felt.Felt, len(o.Calls))
	for i, call := range o.Calls {
		callHashes[i] = call.structHash(v)
	}
	callsHash := snip12.HashElements(rev, callHashes...)

	if v == V2 {
		return snip12.HashStruct(rev, snip12.TypeHash(outsideExecutionTypeV2),
			o.Caller, o.Nonce, after, before, callsHash)
	}
	callsLen := new(felt.Felt).SetUint64(uint64(len(o.Calls)))
	return snip12.HashStruct(rev, snip12.TypeHash(outsideExecutionTypeV1),
		o.Caller, o.Nonce, after, before, callsLen, callsHash)
}

func (c Call) structHash(v Version) *felt.Felt {
	rev := v.revision()
	calldataHash := snip12.HashElements(rev, c.Calldata...)
	if v == V2 {
		return snip12.HashStruct(rev, snip12.TypeHash(callTypeV2),
			c.To, c.Selector, calldataHash)
	}
	calldataLen := new(felt.Felt).SetUint64(uint64(len(c.Calldata)))
	return snip12.HashStruct(rev, snip12.TypeHash(outsideCallTypeV1),
		c.To, c.Selector, calldataLen, calldataHash)
}

// Sign produces the [r, s] signature of the message hash using the delegating
// account's key. The chain id must match the network the account lives on.
func Sign(ctx context.Context, o *OutsideExecution, signer *account.Account, v Version, chainID string) ([]*felt.Felt, error) {
	if signer == nil {
		return nil, errors.New("snip9: signer account is required")
	}
	hash, err := o.MessageHash(v, chainID, signer.AccountAddress)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("snip9: sign message hash: %w", err)
	}
	return sig, nil
}

// Calldata serializes the execution plus signature for the entrypoint:
// [caller, nonce, after, before, calls_len, (to, selector, len, data...)*,
// sig_len, sig...].
func (o *OutsideExecution) Calldata(signature []*felt.Felt) []*felt.Felt {
	out := []*felt.Felt{
		o.Caller,
		o.Nonce,
		new(felt.Felt).SetUint64(o.ExecuteAfter),
		new(felt.Felt).SetUint64(o.ExecuteBefore),
		new(felt.Felt).SetUint64(uint64(len(o.Calls))),
	}
	for _, call := range o.Calls {
		out = append(out, call.To, call.Selector, new(felt.Felt).SetUint64(uint64(len(call.Calldata))))
		out = append(out, call.Calldata...)
	}
	out = append(out, new(felt.Felt).SetUint64(uint64(len(signature))))
	out = append(out, signature...)
	return out
}

// FunctionCall assembles the outer call the executor submits to the signer's
// account contract.
func (o *OutsideExecution) FunctionCall(v Version, signerAccount *felt.Felt, signature []*felt.Felt) rpc.FunctionCall {
	return rpc.FunctionCall{
		ContractAddress:    signerAccount,
		EntryPointSelector: utils.GetSelectorFromNameFelt(v.EntryPoint()),
		Calldata:           o.Calldata(signature),
	}
}

func mustHexFelt(hex string) *felt.Felt {
	f, err := utils.HexToFelt(hex)
	if err != nil {
		panic(err)
	}
	return f
}
