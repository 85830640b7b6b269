package snip9

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// The JSON rendering mirrors the typed-data documents other Starknet SDKs
// consume, so fixtures can be replayed against starknet.js when debugging
// signature mismatches.

type typeParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type typedDataDoc struct {
	Types       map[string][]typeParam `json:"types"`
	PrimaryType string                 `json:"primaryType"`
	Domain      domainDoc              `json:"domain"`
	Message     any                    `json:"message"`
}

type domainDoc struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	ChainID  string `json:"chainId"`
	Revision string `json:"revision,omitempty"`
}

type callDocV2 struct {
	To       string   `json:"To"`
	Selector string   `json:"Selector"`
	Calldata []string `json:"Calldata"`
}

type messageDocV2 struct {
	Caller        string      `json:"Caller"`
	Nonce         string      `json:"Nonce"`
	ExecuteAfter  string      `json:"Execute After"`
	ExecuteBefore string      `json:"Execute Before"`
	Calls         []callDocV2 `json:"Calls"`
}

type callDocV1 struct {
	To          string   `json:"to"`
	Selector    string   `json:"selector"`
	CalldataLen string   `json:"calldata_len"`
	Calldata    []string `json:"calldata"`
}

type messageDocV1 struct {
	Caller        string      `json:"caller"`
	Nonce         string      `json:"nonce"`
	ExecuteAfter  string      `json:"execute_after"`
	ExecuteBefore string      `json:"execute_before"`
	CallsLen      string      `json:"calls_len"`
	Calls         []callDocV1 `json:"calls"`
}

// TypedDataJSON renders the execution as a typed-data document for the given
// version and chain id.
func (o *OutsideExecution) TypedDataJSON(v Version, chainID string) ([]byte, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	doc := typedDataDoc{
		PrimaryType: "OutsideExecution",
		Domain: domainDoc{
			Name:    domainName,
			Version: fmt.Sprintf("%d", v),
			ChainID: chainID,
		},
	}
	if v == V2 {
		doc.Types = map[string][]typeParam{
			"StarknetDomain": {
				{Name: "name", Type: "shortstring"},
				{Name: "version", Type: "shortstring"},
				{Name: "chainId", Type: "shortstring"},
				{Name: "revision", Type: "shortstring"},
			},
			"OutsideExecution": {
				{Name: "Caller", Type: "ContractAddress"},
				{Name: "Nonce", Type: "felt"},
				{Name: "Execute After", Type: "u128"},
				{Name: "Execute Before", Type: "u128"},
				{Name: "Calls", Type: "Call*"},
			},
			"Call": {
				{Name: "To", Type: "ContractAddress"},
				{Name: "Selector", Type: "selector"},
				{Name: "Calldata", Type: "felt*"},
			},
		}
		doc.Domain.Revision = "1"
		doc.Message = o.messageV2()
	} else {
		doc.Types = map[string][]typeParam{
			"StarkNetDomain": {
				{Name: "name", Type: "felt"},
				{Name: "version", Type: "felt"},
				{Name: "chainId", Type: "felt"},
			},
			"OutsideExecution": {
				{Name: "caller", Type: "felt"},
				{Name: "nonce", Type: "felt"},
				{Name: "execute_after", Type: "felt"},
				{Name: "execute_before", Type: "felt"},
				{Name: "calls_len", Type: "felt"},
				{Name: "calls", Type: "OutsideCall*"},
			},
			"OutsideCall": {
				{Name: "to", Type: "felt"},
				{Name: "selector", Type: "felt"},
				{Name: "calldata_len", Type: "felt"},
				{Name: "calldata", Type: "felt*"},
			},
		}
		doc.Message = o.messageV1()
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (o *OutsideExecution) messageV2() messageDocV2 {
	calls := make([]callDocV2, len(o.Calls))
	for i, call := range o.Calls {
		data := make([]string, len(call.Calldata))
		for j, f := range call.Calldata {
			data[j] = f.String()
		}
		calls[i] = callDocV2{
			To:       call.To.String(),
			Selector: call.Selector.String(),
			Calldata: data,
		}
	}
	return messageDocV2{
		Caller:        o.Caller.String(),
		Nonce:         o.Nonce.String(),
		ExecuteAfter:  strconv.FormatUint(o.ExecuteAfter, 10),
		ExecuteBefore: strconv.FormatUint(o.ExecuteBefore, 10),
		Calls:         calls,
	}
}

func (o *OutsideExecution) messageV1() messageDocV1 {
	calls := make([]callDocV1, len(o.Calls))
	for i, call := range o.Calls {
		data := make([]string, len(call.Calldata))
		for j, f := range call.Calldata {
			data[j] = f.String()
		}
		calls[i] = callDocV1{
			To:          call.To.String(),
			Selector:    call.Selector.String(),
			CalldataLen: strconv.Itoa(len(data)),
			Calldata:    data,
		}
	}
	return messageDocV1{
		Caller:        o.Caller.String(),
		Nonce:         o.Nonce.String(),
		ExecuteAfter:  strconv.FormatUint(o.ExecuteAfter, 10),
		ExecuteBefore: strconv.FormatUint(o.ExecuteBefore, 10),
		CallsLen:      strconv.Itoa(len(calls)),
		Calls:         calls,
	}
}
