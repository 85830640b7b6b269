package mock

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NethermindEth/starknet.go/utils"
)

func rpcCall(t *testing.T, url, method string, params ...any) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcErrorBody   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode %s response: %v", method, err)
	}
	if envelope.Error != nil {
		t.Fatalf("%s failed: %d %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	return envelope.Result
}

func TestHandlerRESTFlow(t *testing.T) {
	m := New()
	srv := httptest.NewServer(Handler(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/is_alive")
	if err != nil {
		t.Fatalf("is_alive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("is_alive status = %d", resp.StatusCode)
	}

	mintBody := []byte(`{"address":"0xdead","amount":12345,"unit":"WEI"}`)
	resp, err = http.Post(srv.URL+"/mint", "application/json", bytes.NewReader(mintBody))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	var mintResp struct {
		NewBalance string `json:"new_balance"`
		Unit       string `json:"unit"`
		TxHash     string `json:"tx_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mintResp); err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	resp.Body.Close()
	if mintResp.NewBalance != "12345" || mintResp.Unit != "WEI" || mintResp.TxHash == "" {
		t.Fatalf("unexpected mint response: %+v", mintResp)
	}

	resp, err = http.Get(srv.URL + "/account_balance?address=0xdead&unit=WEI")
	if err != nil {
		t.Fatalf("account_balance: %v", err)
	}
	var balResp struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&balResp); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	resp.Body.Close()
	if balResp.Amount != "12345" {
		t.Fatalf("balance = %q, want 12345", balResp.Amount)
	}

	// Unknown accounts surface as 400 like the real devnet.
	resp, err = http.Get(srv.URL + "/account_balance?address=0xfeed&unit=WEI")
	if err != nil {
		t.Fatalf("account_balance: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown account status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlerRPCFlow(t *testing.T) {
	m := New()
	srv := httptest.NewServer(Handler(m))
	defer srv.Close()

	var chainID string
	if err := json.Unmarshal(rpcCall(t, srv.URL, "starknet_chainId"), &chainID); err != nil {
		t.Fatalf("decode chainId: %v", err)
	}
	if chainID != m.ChainID().String() {
		t.Fatalf("chainId = %s, want %s", chainID, m.ChainID().String())
	}

	var nonce string
	if err := json.Unmarshal(rpcCall(t, srv.URL, "starknet_getNonce", "latest", seedAddressHex), &nonce); err != nil {
		t.Fatalf("decode nonce: %v", err)
	}
	if nonce != "0x0" {
		t.Fatalf("nonce = %s, want 0x0", nonce)
	}

	var balance []string
	callReq := map[string]any{
		"contract_address":     ETHTokenHex,
		"entry_point_selector": utils.GetSelectorFromNameFelt("balanceOf").String(),
		"calldata":             []string{seedAddressHex},
	}
	if err := json.Unmarshal(rpcCall(t, srv.URL, "starknet_call", callReq, "latest"), &balance); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if len(balance) != 2 {
		t.Fatalf("balanceOf returned %d felts, want 2", len(balance))
	}

	// Submit a transfer and poll its status.
	sender := seedAddress(t)
	calldata := transferCalldata(t, hexFelt(t, ETHTokenHex), hexFelt(t, "0x1111"), big.NewInt(777))
	hexCalldata := make([]string, len(calldata))
	for i, f := range calldata {
		hexCalldata[i] = f.String()
	}
	invoke := map[string]any{
		"type":           "INVOKE",
		"sender_address": sender.String(),
		"calldata":       hexCalldata,
		"max_fee":        "0x16345785d8a0000",
		"version":        "0x1",
		"signature":      []string{"0x1", "0x2"},
		"nonce":          "0x0",
	}
	var invokeResp struct {
		TransactionHash string `json:"transaction_hash"`
	}
	if err := json.Unmarshal(rpcCall(t, srv.URL, "starknet_addInvokeTransaction", invoke), &invokeResp); err != nil {
		t.Fatalf("decode addInvoke: %v", err)
	}
	if invokeResp.TransactionHash == "" {
		t.Fatal("missing transaction hash")
	}

	var status struct {
		Finality  string `json:"finality_status"`
		Execution string `json:"execution_status"`
	}
	if err := json.Unmarshal(rpcCall(t, srv.URL, "starknet_getTransactionStatus", invokeResp.TransactionHash), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Finality != "ACCEPTED_ON_L2" || status.Execution != "SUCCEEDED" {
		t.Fatalf("unexpected status: %+v", status)
	}

	got, err := m.Balance(hexFelt(t, "0x1111"), "WEI")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.Amount.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("recipient balance = %s, want 777", got.Amount)
	}
}

func TestHandlerUnknownMethodAndTx(t *testing.T) {
	m := New()
	srv := httptest.NewServer(Handler(m))
	defer srv.Close()

	post := func(method string, params ...any) *rpcErrorBody {
		body, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0", "id": 1, "method": method, "params": params,
		})
		resp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		var envelope struct {
			Error *rpcErrorBody `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return envelope.Error
	}

	if rpcErr := post("starknet_bogus"); rpcErr == nil || rpcErr.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", rpcErr)
	}
	if rpcErr := post("starknet_getTransactionStatus", "0x123"); rpcErr == nil || rpcErr.Code != codeTxnHashNotFound {
		t.Fatalf("expected hash-not-found, got %+v", rpcErr)
	}
}

func TestHandlerFailureInjection(t *testing.T) {
	m := New()
	srv := httptest.NewServer(Handler(m, WithFailureRate(1)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/is_alive")
	if err != nil {
		t.Fatalf("is_alive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
