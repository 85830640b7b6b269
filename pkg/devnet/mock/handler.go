package mock

import (
	"encoding/json"
	"errors"
	"math/big"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/utils"
	"go.uber.org/zap"

	"github.com/starklab/starkdev_sdk_go/pkg/devnet"
)

// HandlerOption configures the HTTP handler.
type HandlerOption func(*handlerSettings)

type handlerSettings struct {
	latency     time.Duration
	failureRate float64
	log         *zap.Logger
}

// WithLatency injects a fixed delay before every response.
func WithLatency(d time.Duration) HandlerOption {
	return func(s *handlerSettings) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithFailureRate makes the given fraction of requests fail with a 500, for
// exercising client retry paths.
func WithFailureRate(rate float64) HandlerOption {
	return func(s *handlerSettings) {
		if rate > 0 && rate <= 1 {
			s.failureRate = rate
		}
	}
}

// WithHandlerLogger attaches a request logger.
func WithHandlerLogger(log *zap.Logger) HandlerOption {
	return func(s *handlerSettings) {
		if log != nil {
			s.log = log
		}
	}
}

// Handler serves the mock over HTTP: the devnet admin endpoints plus the
// JSON-RPC subset the SDK provider needs. Both live on one mux, like the
// real devnet.
func Handler(m *Mock, opts ...HandlerOption) http.Handler {
	s := handlerSettings{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	h := &handler{mock: m, settings: s, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}

	mux := http.NewServeMux()
	mux.HandleFunc("/is_alive", h.restGet(h.isAlive))
	mux.HandleFunc("/predeployed_accounts", h.restGet(h.predeployedAccounts))
	mux.HandleFunc("/mint", h.restPost(h.mint))
	mux.HandleFunc("/account_balance", h.restGet(h.accountBalance))
	mux.HandleFunc("/create_block", h.restPost(h.createBlock))
	mux.HandleFunc("/set_time", h.restPost(h.setTime))
	mux.HandleFunc("/increase_time", h.restPost(h.increaseTime))
	mux.HandleFunc("/restart", h.restPost(h.restart))
	mux.HandleFunc("/rpc", h.rpc)
	mux.HandleFunc("/", h.rpc)
	return h.inject(mux)
}

type handler struct {
	mock     *Mock
	settings handlerSettings

	mu  sync.Mutex
	rng *rand.Rand
}

func (h *handler) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.settings.latency > 0 {
			time.Sleep(h.settings.latency)
		}
		if h.settings.failureRate > 0 {
			h.mu.Lock()
			fail := h.rng.Float64() < h.settings.failureRate
			h.mu.Unlock()
			if fail {
				h.settings.log.Debug("injected failure", zap.String("path", r.URL.Path))
				http.Error(w, `{"error":"injected failure"}`, http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) restGet(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}

func (h *handler) restPost(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}

func (h *handler) isAlive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *handler) predeployedAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.mock.PredeployedAccounts())
}

func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string      `json:"address"`
		Amount  json.Number `json:"amount"`
		Unit    string      `json:"unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed mint request"})
		return
	}
	address, err := utils.HexToFelt(req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed address"})
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount.String(), 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed amount"})
		return
	}
	unit := devnet.BalanceUnit(req.Unit)
	if unit == "" {
		unit = devnet.UnitWEI
	}
	res, err := h.mock.Mint(address, amount, unit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_balance": res.NewBalance.String(),
		"unit":        string(res.Unit),
		"tx_hash":     res.TxHash.String(),
	})
}

func (h *handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	address, err := utils.HexToFelt(r.URL.Query().Get("address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed address"})
		return
	}
	unit := devnet.BalanceUnit(r.URL.Query().Get("unit"))
	if unit == "" {
		unit = devnet.UnitWEI
	}
	bal, err := h.mock.Balance(address, unit)
	if errors.Is(err, devnet.ErrNotFound) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "account not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"amount": bal.Amount.String(),
		"unit":   string(bal.Unit),
	})
}

func (h *handler) createBlock(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.mock.CreateBlock())
}

func (h *handler) setTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time uint64 `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed set_time request"})
		return
	}
	writeJSON(w, http.StatusOK, h.mock.SetTime(req.Time))
}

func (h *handler) increaseTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time uint64 `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed increase_time request"})
		return
	}
	writeJSON(w, http.StatusOK, h.mock.IncreaseTime(req.Time))
}

func (h *handler) restart(w http.ResponseWriter, _ *http.Request) {
	h.mock.Restart()
	writeJSON(w, http.StatusOK, map[string]any{})
}

// JSON-RPC plumbing.

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

const (
	codeContractNotFound = 20
	codeTxnHashNotFound  = 29
	codeContractError    = 40
	codeInvalidParams    = -32602
	codeMethodNotFound   = -32601
)

func (h *handler) rpc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcErrorBody{Code: -32700, Message: "parse error"},
		})
		return
	}
	h.settings.log.Debug("rpc request", zap.String("method", req.Method))

	result, rpcErr := h.dispatch(&req)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) dispatch(req *rpcRequest) (any, *rpcErrorBody) {
	switch req.Method {
	case "starknet_chainId":
		return h.mock.ChainID().String(), nil
	case "starknet_specVersion":
		return "0.7.1", nil
	case "starknet_getNonce":
		return h.getNonce(req.Params)
	case "starknet_call":
		return h.call(req.Params)
	case "starknet_addInvokeTransaction":
		return h.addInvoke(req.Params)
	case "starknet_getTransactionStatus":
		return h.transactionStatus(req.Params)
	case "starknet_getClassHashAt":
		return h.classHashAt(req.Params)
	default:
		return nil, &rpcErrorBody{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

// params are [block_id, contract_address].
func (h *handler) getNonce(params []json.RawMessage) (any, *rpcErrorBody) {
	if len(params) != 2 {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "getNonce wants (block_id, contract_address)"}
	}
	address, perr := feltParam(params[1])
	if perr != nil {
		return nil, perr
	}
	nonce, err := h.mock.Nonce(address)
	if err != nil {
		return nil, &rpcErrorBody{Code: codeContractNotFound, Message: "contract not found"}
	}
	return new(felt.Felt).SetUint64(nonce).String(), nil
}

// params are [function_call, block_id].
func (h *handler) call(params []json.RawMessage) (any, *rpcErrorBody) {
	if len(params) != 2 {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "call wants (request, block_id)"}
	}
	var fc struct {
		ContractAddress    string   `json:"contract_address"`
		EntryPointSelector string   `json:"entry_point_selector"`
		Calldata           []string `json:"calldata"`
	}
	if err := json.Unmarshal(params[0], &fc); err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed function call"}
	}
	contract, err := utils.HexToFelt(fc.ContractAddress)
	if err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed contract address"}
	}
	selector, err := utils.HexToFelt(fc.EntryPointSelector)
	if err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed selector"}
	}
	calldata, perr := feltSlice(fc.Calldata)
	if perr != nil {
		return nil, perr
	}

	result, err := h.mock.Call(contract, selector, calldata)
	if errors.Is(err, ErrUnknownContract) {
		return nil, &rpcErrorBody{Code: codeContractNotFound, Message: "contract not found"}
	}
	if err != nil {
		return nil, &rpcErrorBody{Code: codeContractError, Message: err.Error()}
	}
	return feltStrings(result), nil
}

// params are [invoke_transaction].
func (h *handler) addInvoke(params []json.RawMessage) (any, *rpcErrorBody) {
	if len(params) != 1 {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "addInvokeTransaction wants one transaction"}
	}
	var tx struct {
		SenderAddress string   `json:"sender_address"`
		Calldata      []string `json:"calldata"`
		Nonce         string   `json:"nonce"`
	}
	if err := json.Unmarshal(params[0], &tx); err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed invoke transaction"}
	}
	sender, err := utils.HexToFelt(tx.SenderAddress)
	if err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed sender address"}
	}
	nonceFelt, err := utils.HexToFelt(tx.Nonce)
	if err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed nonce"}
	}
	calldata, perr := feltSlice(tx.Calldata)
	if perr != nil {
		return nil, perr
	}

	hash, err := h.mock.AddInvoke(sender, calldata, feltU64(nonceFelt))
	if err != nil {
		return nil, &rpcErrorBody{Code: codeContractError, Message: err.Error()}
	}
	return map[string]string{"transaction_hash": hash.String()}, nil
}

// params are [transaction_hash].
func (h *handler) transactionStatus(params []json.RawMessage) (any, *rpcErrorBody) {
	if len(params) != 1 {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "getTransactionStatus wants one hash"}
	}
	hash, perr := feltParam(params[0])
	if perr != nil {
		return nil, perr
	}
	status, ok := h.mock.TransactionStatus(hash)
	if !ok {
		return nil, &rpcErrorBody{Code: codeTxnHashNotFound, Message: "transaction hash not found"}
	}
	return map[string]string{
		"finality_status":  status.Finality,
		"execution_status": status.Execution,
	}, nil
}

// params are [block_id, contract_address].
func (h *handler) classHashAt(params []json.RawMessage) (any, *rpcErrorBody) {
	if len(params) != 2 {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "getClassHashAt wants (block_id, contract_address)"}
	}
	address, perr := feltParam(params[1])
	if perr != nil {
		return nil, perr
	}
	classHash, err := h.mock.ClassHashAt(address)
	if err != nil {
		return nil, &rpcErrorBody{Code: codeContractNotFound, Message: "contract not found"}
	}
	return classHash.String(), nil
}

func feltParam(raw json.RawMessage) (*felt.Felt, *rpcErrorBody) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "expected felt hex string"}
	}
	f, err := utils.HexToFelt(hex)
	if err != nil {
		return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed felt"}
	}
	return f, nil
}

func feltSlice(hexes []string) ([]*felt.Felt, *rpcErrorBody) {
	out := make([]*felt.Felt, len(hexes))
	for i, hex := range hexes {
		f, err := utils.HexToFelt(hex)
		if err != nil {
			return nil, &rpcErrorBody{Code: codeInvalidParams, Message: "malformed calldata felt"}
		}
		out[i] = f
	}
	return out, nil
}

func feltStrings(felts []*felt.Felt) []string {
	out := make([]string, len(felts))
	for i, f := range felts {
		out[i] = f.String()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
