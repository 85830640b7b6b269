// Package mock provides an in-memory stand-in for a local Starknet devnet.
// It implements the devnet admin surface (accounts, minting, block and time
// control) and just enough of the JSON-RPC node for the client packages to
// run hermetically: chain id, nonces, ERC-20 reads and transfers, SNIP-5
// interface probes and SNIP-9 outside execution.
package mock

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/utils"

	"github.com/starklab/starkdev_sdk_go/pkg/devnet"
	"github.com/starklab/starkdev_sdk_go/pkg/snip12"
	"github.com/starklab/starkdev_sdk_go/pkg/snip9"
	"github.com/starklab/starkdev_sdk_go/pkg/wallet"
)

// Token addresses mirror the well-known devnet fee token contracts.
const (
	ETHTokenHex  = "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"
	STRKTokenHex = "0x4718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
)

// Seed-0 predeployed account of starknet-devnet.
const (
	seedAddressHex = "0x64b48806902a367c8598f4f95c305e8c1a1acba5f082d294a43793113115691"
	seedPublicHex  = "0x39d9e6ce352ad4530a0ef5d5a18fd3303c3606a7fa6ac5b620020ad681cc33b"
	seedPrivateHex = "0x71d7bb07b9a64f6f78ac4c816aff4da9"
)

const (
	defaultChainID   = "SN_SEPOLIA"
	defaultClassHash = "0x61dac032f228abef9c6626f995015233097ae253a7f72d68552db02f2971b8f"
)

var genesisBalance, _ = new(big.Int).SetString("1000000000000000000000", 10) // 1000 ETH

// ErrUnknownContract is returned for calls against addresses the mock does
// not model.
var ErrUnknownContract = errors.New("mock: unknown contract")

// ErrInvalidTransaction is returned when submitted calldata cannot be parsed
// or fails validation.
var ErrInvalidTransaction = errors.New("mock: invalid transaction")

// OutsideSupport states which outside-execution interface an account claims.
type OutsideSupport int

const (
	OutsideUnsupported OutsideSupport = iota
	OutsideV1
	OutsideV2
)

// TxStatus is the recorded outcome of a submitted transaction.
type TxStatus struct {
	Finality  string
	Execution string
}

type accountState struct {
	address  *felt.Felt
	public   *felt.Felt
	private  *felt.Felt
	balances map[devnet.BalanceUnit]*big.Int
	nonce    uint64
}

// Option configures a Mock.
type Option func(*Mock)

// WithChainID overrides the chain id short string (default SN_SEPOLIA).
func WithChainID(chainID string) Option {
	return func(m *Mock) { m.chainIDStr = chainID }
}

// WithClock overrides the wall clock used to seed block time.
func WithClock(now func() time.Time) Option {
	return func(m *Mock) {
		if now != nil {
			m.now = now
		}
	}
}

// Mock holds the devnet state behind a single lock. All exported methods are
// safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	chainIDStr string
	now        func() time.Time

	order          []*felt.Felt
	accounts       map[string]*accountState
	outsideSupport map[string]OutsideSupport
	usedNonces     map[string]map[string]bool
	txs            map[string]TxStatus

	blockNumber uint64
	blockTime   uint64
	txCounter   uint64
}

// New builds a mock devnet with the seed-0 account predeployed and funded.
func New(opts ...Option) *Mock {
	m := &Mock{
		chainIDStr: defaultChainID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reset()
	return m
}

func (m *Mock) reset() {
	m.order = nil
	m.accounts = make(map[string]*accountState)
	m.outsideSupport = make(map[string]OutsideSupport)
	m.usedNonces = make(map[string]map[string]bool)
	m.txs = make(map[string]TxStatus)
	m.blockNumber = 0
	m.blockTime = uint64(m.now().Unix())
	m.txCounter = 0

	seed := &accountState{
		address: mustFelt(seedAddressHex),
		public:  mustFelt(seedPublicHex),
		private: mustFelt(seedPrivateHex),
		balances: map[devnet.BalanceUnit]*big.Int{
			devnet.UnitWEI: new(big.Int).Set(genesisBalance),
			devnet.UnitFRI: new(big.Int).Set(genesisBalance),
		},
	}
	m.addAccountLocked(seed)
	m.outsideSupport[key(seed.address)] = OutsideV2
}

func (m *Mock) addAccountLocked(a *accountState) {
	m.order = append(m.order, a.address)
	m.accounts[key(a.address)] = a
}

// AddAccount predeploys another funded account. Useful as a transfer target
// in tests.
func (m *Mock) AddAccount(address, public, private *felt.Felt, balance *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if balance == nil {
		balance = new(big.Int)
	}
	m.addAccountLocked(&accountState{
		address: address,
		public:  public,
		private: private,
		balances: map[devnet.BalanceUnit]*big.Int{
			devnet.UnitWEI: new(big.Int).Set(balance),
			devnet.UnitFRI: new(big.Int).Set(balance),
		},
	})
}

// SetOutsideExecutionSupport configures which SNIP-9 revision the account at
// address advertises via supports_interface.
func (m *Mock) SetOutsideExecutionSupport(address *felt.Felt, support OutsideSupport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outsideSupport[key(address)] = support
}

// ChainID returns the chain id encoded as a short string felt.
func (m *Mock) ChainID() *felt.Felt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snip12.MustShortString(m.chainIDStr)
}

// ChainName returns the chain id as its plain short string ("SN_SEPOLIA").
func (m *Mock) ChainName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainIDStr
}

// IsAlive reports liveness. The mock is always alive.
func (m *Mock) IsAlive() bool { return true }

// PredeployedAccounts lists the funded genesis accounts in creation order.
func (m *Mock) PredeployedAccounts() []devnet.PredeployedAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]devnet.PredeployedAccount, 0, len(m.order))
	for _, addr := range m.order {
		a := m.accounts[key(addr)]
		out = append(out, devnet.PredeployedAccount{
			Address:        a.address,
			PublicKey:      a.public,
			PrivateKey:     a.private,
			InitialBalance: genesisBalance.String(),
		})
	}
	return out
}

// Mint credits amount of unit to address, creating the balance entry on
// first use, and returns the new balance with a synthetic mint tx hash.
func (m *Mock) Mint(address *felt.Felt, amount *big.Int, unit devnet.BalanceUnit) (*devnet.MintResult, error) {
	if address == nil || amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidTransaction
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[key(address)]
	if !ok {
		a = &accountState{
			address:  address,
			balances: map[devnet.BalanceUnit]*big.Int{},
		}
		m.addAccountLocked(a)
	}
	bal, ok := a.balances[unit]
	if !ok {
		bal = new(big.Int)
		a.balances[unit] = bal
	}
	bal.Add(bal, amount)

	m.txCounter++
	hash := hashFelt("mint", m.txCounter)
	m.txs[key(hash)] = TxStatus{Finality: "ACCEPTED_ON_L2", Execution: "SUCCEEDED"}
	return &devnet.MintResult{
		NewBalance: new(big.Int).Set(bal),
		Unit:       unit,
		TxHash:     hash,
	}, nil
}

// Balance returns the balance of address in unit.
func (m *Mock) Balance(address *felt.Felt, unit devnet.BalanceUnit) (*devnet.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[key(address)]
	if !ok {
		return nil, devnet.ErrNotFound
	}
	bal, ok := a.balances[unit]
	if !ok {
		bal = new(big.Int)
	}
	return &devnet.Balance{Amount: new(big.Int).Set(bal), Unit: unit}, nil
}

// Nonce returns the account nonce at address.
func (m *Mock) Nonce(address *felt.Felt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[key(address)]
	if !ok {
		return 0, devnet.ErrNotFound
	}
	return a.nonce, nil
}

// CreateBlock advances the block height and returns the new block metadata.
func (m *Mock) CreateBlock() devnet.BlockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sealBlockLocked()
}

// SetTime pins the block timestamp and seals a block.
func (m *Mock) SetTime(unix uint64) devnet.BlockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockTime = unix
	return m.sealBlockLocked()
}

// IncreaseTime shifts the block timestamp forward and seals a block.
func (m *Mock) IncreaseTime(seconds uint64) devnet.BlockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockTime += seconds
	return m.sealBlockLocked()
}

func (m *Mock) sealBlockLocked() devnet.BlockInfo {
	m.blockNumber++
	return devnet.BlockInfo{
		BlockHash:      hashFelt("block", m.blockNumber),
		BlockTimestamp: m.blockTime,
	}
}

// BlockTime returns the current block timestamp.
func (m *Mock) BlockTime() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockTime
}

// Restart drops all state and re-seeds the genesis accounts.
func (m *Mock) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// ClassHashAt returns a stable class hash for deployed accounts.
func (m *Mock) ClassHashAt(address *felt.Felt) (*felt.Felt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[key(address)]; !ok {
		return nil, devnet.ErrNotFound
	}
	return mustFelt(defaultClassHash), nil
}

// TransactionStatus looks up a previously submitted transaction.
func (m *Mock) TransactionStatus(hash *felt.Felt) (TxStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.txs[key(hash)]
	return st, ok
}

// Call evaluates a read-only entrypoint. The mock understands balanceOf on
// the fee token contracts and supports_interface on account contracts.
func (m *Mock) Call(contract, selector *felt.Felt, calldata []*felt.Felt) ([]*felt.Felt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callLocked(contract, selector, calldata)
}

func (m *Mock) callLocked(contract, selector *felt.Felt, calldata []*felt.Felt) ([]*felt.Felt, error) {
	switch key(contract) {
	case key(mustFelt(ETHTokenHex)):
		return m.tokenCallLocked(devnet.UnitWEI, selector, calldata)
	case key(mustFelt(STRKTokenHex)):
		return m.tokenCallLocked(devnet.UnitFRI, selector, calldata)
	}

	a, ok := m.accounts[key(contract)]
	if !ok {
		return nil, ErrUnknownContract
	}
	if selector.Equal(utils.GetSelectorFromNameFelt("supports_interface")) {
		if len(calldata) != 1 {
			return nil, ErrInvalidTransaction
		}
		return []*felt.Felt{boolFelt(m.supportsLocked(a.address, calldata[0]))}, nil
	}
	if selector.Equal(utils.GetSelectorFromNameFelt("get_public_key")) ||
		selector.Equal(utils.GetSelectorFromNameFelt("getPublicKey")) {
		return []*felt.Felt{a.public}, nil
	}
	return nil, ErrUnknownContract
}

func (m *Mock) tokenCallLocked(unit devnet.BalanceUnit, selector *felt.Felt, calldata []*felt.Felt) ([]*felt.Felt, error) {
	if !selector.Equal(utils.GetSelectorFromNameFelt("balanceOf")) &&
		!selector.Equal(utils.GetSelectorFromNameFelt("balance_of")) {
		return nil, ErrUnknownContract
	}
	if len(calldata) != 1 {
		return nil, ErrInvalidTransaction
	}
	bal := new(big.Int)
	if a, ok := m.accounts[key(calldata[0])]; ok {
		if b, ok := a.balances[unit]; ok {
			bal.Set(b)
		}
	}
	low, high, err := wallet.SplitUint256(bal)
	if err != nil {
		return nil, err
	}
	return []*felt.Felt{low, high}, nil
}

func (m *Mock) supportsLocked(address, interfaceID *felt.Felt) bool {
	switch m.outsideSupport[key(address)] {
	case OutsideV2:
		return interfaceID.Equal(snip9.V2.InterfaceID())
	case OutsideV1:
		return interfaceID.Equal(snip9.V1.InterfaceID())
	default:
		return false
	}
}

// AddInvoke applies a signed v1 invoke. The execute calldata is parsed in
// the Cairo 2 multicall layout; transfers and outside executions mutate the
// ledger and everything else reverts. Signatures are not verified, matching
// the permissive devnet default.
func (m *Mock) AddInvoke(sender *felt.Felt, calldata []*felt.Felt, declaredNonce uint64) (*felt.Felt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[key(sender)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sender %s", ErrInvalidTransaction, sender.String())
	}
	if declaredNonce != a.nonce {
		return nil, fmt.Errorf("%w: nonce %d, expected %d", ErrInvalidTransaction, declaredNonce, a.nonce)
	}
	calls, err := parseExecuteCalldata(calldata)
	if err != nil {
		return nil, err
	}

	m.txCounter++
	hash := hashFelt("tx", m.txCounter)
	a.nonce++
	m.blockNumber++

	execErr := m.applyCallsLocked(sender, calls)
	status := TxStatus{Finality: "ACCEPTED_ON_L2", Execution: "SUCCEEDED"}
	if execErr != nil {
		status.Execution = "REVERTED"
	}
	m.txs[key(hash)] = status
	return hash, nil
}

type innerCall struct {
	to       *felt.Felt
	selector *felt.Felt
	calldata []*felt.Felt
}

// parseExecuteCalldata decodes [n, (to, selector, len, data...)*].
func parseExecuteCalldata(calldata []*felt.Felt) ([]innerCall, error) {
	if len(calldata) == 0 {
		return nil, fmt.Errorf("%w: empty calldata", ErrInvalidTransaction)
	}
	n := feltU64(calldata[0])
	rest := calldata[1:]
	calls := make([]innerCall, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(rest) < 3 {
			return nil, fmt.Errorf("%w: truncated call header", ErrInvalidTransaction)
		}
		dataLen := feltU64(rest[2])
		if uint64(len(rest)) < 3+dataLen {
			return nil, fmt.Errorf("%w: truncated call data", ErrInvalidTransaction)
		}
		calls = append(calls, innerCall{
			to:       rest[0],
			selector: rest[1],
			calldata: rest[3 : 3+dataLen],
		})
		rest = rest[3+dataLen:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing calldata", ErrInvalidTransaction)
	}
	return calls, nil
}

func (m *Mock) applyCallsLocked(sender *felt.Felt, calls []innerCall) error {
	for _, call := range calls {
		if err := m.applyCallLocked(sender, call); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mock) applyCallLocked(sender *felt.Felt, call innerCall) error {
	switch key(call.to) {
	case key(mustFelt(ETHTokenHex)):
		return m.transferLocked(devnet.UnitWEI, sender, call)
	case key(mustFelt(STRKTokenHex)):
		return m.transferLocked(devnet.UnitFRI, sender, call)
	}
	if call.selector.Equal(utils.GetSelectorFromNameFelt(snip9.V1.EntryPoint())) {
		return m.outsideExecutionLocked(sender, call, OutsideV1)
	}
	if call.selector.Equal(utils.GetSelectorFromNameFelt(snip9.V2.EntryPoint())) {
		return m.outsideExecutionLocked(sender, call, OutsideV2)
	}
	return ErrUnknownContract
}

func (m *Mock) transferLocked(unit devnet.BalanceUnit, sender *felt.Felt, call innerCall) error {
	if !call.selector.Equal(utils.GetSelectorFromNameFelt("transfer")) {
		return ErrUnknownContract
	}
	if len(call.calldata) != 3 {
		return fmt.Errorf("%w: transfer wants (recipient, low, high)", ErrInvalidTransaction)
	}
	amount := wallet.CombineUint256(call.calldata[1], call.calldata[2])

	from, ok := m.accounts[key(sender)]
	if !ok {
		return devnet.ErrNotFound
	}
	fromBal, ok := from.balances[unit]
	if !ok || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient balance", ErrInvalidTransaction)
	}

	to, ok := m.accounts[key(call.calldata[0])]
	if !ok {
		to = &accountState{
			address:  call.calldata[0],
			balances: map[devnet.BalanceUnit]*big.Int{},
		}
		m.addAccountLocked(to)
	}
	toBal, ok := to.balances[unit]
	if !ok {
		toBal = new(big.Int)
		to.balances[unit] = toBal
	}

	fromBal.Sub(fromBal, amount)
	toBal.Add(toBal, amount)
	return nil
}

// outsideExecutionLocked applies execute_from_outside(_v2): the call target
// is the signing account, the transaction sender is the caller executing on
// its behalf.
func (m *Mock) outsideExecutionLocked(caller *felt.Felt, call innerCall, version OutsideSupport) error {
	signer := call.to
	if m.outsideSupport[key(signer)] != version {
		return fmt.Errorf("%w: outside execution not supported by %s", ErrInvalidTransaction, signer.String())
	}
	if len(call.calldata) < 5 {
		return fmt.Errorf("%w: truncated outside execution", ErrInvalidTransaction)
	}

	wantCaller := call.calldata[0]
	nonce := call.calldata[1]
	after := feltU64(call.calldata[2])
	before := feltU64(call.calldata[3])

	if !wantCaller.Equal(snip9.AnyCaller()) && !wantCaller.Equal(caller) {
		return fmt.Errorf("%w: caller not authorized", ErrInvalidTransaction)
	}
	if m.blockTime <= after || m.blockTime >= before {
		return fmt.Errorf("%w: outside execution window closed", ErrInvalidTransaction)
	}
	used := m.usedNonces[key(signer)]
	if used == nil {
		used = make(map[string]bool)
		m.usedNonces[key(signer)] = used
	}
	if used[key(nonce)] {
		return fmt.Errorf("%w: outside nonce already used", ErrInvalidTransaction)
	}

	// The signature trails the calls; strip it before parsing.
	body := call.calldata[4:]
	nCalls := feltU64(call.calldata[4])
	end := uint64(1)
	for i := uint64(0); i < nCalls; i++ {
		if uint64(len(body)) < end+3 {
			return fmt.Errorf("%w: truncated outside call", ErrInvalidTransaction)
		}
		end += 3 + feltU64(body[end+2])
	}
	if uint64(len(body)) < end {
		return fmt.Errorf("%w: truncated outside calls", ErrInvalidTransaction)
	}
	inner, err := parseExecuteCalldata(body[:end])
	if err != nil {
		return err
	}

	used[key(nonce)] = true
	return m.applyCallsLocked(signer, inner)
}

func feltU64(f *felt.Felt) uint64 {
	return utils.FeltToBigInt(f).Uint64()
}

func key(f *felt.Felt) string {
	if f == nil {
		return ""
	}
	return f.String()
}

func boolFelt(b bool) *felt.Felt {
	if b {
		return new(felt.Felt).SetUint64(1)
	}
	return new(felt.Felt)
}

func mustFelt(hex string) *felt.Felt {
	f, err := new(felt.Felt).SetString(hex)
	if err != nil {
		panic(fmt.Sprintf("mock: bad felt constant %q: %v", hex, err))
	}
	return f
}

// hashFelt derives a stable fake hash that fits in a felt.
func hashFelt(kind string, n uint64) *felt.Felt {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	sum := sha256.Sum256(append([]byte(kind), buf[:]...))
	return new(felt.Felt).SetBytes(sum[1:])
}
