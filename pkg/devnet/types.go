package devnet

import (
	"errors"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
)

// BalanceUnit selects which fee token a balance query refers to.
type BalanceUnit string

const (
	// UnitWEI queries the ETH fee token balance.
	UnitWEI BalanceUnit = "WEI"
	// UnitFRI queries the STRK fee token balance.
	UnitFRI BalanceUnit = "FRI"
)

// PredeployedAccount is an account funded at devnet genesis.
type PredeployedAccount struct {
	Address        *felt.Felt `json:"address"`
	PublicKey      *felt.Felt `json:"public_key"`
	PrivateKey     *felt.Felt `json:"private_key"`
	InitialBalance string     `json:"initial_balance"`
}

// Balance is the result of an account balance query.
type Balance struct {
	Amount *big.Int
	Unit   BalanceUnit
}

// MintResult reports the balance after a successful mint.
type MintResult struct {
	NewBalance *big.Int
	Unit       BalanceUnit
	TxHash     *felt.Felt
}

// BlockInfo is returned by block/time manipulation endpoints.
type BlockInfo struct {
	BlockHash      *felt.Felt `json:"block_hash"`
	BlockTimestamp uint64     `json:"block_timestamp"`
}

var (
	// ErrNotFound is returned when the devnet does not know the account.
	ErrNotFound = errors.New("devnet: not found")
	// ErrUnavailable is returned when the management API cannot be reached.
	ErrUnavailable = errors.New("devnet: management API unavailable")
)
