package wallet

import (
	"errors"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/utils"
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// SplitUint256 encodes amount as the (low, high) 128-bit limbs Cairo's u256
// expects in calldata.
func SplitUint256(amount *big.Int) (low, high *felt.Felt, err error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, errors.New("wallet: amount must be non-negative")
	}
	if amount.Cmp(maxUint256) > 0 {
		return nil, nil, errors.New("wallet: amount exceeds u256")
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	lowInt := new(big.Int).And(amount, mask)
	highInt := new(big.Int).Rsh(amount, 128)
	return utils.BigIntToFelt(lowInt), utils.BigIntToFelt(highInt), nil
}

// CombineUint256 decodes the (low, high) limbs of a u256 return value.
func CombineUint256(low, high *felt.Felt) *big.Int {
	result := utils.FeltToBigInt(high)
	result.Lsh(result, 128)
	return result.Add(result, utils.FeltToBigInt(low))
}
