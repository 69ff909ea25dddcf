package oniontoken

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/zeebo/errs"
)

const (
	// Decimals is the number of fractional digits of an ONION.
	Decimals = 18
)

func AddressFromString(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errs.New("%q is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}

// PrettyONION renders a base unit amount in the most readable denomination.
func PrettyONION(amount *big.Int) string {
	switch {
	case amount.Cmp(big.NewInt(1_000_000_000_000_000)) > 0:
		return fmt.Sprintf("%s ONION", decimal.NewFromBigInt(amount, -Decimals))
	case amount.Cmp(big.NewInt(10_000_000)) > 0:
		return fmt.Sprintf("%s GWei", decimal.NewFromBigInt(amount, -9))
	default:
		return fmt.Sprintf("%s Wei", amount)
	}
}
