// Package units converts between ONION amounts written by humans and the
// base units stored by the ledger.
package units

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zeebo/errs"

	oniontoken "storj.io/onion-token/pkg"
)

var (
	suffixRE = regexp.MustCompile(`([a-zA-Z]+)$`)
)

// ParseAmount returns an amount from string. Units accepted are:
// - ONION
// - GWEI
// - WEI
//
// If no unit is specified, WEI is assumed.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, errs.New("invalid amount: empty")
	}

	var rawSuffix string
	if m := suffixRE.FindStringSubmatch(s); m != nil {
		rawSuffix = m[1]
	}

	s = s[:len(s)-len(rawSuffix)]

	suffix := strings.ToUpper(rawSuffix)
	if suffix == "" {
		suffix = "WEI"
	}

	var denom Denom
	switch suffix {
	case "ONION":
		denom = ONION
	case "GWEI":
		denom = GWEI
	case "WEI":
		denom = WEI
	default:
		return Amount{}, errs.New("unsupported suffix %q", rawSuffix)
	}

	raw, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, errs.New("%s is not a valid %s amount: %v", s, suffix, err)
	}
	if raw.IsNegative() {
		return Amount{}, errs.New("%s is not a valid %s amount: must not be negative", s, suffix)
	}
	raw = raw.Shift(int32(denom))

	wei := raw.Truncate(0)
	if !wei.Equal(raw) {
		return Amount{}, errs.New("%s is not a valid %s amount: must be a whole number of WEI but got %s", s, suffix, raw)
	}
	return Amount{wei: wei, denom: denom}, nil
}

func RequireParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Amount is a non-negative token amount remembered together with the
// denomination it was written in.
type Amount struct {
	wei   decimal.Decimal
	denom Denom
}

func AmountFromInt(value int64, denom Denom) Amount {
	return AmountFromDecimal(decimal.NewFromInt(value), denom)
}

func AmountFromBigInt(value *big.Int, denom Denom) Amount {
	return AmountFromDecimal(decimal.NewFromBigInt(value, 0), denom)
}

func AmountFromDecimal(value decimal.Decimal, denom Denom) Amount {
	if denom.String() == "" {
		panic("denom is not one of WEI, GWEI, ONION")
	}
	wei := value.Shift(int32(denom))
	return Amount{wei: wei, denom: denom}
}

// ONION returns the same amount written in ONION.
func (a Amount) ONION() Amount {
	return Amount{wei: a.wei, denom: ONION}
}

func (a Amount) IsZero() bool {
	return a.wei.IsZero()
}

func (a Amount) String() string {
	return fmt.Sprintf("%s%s", a.wei.Shift(-int32(a.denom)), a.denom)
}

func (a Amount) Decimal(denom Denom) decimal.Decimal {
	return a.wei.Shift(-int32(denom))
}

func (a Amount) WEIInt() *big.Int {
	return a.wei.BigInt()
}

// UnmarshalText lets amounts appear directly in configuration files.
func (a *Amount) UnmarshalText(b []byte) error {
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Tokens returns n whole ONION in base units.
func Tokens(n int64) *big.Int {
	return AmountFromInt(n, ONION).WEIInt()
}

// Format renders a base unit amount as a decimal number of ONION.
func Format(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -oniontoken.Decimals).String()
}

// Pretty renders a base unit amount as "<wei> (<onion> ONION)".
func Pretty(wei *big.Int) string {
	return fmt.Sprintf("%s (%s ONION)", wei, Format(wei))
}

type Denom int32

const (
	WEI   Denom = 0
	GWEI  Denom = 9
	ONION Denom = oniontoken.Decimals
)

func (d Denom) String() string {
	switch d {
	case WEI:
		return "wei"
	case GWEI:
		return "gwei"
	case ONION:
		return "onion"
	}
	return ""
}
