package sweepcore

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	etherDecimals = 18
	gweiDecimals  = 9
)

// ParseETH converts "0.001" into wei. Fractions below 1 wei are rejected.
func ParseETH(s string) (*big.Int, error) { return parseUnits(s, etherDecimals, "ETH") }

// ParseGwei converts "0.0025" into wei.
func ParseGwei(s string) (*big.Int, error) { return parseUnits(s, gweiDecimals, "gwei") }

func parseUnits(s string, decimals int32, name string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s amount %q", name, s)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("negative %s amount %q", name, s)
	}
	wei := d.Shift(decimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errors.Errorf("%s amount %q is finer than 1 wei", name, s)
	}
	return wei.BigInt(), nil
}

// Human-readable helpers (ETH/gwei).
func fmtETH(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -etherDecimals).StringFixed(6)
}

func fmtGwei(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -gweiDecimals).String()
}

// FormatETH is exported for presenters and sinks.
func FormatETH(x *big.Int) string { return fmtETH(x) }

func FormatGwei(x *big.Int) string { return fmtGwei(x) }

// SendAmount is max(balance-reserve, 0) and never aliases its inputs.
func SendAmount(balance, reserve *big.Int) *big.Int {
	if balance == nil || balance.Sign() <= 0 {
		return new(big.Int)
	}
	if reserve == nil {
		return new(big.Int).Set(balance)
	}
	out := new(big.Int).Sub(balance, reserve)
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}

func cloneBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
