package sweepcore

import (
	"math/big"

	"github.com/pkg/errors"
)

// FeeMode selects how the per-wallet reserve is derived.
type FeeMode string

const (
	// FeeModeGas reserves GasLimit × MaxFeePerGas, the most a transfer can burn.
	FeeModeGas FeeMode = "gas"
	// FeeModeFlat reserves a fixed native amount.
	FeeModeFlat FeeMode = "flat"
)

// TxType selects the envelope the engine signs.
type TxType string

const (
	TxDynamic TxType = "dynamic"
	TxLegacy  TxType = "legacy"
)

// DefaultGasLimit is the intrinsic cost of a plain value transfer.
const DefaultGasLimit = 21000

// Fees are fixed for the whole run.
type Fees struct {
	Mode     FeeMode
	TxType   TxType
	GasLimit uint64
	// MaxFeePerGas is the fee cap; legacy transactions use it as gasPrice.
	MaxFeePerGas *big.Int
	// MaxPriorityFeePerGas is the tip, ignored for legacy transactions.
	MaxPriorityFeePerGas *big.Int
	FlatReserve          *big.Int
}

// GasCost is the worst-case fee of one transfer.
func (f Fees) GasCost() *big.Int {
	if f.MaxFeePerGas == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(f.GasLimit), f.MaxFeePerGas)
}

// Reserve is the amount left behind on every source wallet.
func (f Fees) Reserve() *big.Int {
	if f.Mode == FeeModeFlat {
		return cloneBig(f.FlatReserve)
	}
	return f.GasCost()
}

func (f Fees) Validate() error {
	switch f.Mode {
	case FeeModeGas, FeeModeFlat:
	default:
		return errors.Errorf("unknown fee mode %q", f.Mode)
	}
	switch f.TxType {
	case TxDynamic, TxLegacy:
	default:
		return errors.Errorf("unknown tx type %q", f.TxType)
	}
	if f.GasLimit == 0 {
		return errors.New("gas limit must be positive")
	}
	if f.MaxFeePerGas == nil || f.MaxFeePerGas.Sign() <= 0 {
		return errors.New("max fee per gas must be positive")
	}
	if f.TxType == TxDynamic {
		if f.MaxPriorityFeePerGas == nil || f.MaxPriorityFeePerGas.Sign() < 0 {
			return errors.New("priority fee must not be negative")
		}
		if f.MaxPriorityFeePerGas.Cmp(f.MaxFeePerGas) > 0 {
			return errors.Errorf("priority fee %s gwei exceeds fee cap %s gwei",
				fmtGwei(f.MaxPriorityFeePerGas), fmtGwei(f.MaxFeePerGas))
		}
	}
	if f.Mode == FeeModeFlat {
		if f.FlatReserve == nil {
			return errors.New("flat reserve is not set")
		}
		// A reserve below the fee would leave the transfer unable to pay for itself.
		if f.FlatReserve.Cmp(f.GasCost()) < 0 {
			return errors.Errorf("flat reserve %s ETH is below the gas cost %s ETH",
				fmtETH(f.FlatReserve), fmtETH(f.GasCost()))
		}
	}
	return nil
}
