package sweepcore

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Build EIP-1559 transaction.
func buildDynamicTx(chain *big.Int, nonce uint64, to common.Address, value *big.Int, gasLimit uint64, tip, feeCap *big.Int) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).Set(chain),
		Nonce:     nonce,
		Gas:       gasLimit,
		GasTipCap: new(big.Int).Set(tip),
		GasFeeCap: new(big.Int).Set(feeCap),
		To:        &to,
		Value:     new(big.Int).Set(value),
	})
}

// Build pre-London transaction for nodes without a fee market.
func buildLegacyTx(nonce uint64, to common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(gasPrice),
		Gas:      gasLimit,
		To:       &to,
		Value:    new(big.Int).Set(value),
	})
}

func buildTransfer(f Fees, chain *big.Int, nonce uint64, to common.Address, value *big.Int) *types.Transaction {
	if f.TxType == TxLegacy {
		return buildLegacyTx(nonce, to, value, f.GasLimit, f.MaxFeePerGas)
	}
	return buildDynamicTx(chain, nonce, to, value, f.GasLimit, f.MaxPriorityFeePerGas, f.MaxFeePerGas)
}

// Sign transaction with latest signer for given chain ID.
func signTx(tx *types.Transaction, chain *big.Int, prv *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chain)
	return types.SignTx(tx, signer, prv)
}
