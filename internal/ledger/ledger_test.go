package ledger_test

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-sweep/internal/ledger"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func sentAttempt(i int) core.TransferAttempt {
	return core.TransferAttempt{
		Index:   i,
		Address: common.BigToAddress(big.NewInt(int64(i + 1))),
		Balance: big.NewInt(10_000_000_000_000_000),
		Amount:  big.NewInt(9_000_000_000_000_000),
		TxHash:  common.BigToHash(big.NewInt(int64(1000 + i))),
		Status:  core.StatusSent,
	}
}

func TestLedgerRoutesByStatus(t *testing.T) {
	dir := t.TempDir()
	txPath, errPath := filepath.Join(dir, "transactions.csv"), filepath.Join(dir, "errors.log")
	l, err := ledger.Open(txPath, errPath)
	require.NoError(t, err)

	sent := sentAttempt(0)
	require.NoError(t, l.Record(sent))
	require.NoError(t, l.Record(core.TransferAttempt{Address: common.BigToAddress(big.NewInt(7)), Status: core.StatusFailed, Err: "submit: nonce too low, retry later"}))
	require.NoError(t, l.Record(core.TransferAttempt{Address: common.BigToAddress(big.NewInt(8)), Status: core.StatusSkippedZeroBalance}))
	require.NoError(t, l.Close())

	tx := readLines(t, txPath)
	require.Len(t, tx, 2)
	assert.Equal(t, "address,balance_before,amount_sent,tx_identifier", tx[0])
	assert.Equal(t, sent.Address.Hex()+",10000000000000000,9000000000000000,"+sent.TxHash.Hex(), tx[1])

	bad := readLines(t, errPath)
	require.Len(t, bad, 2)
	assert.Equal(t, "address,error_message", bad[0])
	assert.Equal(t, common.BigToAddress(big.NewInt(7)).Hex()+`,"submit: nonce too low, retry later"`, bad[1])
}

func TestTxLogTruncatesErrorLogAppends(t *testing.T) {
	dir := t.TempDir()
	txPath, errPath := filepath.Join(dir, "tx.csv"), filepath.Join(dir, "err.csv")
	failed := core.TransferAttempt{Address: common.BigToAddress(big.NewInt(3)), Status: core.StatusFailed, Err: "boom"}

	for run := 0; run < 2; run++ {
		l, err := ledger.Open(txPath, errPath)
		require.NoError(t, err)
		require.NoError(t, l.Record(sentAttempt(run)))
		require.NoError(t, l.Record(failed))
		require.NoError(t, l.Close())
	}

	tx := readLines(t, txPath)
	assert.Len(t, tx, 2, "header plus the second run's row")
	assert.Contains(t, tx[1], sentAttempt(1).Address.Hex())

	bad := readLines(t, errPath)
	assert.Len(t, bad, 3, "one header, one row per run")
	assert.Equal(t, 1, strings.Count(strings.Join(bad, "\n"), "error_message"))
}

func TestTxLogConcurrentRowsStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.csv")
	l, err := ledger.OpenTxLog(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(sentAttempt(i)))
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 51)
	for _, ln := range lines[1:] {
		assert.Len(t, strings.Split(ln, ","), 4)
	}
	assert.Error(t, l.Append(sentAttempt(99)))
}
