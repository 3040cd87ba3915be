package present_test

import (
	"bytes"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/ligun0805/wallet-sweep/internal/present"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

func runEvents() <-chan core.Event {
	summary := &core.RunSummary{
		RunID:      "run-1",
		Total:      3,
		Counts:     map[core.Status]int{core.StatusSent: 1, core.StatusSkippedZeroBalance: 1, core.StatusFailed: 1},
		AmountSent: big.NewInt(9_000_000_000_000_000),
		Elapsed:    1500 * time.Millisecond,
	}
	a := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	ch := make(chan core.Event, 16)
	now := time.Now()
	ch <- core.Event{Time: now, RunID: "run-1", Total: 3, Index: -1, Phase: core.PhaseRunStarted}
	ch <- core.Event{Time: now, Total: 3, Index: 0, Address: a, Phase: core.PhaseStart}
	ch <- core.Event{Time: now, Total: 3, Index: 0, Address: a, Phase: core.PhaseDone, Status: core.StatusSent,
		Amount: big.NewInt(9_000_000_000_000_000), TxHash: common.HexToHash("0xabcdef")}
	ch <- core.Event{Time: now, Total: 3, Index: 1, Address: a, Phase: core.PhaseDone, Status: core.StatusSkippedZeroBalance}
	ch <- core.Event{Time: now, Total: 3, Index: 2, Address: a, Phase: core.PhaseDone, Status: core.StatusFailed, Err: "balance query: 503"}
	ch <- core.Event{Time: now, Total: 3, Index: -1, Phase: core.PhaseRunFinished, Summary: summary}
	close(ch)
	return ch
}

func TestPlain(t *testing.T) {
	var buf bytes.Buffer
	present.Pick("plain", &buf).Consume(runEvents())
	out := buf.String()

	assert.Contains(t, out, "Sweeping 3 wallets (run run-1)")
	assert.Contains(t, out, "[1/3] 0x5290…9EE7 sent 0.009000 ETH")
	assert.Contains(t, out, "[2/3] 0x5290…9EE7 zero balance, skipped")
	assert.Contains(t, out, "[3/3] 0x5290…9EE7 failed: balance query: 503")
	assert.Contains(t, out, "Amount sent (ETH) : 0.009000")
	assert.Contains(t, out, "Failed            : 1")
}

func TestAutoFallsBackToPlainOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	_, ok := present.Pick("auto", &buf).(*present.Plain)
	assert.True(t, ok)
}

func TestColorWithoutEscapes(t *testing.T) {
	var buf bytes.Buffer
	present.NewColor(&buf, true).Consume(runEvents())
	out := buf.String()
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "sent 0.009000 ETH tx 0x00000000…abcdef")
}

func TestDashboardPrintsFailuresAndSummary(t *testing.T) {
	var buf bytes.Buffer
	(&present.Dashboard{Out: &buf, Width: 120}).Consume(runEvents())
	out := buf.String()
	assert.Contains(t, out, "failed: balance query: 503")
	assert.Contains(t, out, "sent 1 | zero 1 | low 0 | failed 1")
	assert.Equal(t, 1, strings.Count(out, "=== SWEEP SUMMARY ==="))
}
