package metrics_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ligun0805/wallet-sweep/internal/metrics"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

func TestObserveRun(t *testing.T) {
	m := metrics.New()
	events := make(chan core.Event, 16)
	events <- core.Event{Index: -1, Phase: core.PhaseRunStarted}
	events <- core.Event{Index: 0, Phase: core.PhaseStart}
	events <- core.Event{Index: 1, Phase: core.PhaseStart}
	events <- core.Event{Index: 1, Phase: core.PhaseReconnect}
	events <- core.Event{Index: 0, Phase: core.PhaseDone, Status: core.StatusSent, Amount: big.NewInt(9000)}
	events <- core.Event{Index: 1, Phase: core.PhaseDone, Status: core.StatusFailed, Err: "boom"}
	events <- core.Event{Index: 2, Phase: core.PhaseDone, Status: core.StatusFailed, Err: "cancelled"}
	events <- core.Event{Index: -1, Phase: core.PhaseRunFinished, Summary: &core.RunSummary{Elapsed: 3 * time.Second}}
	close(events)
	m.Consume(events)

	count, err := testutil.GatherAndCount(m.Registry, "sweep_attempts_total")
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
	count, err = testutil.GatherAndCount(m.Registry, "sweep_run_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err := m.Registry.Gather()
	assert.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range n {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil && len(metric.GetLabel()) == 1:
				values[mf.GetName()+"/"+metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["sweep_attempts_total/sent"])
	assert.Equal(t, 2.0, values["sweep_attempts_total/failed"])
	assert.Equal(t, 0.0, values["sweep_attempts_total/skipped_zero_balance"])
	assert.Equal(t, 9000.0, values["sweep_sent_wei_total"])
	assert.Equal(t, 1.0, values["sweep_reconnects_total"])
	assert.Equal(t, 0.0, values["sweep_wallets_in_flight"])
}
