package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-sweep/internal/config"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

func TestJournalKeepsFinishedWalletsOnly(t *testing.T) {
	j := &journal{}
	a := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	j.add(core.Event{Time: time.Now(), Phase: core.PhaseStart, Index: 0, Address: a})
	j.add(core.Event{Time: time.Now(), RunID: "r1", Phase: core.PhaseDone, Index: 0, Address: a,
		Status: core.StatusSent, Balance: big.NewInt(10), Amount: big.NewInt(9), TxHash: common.HexToHash("0x01")})
	j.add(core.Event{Time: time.Now(), RunID: "r1", Phase: core.PhaseDone, Index: 1, Address: a,
		Status: core.StatusFailed, Err: "boom"})

	var buf bytes.Buffer
	require.NoError(t, j.writeJSON(&buf))
	var out struct {
		Wallets []journalEntry `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Wallets, 2)
	assert.Equal(t, "9", out.Wallets[0].Amount)
	assert.Equal(t, common.HexToHash("0x01").Hex(), out.Wallets[0].TxHash)
	assert.Empty(t, out.Wallets[1].TxHash)
	assert.Equal(t, "boom", out.Wallets[1].Error)

	j.reset()
	buf.Reset()
	require.NoError(t, j.writeJSON(&buf))
	assert.Contains(t, buf.String(), `"wallets": []`)
}

func TestSettingsFormValidates(t *testing.T) {
	test.NewApp()
	f := newSettingsForm(config.Defaults())

	st, err := f.settings()
	require.NoError(t, err)
	assert.Equal(t, 5, st.Workers)

	for i := range f.fields {
		if f.fields[i].key == "workers" {
			f.fields[i].entry.SetText("0")
		}
	}
	_, err = f.settings()
	assert.Error(t, err)
}

func TestWalletTableFollowsEvents(t *testing.T) {
	test.NewApp()
	wt := newWalletTable()
	wt.reset(1)
	a := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")

	wt.apply(core.Event{Index: 0, Address: a, Phase: core.PhaseBalance, Balance: big.NewInt(1e16)})
	assert.Equal(t, "0.010000", wt.cell(0, 2))
	wt.apply(core.Event{Index: 0, Address: a, Phase: core.PhaseDone, Status: core.StatusFailed, Err: "nonce too low"})
	assert.Equal(t, "failed: nonce too low", wt.cell(0, 4))
	assert.Equal(t, a.Hex(), wt.cell(0, 1))
	assert.Equal(t, "", wt.cell(3, 1))
}
