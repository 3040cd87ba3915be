package main

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

type walletRow struct {
	Address string
	Balance string
	Amount  string
	Status  string
	TxHash  string
}

var walletColumns = []string{"#", "Address", "Balance (ETH)", "Amount (ETH)", "Status", "Tx"}

// walletTable shows one row per wallet of the current run or check.
type walletTable struct {
	mu    sync.Mutex
	rows  []walletRow
	table *widget.Table
}

func newWalletTable() *walletTable {
	t := &walletTable{}
	t.table = widget.NewTable(
		func() (int, int) {
			t.mu.Lock()
			defer t.mu.Unlock()
			return len(t.rows) + 1, len(walletColumns)
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			lbl.TextStyle = fyne.TextStyle{}
			if id.Row == 0 {
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				lbl.SetText(walletColumns[id.Col])
				return
			}
			lbl.SetText(t.cell(id.Row-1, id.Col))
		},
	)
	for col, w := range []float32{50, 380, 130, 130, 200, 200} {
		t.table.SetColumnWidth(col, w)
	}
	return t
}

func (t *walletTable) cell(row, col int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row < 0 || row >= len(t.rows) {
		return ""
	}
	r := t.rows[row]
	switch col {
	case 0:
		return fmt.Sprint(row + 1)
	case 1:
		return r.Address
	case 2:
		return r.Balance
	case 3:
		return r.Amount
	case 4:
		return r.Status
	default:
		return r.TxHash
	}
}

func (t *walletTable) reset(n int) {
	t.mu.Lock()
	t.rows = make([]walletRow, n)
	t.mu.Unlock()
	t.table.Refresh()
}

func (t *walletTable) update(i int, fn func(*walletRow)) {
	t.mu.Lock()
	if i < 0 || i >= len(t.rows) {
		t.mu.Unlock()
		return
	}
	fn(&t.rows[i])
	t.mu.Unlock()
	t.table.Refresh()
}

// apply folds one engine event into its row.
func (t *walletTable) apply(ev core.Event) {
	t.update(ev.Index, func(r *walletRow) {
		r.Address = ev.Address.Hex()
		switch ev.Phase {
		case core.PhaseStart:
			r.Status = "working"
		case core.PhaseBalance:
			r.Balance = core.FormatETH(ev.Balance)
		case core.PhaseSubmitted:
			r.Status = "waiting for receipt"
			r.Amount = core.FormatETH(ev.Amount)
			r.TxHash = shortHash(ev.TxHash.Hex())
		case core.PhaseReconnect:
			r.Status = "reconnecting"
		case core.PhaseDone:
			r.Status = string(ev.Status)
			if ev.Status == core.StatusFailed {
				r.Status = "failed: " + ev.Err
			}
			if ev.Balance != nil {
				r.Balance = core.FormatETH(ev.Balance)
			}
		}
	})
}

func shortHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:10] + "…" + h[len(h)-5:]
}
