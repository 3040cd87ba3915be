package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"github.com/ligun0805/wallet-sweep/internal/app"
	"github.com/ligun0805/wallet-sweep/internal/config"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

type sweepUI struct {
	win fyne.Window

	log     *logView
	wallets *walletTable
	journal *journal

	prog    *widget.ProgressBar
	progLbl *widget.Label
	counts  *widget.Label

	checkBtn, startBtn, stopBtn *widget.Button

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newSweepUI(w fyne.Window) *sweepUI {
	return &sweepUI{
		win:     w,
		log:     newLogView(),
		wallets: newWalletTable(),
		journal: &journal{},
		prog:    widget.NewProgressBar(),
		progLbl: widget.NewLabel("0/0"),
		counts:  widget.NewLabel(countsText(nil)),
	}
}

func (u *sweepUI) setRunning(running bool) {
	for _, b := range []*widget.Button{u.checkBtn, u.startBtn} {
		if b == nil {
			continue
		}
		if running {
			b.Disable()
		} else {
			b.Enable()
		}
	}
	if u.stopBtn != nil {
		if running {
			u.stopBtn.Enable()
		} else {
			u.stopBtn.Disable()
		}
	}
}

// start runs a sweep or a check off the UI goroutine. Only one runs at a time.
func (u *sweepUI) start(st config.Settings, checkOnly bool) {
	u.mu.Lock()
	if u.cancel != nil {
		u.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.mu.Unlock()

	u.setRunning(true)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				u.log.appendLine(fmt.Sprintf("[panic] %v", r))
				log.Error().Interface("panic", r).Msg("GUI: run panicked")
			}
			u.mu.Lock()
			u.cancel = nil
			u.mu.Unlock()
			cancel()
			u.setRunning(false)
		}()
		if checkOnly {
			u.runCheck(ctx, st)
		} else {
			u.runSweep(ctx, st)
		}
	}()
}

func (u *sweepUI) stop() {
	u.mu.Lock()
	cancel := u.cancel
	u.mu.Unlock()
	if cancel != nil {
		u.log.appendLine("STOP pressed, cancelling")
		cancel()
	}
}

func (u *sweepUI) runSweep(ctx context.Context, st config.Settings) {
	u.journal.reset()
	u.log.appendLine("=== Sweep ===")
	summary, err := app.Run(ctx, st, app.RunOptions{
		NoPresenter: true,
		Observers:   []app.Observer{u.observe},
	})
	if err != nil {
		u.log.appendLine("error: " + err.Error())
		return
	}
	u.log.appendLine(fmt.Sprintf("done: %d sent, %d skipped, %d failed, %s ETH in %s",
		summary.Sent(), summary.Skipped(), summary.Failed(), summary.AmountSentETH(), summary.Elapsed.Round(time.Millisecond)))
}

func (u *sweepUI) runCheck(ctx context.Context, st config.Settings) {
	u.log.appendLine("=== Check ===")
	p, plans, err := app.Check(ctx, st, app.RunOptions{})
	if err != nil {
		u.log.appendLine("error: " + err.Error())
		return
	}
	u.log.appendLine(fmt.Sprintf("endpoint %s, chain %s, reserve %s ETH", p.Active.URL, p.ChainID, core.FormatETH(p.Reserve)))
	u.wallets.reset(len(plans))
	counts := map[core.Status]int{}
	for _, pl := range plans {
		counts[pl.Status]++
		u.wallets.update(pl.Index, func(r *walletRow) {
			r.Address = pl.Address.Hex()
			r.Balance = core.FormatETH(pl.Balance)
			r.Amount = core.FormatETH(pl.Amount)
			r.Status = "would be " + string(pl.Status)
			if pl.Status == core.StatusFailed {
				r.Status = "error: " + pl.Err
			}
		})
	}
	u.counts.SetText("check: " + countsText(counts))
}

// observe is subscribed to the engine and drains its events.
func (u *sweepUI) observe(events <-chan core.Event) {
	counts := map[core.Status]int{}
	done := 0
	for ev := range events {
		u.journal.add(ev)
		switch ev.Phase {
		case core.PhaseRunStarted:
			u.wallets.reset(ev.Total)
			u.prog.Min, u.prog.Max = 0, float64(ev.Total)
			u.prog.SetValue(0)
			u.progLbl.SetText(fmt.Sprintf("0/%d", ev.Total))
			u.counts.SetText(countsText(counts))
			u.log.appendLine(fmt.Sprintf("run %s: %d wallets", ev.RunID, ev.Total))
		case core.PhaseRunFinished:
			u.log.appendLine("run finished")
		case core.PhaseReconnect:
			u.wallets.apply(ev)
			u.log.appendLine(fmt.Sprintf("%s: reconnecting after %s", core.ShortAddress(ev.Address), ev.Err))
		case core.PhaseDone:
			u.wallets.apply(ev)
			done++
			counts[ev.Status]++
			u.prog.SetValue(float64(done))
			u.progLbl.SetText(fmt.Sprintf("%d/%d", done, ev.Total))
			u.counts.SetText(countsText(counts))
			u.log.appendLine(fmt.Sprintf("%s %s", core.ShortAddress(ev.Address), describe(ev)))
		default:
			u.wallets.apply(ev)
		}
	}
}

func describe(ev core.Event) string {
	switch ev.Status {
	case core.StatusSent:
		return fmt.Sprintf("sent %s ETH, tx %s", core.FormatETH(ev.Amount), ev.TxHash.Hex())
	case core.StatusFailed:
		return "failed: " + ev.Err
	default:
		return string(ev.Status)
	}
}
