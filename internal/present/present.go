package present

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

// Presenter renders a run from its event stream.
type Presenter interface {
	Consume(events <-chan core.Event)
}

// Pick resolves "auto" to color on a terminal and plain otherwise.
func Pick(mode string, out io.Writer) Presenter {
	switch mode {
	case "plain":
		return &Plain{Out: out}
	case "color":
		return NewColor(out, false)
	case "dashboard":
		return &Dashboard{Out: out, Width: termWidth(out)}
	}
	if isTerminal(out) {
		return NewColor(out, false)
	}
	return &Plain{Out: out}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func termWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			return cols
		}
	}
	return 100
}

func shortHash(ev core.Event) string {
	h := ev.TxHash.Hex()
	return h[:10] + "…" + h[len(h)-6:]
}

func progress(done, total int) string {
	return fmt.Sprintf("[%d/%d]", done, total)
}

// Plain prints one line per finished wallet.
type Plain struct {
	Out  io.Writer
	done int
}

func (p *Plain) Consume(events <-chan core.Event) {
	for ev := range events {
		switch ev.Phase {
		case core.PhaseRunStarted:
			fmt.Fprintf(p.Out, "Sweeping %d wallets (run %s)\n", ev.Total, ev.RunID)
		case core.PhaseReconnect:
			fmt.Fprintf(p.Out, "  reconnecting after error on %s: %s\n", core.ShortAddress(ev.Address), ev.Err)
		case core.PhaseDone:
			p.done++
			fmt.Fprintf(p.Out, "%s %s %s\n", progress(p.done, ev.Total), core.ShortAddress(ev.Address), describe(ev))
		case core.PhaseRunFinished:
			if ev.Summary != nil {
				PrintSummary(p.Out, ev.Summary)
			}
		}
	}
}

func describe(ev core.Event) string {
	switch ev.Status {
	case core.StatusSent:
		return fmt.Sprintf("sent %s ETH tx %s", core.FormatETH(ev.Amount), ev.TxHash.Hex())
	case core.StatusSkippedZeroBalance:
		return "zero balance, skipped"
	case core.StatusSkippedInsufficient:
		return fmt.Sprintf("balance %s ETH does not cover the fee reserve, skipped", core.FormatETH(ev.Balance))
	default:
		return "failed: " + ev.Err
	}
}

// Color is Plain with per-status colors.
type Color struct {
	Out  io.Writer
	done int

	addr, ok, skip, bad, amount func(a ...interface{}) string
}

func NewColor(out io.Writer, noColor bool) *Color {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
		return c.SprintFunc()
	}
	return &Color{
		Out:    out,
		addr:   mk(color.FgCyan),
		ok:     mk(color.FgGreen),
		skip:   mk(color.FgHiBlack),
		bad:    mk(color.FgRed, color.Bold),
		amount: mk(color.FgYellow),
	}
}

func (c *Color) Consume(events <-chan core.Event) {
	for ev := range events {
		switch ev.Phase {
		case core.PhaseRunStarted:
			fmt.Fprintf(c.Out, "Sweeping %d wallets (run %s)\n", ev.Total, ev.RunID)
		case core.PhaseReconnect:
			fmt.Fprintf(c.Out, "  %s %s: %s\n", c.skip("reconnecting after error on"), c.addr(core.ShortAddress(ev.Address)), ev.Err)
		case core.PhaseDone:
			c.done++
			var msg string
			switch ev.Status {
			case core.StatusSent:
				msg = fmt.Sprintf("%s %s ETH tx %s", c.ok("sent"), c.amount(core.FormatETH(ev.Amount)), shortHash(ev))
			case core.StatusFailed:
				msg = c.bad("failed: ") + ev.Err
			default:
				msg = c.skip(describe(ev))
			}
			fmt.Fprintf(c.Out, "%s %s %s\n", progress(c.done, ev.Total), c.addr(core.ShortAddress(ev.Address)), msg)
		case core.PhaseRunFinished:
			if ev.Summary != nil {
				PrintSummary(c.Out, ev.Summary)
			}
		}
	}
}

// Dashboard redraws a single status line and prints only failures in full.
type Dashboard struct {
	Out   io.Writer
	Width int

	started  time.Time
	inflight int
	done     int
	counts   map[core.Status]int
	active   map[int]struct{}
}

func (d *Dashboard) Consume(events <-chan core.Event) {
	d.counts = map[core.Status]int{}
	d.active = map[int]struct{}{}
	for ev := range events {
		switch ev.Phase {
		case core.PhaseRunStarted:
			d.started = ev.Time
		case core.PhaseStart:
			d.active[ev.Index] = struct{}{}
			d.inflight++
		case core.PhaseDone:
			d.done++
			d.counts[ev.Status]++
			if _, ok := d.active[ev.Index]; ok {
				delete(d.active, ev.Index)
				d.inflight--
			}
			if ev.Status == core.StatusFailed {
				d.clear()
				fmt.Fprintf(d.Out, "%s failed: %s\n", core.ShortAddress(ev.Address), ev.Err)
			}
		case core.PhaseRunFinished:
			d.clear()
			if ev.Summary != nil {
				PrintSummary(d.Out, ev.Summary)
			}
			continue
		default:
			continue
		}
		d.draw(ev.Total, ev.Time)
	}
}

func (d *Dashboard) clear() {
	fmt.Fprint(d.Out, "\r"+strings.Repeat(" ", d.width())+"\r")
}

func (d *Dashboard) width() int {
	if d.Width <= 0 {
		return 100
	}
	return d.Width - 1
}

func (d *Dashboard) draw(total int, now time.Time) {
	line := fmt.Sprintf("%s in-flight %d | sent %d | zero %d | low %d | failed %d | %s",
		progress(d.done, total), d.inflight,
		d.counts[core.StatusSent], d.counts[core.StatusSkippedZeroBalance],
		d.counts[core.StatusSkippedInsufficient], d.counts[core.StatusFailed],
		now.Sub(d.started).Truncate(time.Second))
	if len(line) > d.width() {
		line = line[:d.width()]
	}
	fmt.Fprint(d.Out, "\r"+line)
}

// PrintSummary writes the final report.
func PrintSummary(w io.Writer, s *core.RunSummary) {
	fmt.Fprintln(w, "=== SWEEP SUMMARY ===")
	fmt.Fprintln(w, "Run               :", s.RunID)
	fmt.Fprintln(w, "Wallets           :", s.Total)
	fmt.Fprintln(w, "Sent              :", s.Sent())
	fmt.Fprintln(w, "Skipped (zero)    :", s.Counts[core.StatusSkippedZeroBalance])
	fmt.Fprintln(w, "Skipped (low)     :", s.Counts[core.StatusSkippedInsufficient])
	fmt.Fprintln(w, "Failed            :", s.Failed())
	fmt.Fprintln(w, "Amount sent (ETH) :", s.AmountSentETH())
	fmt.Fprintln(w, "Elapsed           :", s.Elapsed.Truncate(time.Millisecond))
	fmt.Fprintln(w, "=====================")
}
