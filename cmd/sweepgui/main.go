package main

import (
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"github.com/ligun0805/wallet-sweep/internal/config"
	"github.com/ligun0805/wallet-sweep/internal/logging"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

func main() {
	hideConsoleWindow()

	config.LoadDotenv()
	st, err := config.Load(config.New())
	if err != nil {
		// a broken env still opens the window; the form shows defaults
		log.Warn().Err(err).Msg("GUI: config from env is invalid")
		st = config.Defaults()
	}
	if closer, err := logging.Setup(logging.Config{Level: st.LogLevel, Pretty: st.LogPretty, File: st.LogFile}, os.Stderr); err == nil {
		defer closer.Close()
	}

	a := fyneapp.New()
	curTheme := makeTheme("dark", false)
	a.Settings().SetTheme(curTheme)

	w := a.NewWindow("Wallet Sweep")
	w.Resize(fyne.NewSize(1180, 760))

	u := newSweepUI(w)
	form := newSettingsForm(st)

	themeSelect := widget.NewSelect([]string{"Dark", "Light"}, func(s string) {
		mode := "dark"
		if s == "Light" {
			mode = "light"
		}
		curTheme = makeTheme(mode, curTheme.(*appTheme).compact)
		a.Settings().SetTheme(curTheme)
	})
	themeSelect.SetSelected("Dark")
	compactCheck := widget.NewCheck("Compact", func(b bool) {
		curTheme = makeTheme(curTheme.(*appTheme).mode, b)
		a.Settings().SetTheme(curTheme)
	})

	u.checkBtn = widget.NewButtonWithIcon("Check balances", theme.SearchIcon(), func() {
		if s, err := form.settings(); err != nil {
			dialog.ShowError(err, w)
		} else {
			u.start(s, true)
		}
	})
	u.startBtn = widget.NewButtonWithIcon("Start sweep", theme.MediaPlayIcon(), func() {
		s, err := form.settings()
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		msg := fmt.Sprintf("Send every balance minus the fee reserve to the address in %s?", s.DestinationFile)
		dialog.ShowConfirm("Start sweep", msg, func(ok bool) {
			if ok {
				u.start(s, false)
			}
		}, w)
	})
	u.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), u.stop)
	u.stopBtn.Disable()
	exportBtn := widget.NewButtonWithIcon("Export JSON", theme.DocumentSaveIcon(), func() {
		path, err := u.journal.save()
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		a.SendNotification(&fyne.Notification{Title: "Saved", Content: path})
		u.log.appendLine("journal saved to " + path)
	})

	settingsCard := widget.NewCard("Settings", "", container.NewVBox(
		form.object(),
		container.NewGridWithColumns(2, themeSelect, compactCheck),
	))
	actions := container.NewHBox(u.checkBtn, u.startBtn, u.stopBtn, exportBtn)
	progress := container.NewBorder(nil, nil, widget.NewLabel("Progress:"), u.progLbl, u.prog)
	left := container.NewBorder(nil, container.NewVBox(actions, progress, u.counts), nil, nil, container.NewVScroll(settingsCard))

	right := container.NewVSplit(u.wallets.table, u.log.object())
	right.Offset = 0.6

	split := container.NewHSplit(left, right)
	split.Offset = 0.33
	w.SetContent(split)
	w.SetOnClosed(u.stop)
	w.ShowAndRun()
}

// countsText renders the running totals under the progress bar.
func countsText(c map[core.Status]int) string {
	return fmt.Sprintf("sent %d | zero %d | low %d | failed %d",
		c[core.StatusSent], c[core.StatusSkippedZeroBalance], c[core.StatusSkippedInsufficient], c[core.StatusFailed])
}
