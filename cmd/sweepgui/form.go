package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	"github.com/ligun0805/wallet-sweep/internal/config"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

type formField struct {
	key    string
	label  string
	entry  *widget.Entry
	choice *widget.Select
}

func (f formField) value() string {
	if f.choice != nil {
		return f.choice.Selected
	}
	return strings.TrimSpace(f.entry.Text)
}

// settingsForm edits the subset of settings an operator usually changes.
// Everything else keeps its env or default value.
type settingsForm struct {
	base   config.Settings
	fields []formField
}

func newSettingsForm(st config.Settings) *settingsForm {
	entry := func(v string) *widget.Entry {
		e := widget.NewEntry()
		e.SetText(v)
		return e
	}
	choice := func(v string, opts ...string) *widget.Select {
		s := widget.NewSelect(opts, nil)
		s.SetSelected(v)
		return s
	}
	return &settingsForm{
		base: st,
		fields: []formField{
			{key: "rpc_urls", label: "RPC URLs", entry: entry(strings.Join(st.RPCURLs, ","))},
			{key: "chain_id", label: "Chain ID", entry: entry(fmt.Sprint(st.ChainID))},
			{key: "destination_file", label: "Destination file", entry: entry(st.DestinationFile)},
			{key: "keys_file", label: "Keys file", entry: entry(st.KeysFile)},
			{key: "workers", label: "Workers", entry: entry(fmt.Sprint(st.Workers))},
			{key: "fee_mode", label: "Fee mode", choice: choice(st.FeeMode, string(core.FeeModeGas), string(core.FeeModeFlat))},
			{key: "tx_type", label: "Tx type", choice: choice(st.TxType, string(core.TxDynamic), string(core.TxLegacy))},
			{key: "max_fee_gwei", label: "Max fee (gwei)", entry: entry(st.MaxFeeGwei)},
			{key: "priority_fee_gwei", label: "Priority fee (gwei)", entry: entry(st.PriorityFeeGwei)},
			{key: "gas_limit", label: "Gas limit", entry: entry(fmt.Sprint(st.GasLimit))},
			{key: "flat_reserve_eth", label: "Flat reserve (ETH)", entry: entry(st.FlatReserveETH)},
		},
	}
}

func (f *settingsForm) object() fyne.CanvasObject {
	items := make([]*widget.FormItem, 0, len(f.fields))
	for _, fld := range f.fields {
		var obj fyne.CanvasObject = fld.entry
		if fld.choice != nil {
			obj = fld.choice
		}
		items = append(items, widget.NewFormItem(fld.label, obj))
	}
	return widget.NewForm(items...)
}

func (f *settingsForm) values() map[string]string {
	out := make(map[string]string, len(f.fields))
	for _, fld := range f.fields {
		out[fld.key] = fld.value()
	}
	return out
}

// settings runs the form values through the same loader as the CLI so
// validation stays in one place.
func (f *settingsForm) settings() (config.Settings, error) {
	return config.Override(f.base, f.values())
}
