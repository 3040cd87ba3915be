package main

import (
	"encoding/json"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

// journalEntry is one finished wallet, kept for the JSON export.
type journalEntry struct {
	Time    string `json:"time"`
	RunID   string `json:"runId"`
	Index   int    `json:"index"`
	Address string `json:"address"`
	Status  string `json:"status"`
	Balance string `json:"balanceWei,omitempty"`
	Amount  string `json:"amountWei,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
}

type journal struct {
	mu      sync.Mutex
	entries []journalEntry
}

func weiString(x *big.Int) string {
	if x == nil || x.Sign() == 0 {
		return ""
	}
	return x.String()
}

func (j *journal) add(ev core.Event) {
	if ev.Phase != core.PhaseDone {
		return
	}
	e := journalEntry{
		Time:    ev.Time.UTC().Format(time.RFC3339),
		RunID:   ev.RunID,
		Index:   ev.Index,
		Address: ev.Address.Hex(),
		Status:  string(ev.Status),
		Balance: weiString(ev.Balance),
		Amount:  weiString(ev.Amount),
		Error:   ev.Err,
	}
	if ev.Status == core.StatusSent {
		e.TxHash = ev.TxHash.Hex()
	}
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (j *journal) reset() {
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()
}

func (j *journal) writeJSON(w io.Writer) error {
	j.mu.Lock()
	wallets := make([]journalEntry, len(j.entries))
	copy(wallets, j.entries)
	j.mu.Unlock()
	out := map[string]any{
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"wallets":     wallets,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// save writes the journal to log_data/<timestamp>.json next to the binary.
func (j *journal) save() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "locate executable")
	}
	dir := filepath.Join(filepath.Dir(exe), "log_data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create log_data")
	}
	path := filepath.Join(dir, time.Now().Format("20060102_150405")+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create journal")
	}
	defer f.Close()
	return path, j.writeJSON(f)
}
