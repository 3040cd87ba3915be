package sweepcore

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the terminal outcome of one credential.
type Status string

const (
	StatusSent                Status = "sent"
	StatusSkippedZeroBalance  Status = "skipped_zero_balance"
	StatusSkippedInsufficient Status = "skipped_insufficient_after_fee"
	StatusFailed              Status = "failed"
)

// Statuses lists every terminal status in report order.
var Statuses = []Status{StatusSent, StatusSkippedZeroBalance, StatusSkippedInsufficient, StatusFailed}

// TransferAttempt is produced once per credential and not mutated after
// it leaves the worker.
type TransferAttempt struct {
	Index    int
	Address  common.Address
	Balance  *big.Int
	Amount   *big.Int
	TxHash   common.Hash
	Block    uint64
	Endpoint string
	Status   Status
	Err      string
	Started  time.Time
	Finished time.Time
}

func (a TransferAttempt) HasTx() bool { return a.TxHash != (common.Hash{}) }

// RunSummary is built by the single reducer goroutine of a run.
type RunSummary struct {
	RunID      string
	Total      int
	Counts     map[Status]int
	AmountSent *big.Int
	Started    time.Time
	Elapsed    time.Duration
	// Attempts are in completion order.
	Attempts []TransferAttempt
}

func newSummary(runID string, total int, started time.Time) *RunSummary {
	s := &RunSummary{
		RunID:      runID,
		Total:      total,
		Counts:     make(map[Status]int, len(Statuses)),
		AmountSent: new(big.Int),
		Started:    started,
		Attempts:   make([]TransferAttempt, 0, total),
	}
	for _, st := range Statuses {
		s.Counts[st] = 0
	}
	return s
}

func (s *RunSummary) add(a TransferAttempt) {
	s.Attempts = append(s.Attempts, a)
	s.Counts[a.Status]++
	if a.Status == StatusSent && a.Amount != nil {
		s.AmountSent.Add(s.AmountSent, a.Amount)
	}
}

func (s *RunSummary) Sent() int    { return s.Counts[StatusSent] }
func (s *RunSummary) Failed() int  { return s.Counts[StatusFailed] }
func (s *RunSummary) Skipped() int { return s.Counts[StatusSkippedZeroBalance] + s.Counts[StatusSkippedInsufficient] }

// AmountSentETH formats the cumulative amount.
func (s *RunSummary) AmountSentETH() string { return fmtETH(s.AmountSent) }
