package sweepcore

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Phase names a step of the per-wallet pipeline.
type Phase string

const (
	PhaseRunStarted  Phase = "run_started"
	PhaseStart       Phase = "start"
	PhaseBalance     Phase = "balance"
	PhaseReconnect   Phase = "reconnect"
	PhaseSigned      Phase = "signed"
	PhaseSubmitted   Phase = "submitted"
	PhaseDone        Phase = "done"
	PhaseRunFinished Phase = "run_finished"
)

// Event is published for every step. Index is -1 for run-level phases.
type Event struct {
	Time    time.Time
	RunID   string
	Index   int
	Total   int
	Address common.Address
	Phase   Phase
	Status  Status
	Balance *big.Int
	Amount  *big.Int
	TxHash  common.Hash
	Err     string
	Summary *RunSummary
}

// bus fans events out to subscribers. Sends block, so a subscriber
// must drain its channel until it is closed.
type bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

func (b *bus) subscribe(buf int) <-chan Event {
	ch := make(chan Event, buf)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *bus) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		ch <- ev
	}
}

func (b *bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
