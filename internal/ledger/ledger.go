package ledger

import (
	"encoding/csv"
	"math/big"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

var (
	TxLogHeader    = []string{"address", "balance_before", "amount_sent", "tx_identifier"}
	ErrorLogHeader = []string{"address", "error_message"}
)

// csvSink writes whole rows under a lock and flushes each one, so a
// crash never leaves half a line behind.
type csvSink struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func (s *csvSink) write(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return errors.New("sink is closed")
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *csvSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	s.w.Flush()
	ferr := s.w.Error()
	cerr := s.f.Close()
	s.w = nil
	if ferr != nil {
		return ferr
	}
	return cerr
}

// TxLog is truncated when opened; the header is written once per run.
type TxLog struct{ csvSink }

func OpenTxLog(path string) (*TxLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open tx log %s", path)
	}
	l := &TxLog{csvSink{f: f, w: csv.NewWriter(f)}}
	if err := l.write(TxLogHeader); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "write tx log header")
	}
	return l, nil
}

func (l *TxLog) Append(a core.TransferAttempt) error {
	return l.write([]string{a.Address.Hex(), weiString(a.Balance), weiString(a.Amount), a.TxHash.Hex()})
}

func (l *TxLog) Close() error { return l.close() }

// ErrorLog appends across runs; the header is only written to a new file.
type ErrorLog struct{ csvSink }

func OpenErrorLog(path string) (*ErrorLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open error log %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat error log")
	}
	l := &ErrorLog{csvSink{f: f, w: csv.NewWriter(f)}}
	if st.Size() == 0 {
		if err := l.write(ErrorLogHeader); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "write error log header")
		}
	}
	return l, nil
}

func (l *ErrorLog) Append(a core.TransferAttempt) error {
	return l.write([]string{a.Address.Hex(), a.Err})
}

func (l *ErrorLog) Close() error { return l.close() }

// Ledger routes finished attempts to the tx log or the error log.
type Ledger struct {
	tx  *TxLog
	bad *ErrorLog
}

// Open creates both sinks. Call it only after an endpoint answered, so a
// run that cannot start leaves the previous tx log in place.
func Open(txPath, errPath string) (*Ledger, error) {
	tx, err := OpenTxLog(txPath)
	if err != nil {
		return nil, err
	}
	bad, err := OpenErrorLog(errPath)
	if err != nil {
		_ = tx.Close()
		return nil, err
	}
	return &Ledger{tx: tx, bad: bad}, nil
}

// Record implements sweepcore.Recorder.
func (l *Ledger) Record(a core.TransferAttempt) error {
	switch a.Status {
	case core.StatusSent:
		return l.tx.Append(a)
	case core.StatusFailed:
		return l.bad.Append(a)
	}
	return nil
}

func (l *Ledger) Close() error {
	err := l.tx.Close()
	if berr := l.bad.Close(); berr != nil && err == nil {
		err = berr
	}
	if err != nil {
		log.Error().Err(err).Msg("Ledger: close failed")
	}
	return err
}

func weiString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
