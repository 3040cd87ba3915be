package loader

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

var (
	ErrInvalidAddress = errors.New("invalid destination address")
	ErrNoCredentials  = errors.New("no credentials found")
)

// Line is one meaningful input line with its 1-based position.
type Line struct {
	No   int
	Text string
}

// ReadLines returns trimmed lines, skipping blanks and # comments.
// A UTF-8 BOM on the first line is dropped.
func ReadLines(r io.Reader) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	no := 0
	for sc.Scan() {
		no++
		s := sc.Text()
		if no == 1 {
			s = strings.TrimPrefix(s, "\ufeff")
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, Line{No: no, Text: s})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read lines")
	}
	return out, nil
}

func readFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadLines(f)
}

// LoadDestination reads the first non-blank line of path as the address
// every sweep pays into.
func LoadDestination(path string) (common.Address, error) {
	lines, err := readFile(path)
	if err != nil {
		return common.Address{}, err
	}
	if len(lines) == 0 {
		return common.Address{}, errors.Wrapf(ErrInvalidAddress, "%s is empty", path)
	}
	return ParseDestination(lines[0].Text)
}

func ParseDestination(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, errors.Wrap(ErrInvalidAddress, "zero address")
	}
	return addr, nil
}

// LoadCredentials reads one private key per line from path.
func LoadCredentials(path string) ([]core.Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	creds, err := ReadCredentials(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return creds, nil
}

// ReadCredentials parses keys from r. A bad line is reported by number
// only. Keys that derive an address already seen are dropped so one
// wallet never has two transfers racing for its nonce.
func ReadCredentials(r io.Reader) ([]core.Credential, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, err
	}
	out := make([]core.Credential, 0, len(lines))
	seen := make(map[common.Address]int, len(lines))
	for _, ln := range lines {
		c, err := core.ParseCredential(ln.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", ln.No)
		}
		if first, dup := seen[c.Address()]; dup {
			log.Warn().Int("line", ln.No).Int("first_line", first).Str("address", c.Address().Hex()).
				Msg("Loader: duplicate key skipped")
			continue
		}
		seen[c.Address()] = ln.No
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrNoCredentials
	}
	return out, nil
}
