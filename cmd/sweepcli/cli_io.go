package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/ligun0805/wallet-sweep/internal/loader"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

var stdin = bufio.NewReader(os.Stdin)

func stdinIsTerminal() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

func readLine(prompt string) string {
	fmt.Print(prompt)
	t, _ := stdin.ReadString('\n')
	return strings.TrimSpace(t)
}

// readKeysFromStdin reads keys without echo on a terminal, one per prompt
// until an empty line. Piped input is parsed like a keys file.
func readKeysFromStdin() ([]core.Credential, error) {
	if !stdinIsTerminal() {
		return loader.ReadCredentials(stdin)
	}
	var lines []string
	for i := 1; ; i++ {
		fmt.Fprintf(os.Stderr, "Private key #%d (empty line to finish): ", i)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, errors.Wrap(err, "read key")
		}
		s := strings.TrimSpace(string(b))
		if s == "" {
			break
		}
		lines = append(lines, s)
	}
	return loader.ReadCredentials(strings.NewReader(strings.Join(lines, "\n")))
}

func yes(s string) bool { return s == "y" || s == "yes" }

// maskURL keeps scheme and host. Paths and queries often carry API keys.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	out := u.Scheme + "://" + u.Host
	if strings.Trim(u.Path, "/") != "" || u.RawQuery != "" {
		out += "/…"
	}
	return out
}

func maskURLs(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = maskURL(u)
	}
	return out
}

// die prints an error and waits for Enter before exiting, so a console
// opened by double-click does not vanish before the message is read.
func die(message string) {
	color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "Error:", message)
	if stdinIsTerminal() {
		fmt.Fprint(os.Stderr, "Press Enter to close...")
		_, _ = stdin.ReadBytes('\n')
	}
	os.Exit(1)
}
