package retry

import (
	"context"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Node rejections that will not change on a second try with the same bytes.
var fatalRPC = []string{
	"nonce too low",
	"insufficient funds",
	"intrinsic gas too low",
	"exceeds block gas limit",
	"invalid sender",
	"invalid chain id",
	"replacement transaction underpriced",
	"max fee per gas less than block base fee",
	"fee cap less than block base fee",
	"transaction underpriced",
	"execution reverted",
}

// Transient reports whether err looks like a network hiccup or node overload.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, sub := range []string{
		"deadline exceeded", "timeout", "timed out", "connection reset", "connection refused",
		"broken pipe", "eof", "no such host", "temporarily unavailable", "too many requests",
		"429", "502", "503", "504", "bad gateway", "service unavailable", "rate limit",
	} {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ClassifyRPC treats known node rejections and cancellation as Fatal,
// everything else as Retryable.
func ClassifyRPC(err error) Class {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	s := strings.ToLower(err.Error())
	for _, sub := range fatalRPC {
		if strings.Contains(s, sub) {
			return Fatal
		}
	}
	return Retryable
}
