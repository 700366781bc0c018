package smtp

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"strings"
)

// FailureKind groups SMTP connectivity failures for operator diagnostics.
type FailureKind string

const (
	FailureAuth       FailureKind = "auth"
	FailureConnection FailureKind = "connection"
	FailureTimeout    FailureKind = "timeout"
	FailureOther      FailureKind = "other"
)

// Hint returns a short troubleshooting hint for the failure kind.
func (k FailureKind) Hint() string {
	switch k {
	case FailureAuth:
		return "check the SMTP username and password; Gmail requires an app password when 2-step verification is on"
	case FailureConnection:
		return "check the SMTP host and port and that outbound traffic to them is allowed"
	case FailureTimeout:
		return "the SMTP server did not answer in time; check firewalls or try the STARTTLS port"
	default:
		return "inspect the underlying error"
	}
}

// VerifyError is returned by Verify.
type VerifyError struct {
	Kind FailureKind
	Addr string
	Err  error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("smtp verify %s (%s): %v", e.Addr, e.Kind, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Classify maps a dial or authentication error to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	var tp *textproto.Error
	if errors.As(err, &tp) && isAuthCode(tp.Code) {
		return FailureAuth
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return FailureConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureConnection
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "username and password"):
		return FailureAuth
	case strings.Contains(msg, "timeout"):
		return FailureTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return FailureConnection
	}
	return FailureOther
}
