package remote

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// NetworkError indicates the remote could not be reached.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError indicates the remote did not answer within the deadline.
type TimeoutError struct {
	Op      string
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s %s: timed out after %s", e.Op, e.URL, e.Timeout)
	}
	return fmt.Sprintf("%s %s: timed out: %v", e.Op, e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// RemoteRejectedError indicates the remote answered but reported failure:
// a non-2xx status or a success:false body.
type RemoteRejectedError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteRejectedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: rejected by remote (%d): %s", e.Op, e.StatusCode, msg)
}

// IsRetryable reports whether another attempt may succeed. Network errors,
// timeouts, 5xx and 429 are transient; other rejections are not.
func IsRetryable(err error) bool {
	var (
		netErr  *NetworkError
		timeout *TimeoutError
		reject  *RemoteRejectedError
	)
	switch {
	case errors.As(err, &netErr), errors.As(err, &timeout):
		return true
	case errors.As(err, &reject):
		return reject.StatusCode >= 500 || reject.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsConflict reports whether the remote rejected a create because the
// entity already exists.
func IsConflict(err error) bool {
	var reject *RemoteRejectedError
	if !errors.As(err, &reject) {
		return false
	}
	return reject.StatusCode == http.StatusConflict ||
		strings.Contains(strings.ToLower(reject.Message), "already exists")
}

// IsUnreachable reports whether err is a transport failure: the request
// got no HTTP answer at all.
func IsUnreachable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsDown reports whether err means the remote cannot be contacted at all:
// the host did not resolve or no connection could be dialled. A reset or
// a failed read on an established connection concerns only that request.
func IsDown(err error) bool {
	if !IsUnreachable(err) {
		return false
	}
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	switch {
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return true
	case errors.As(err, &dnsErr):
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
