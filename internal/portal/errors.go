package portal

import (
	"errors"
	"fmt"
)

// ErrAuthRedirect is the cause of a FetchError when the portal still
// redirects to the identity provider after a fresh login.
var ErrAuthRedirect = errors.New("portal redirected to login after authenticating")

// AuthError reports a failed or timed-out login.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "portal login failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError reports a failure retrieving one network's status. Op names the
// endpoint ("firewall" or "wireless"); StatusCode is zero for transport and
// decode failures.
type FetchError struct {
	NetworkID  string
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s status for %s", e.Op, e.NetworkID)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
