package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrProjectKeyMissing is returned by the pull sync when no Jira project
// key is configured.
var ErrProjectKeyMissing = errors.New("jira project key is not configured (set JIRA_PROJECT_KEY)")

// AuthError means no calendar handle could be obtained.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed", e.Provider)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError wraps a failed call against Jira or the calendar.
type RemoteError struct {
	Service string
	Op      string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func newAuthError(provider string, err error) error {
	return &AuthError{Provider: provider, Err: err}
}

func remoteError(service, op string, err error) error {
	return &RemoteError{Service: service, Op: op, Err: err}
}

func isAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
