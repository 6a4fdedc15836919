package service

import (
	"strings"

	"tally/internal/core"
)

// AccessOutcome is the result of the ownership check applied to every
// single-record operation.
type AccessOutcome int

const (
	AccessGranted AccessOutcome = iota
	AccessNotFound
	AccessForbidden
)

// Authorize decides whether requesterID may act on t. A nil record is
// reported as not found before ownership is ever considered, so a caller
// probing foreign ids cannot tell a missing record from an unowned one by
// the order of checks.
func Authorize(t *core.Transaction, requesterID string) AccessOutcome {
	if t == nil {
		return AccessNotFound
	}
	if strings.TrimSpace(t.OwnerID) != strings.TrimSpace(requesterID) {
		return AccessForbidden
	}
	return AccessGranted
}

// Err maps the outcome onto the error taxonomy; granted access is nil.
func (o AccessOutcome) Err() error {
	switch o {
	case AccessNotFound:
		return core.ErrNotFound
	case AccessForbidden:
		return core.ErrForbidden
	default:
		return nil
	}
}
