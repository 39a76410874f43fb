package netlist

import (
	"fmt"
	"net/netip"

	"github.com/AdguardTeam/NetMapper/internal/strtab"
	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrDuplicateNetwork is returned, wrapped into a *DuplicateNetworkError,
	// when a list contains the same network twice.
	ErrDuplicateNetwork errors.Error = "duplicate network"

	// ErrFinished is returned when a finished list is modified.
	ErrFinished errors.Error = "list is finished"

	// ErrNotFinished is returned when the entries of a list that has not been
	// finished are requested.
	ErrNotFinished errors.Error = "list is not finished"

	// ErrUnusable is returned when a list that failed to finish is used.
	ErrUnusable errors.Error = "list failed to finish and cannot be used"

	// errBadBits is returned when the prefix length is out of range.
	errBadBits errors.Error = "bad prefix length"
)

// DuplicateNetworkError is returned by [List.Finish] when the list contains
// the same network more than once, regardless of the labels.
type DuplicateNetworkError struct {
	// Prefix is the duplicated network.
	Prefix netip.Prefix

	// Labels are the labels of the first two occurrences.
	Labels [2]strtab.Handle
}

// type check
var _ errors.Wrapper = (*DuplicateNetworkError)(nil)

// Error implements the error interface for *DuplicateNetworkError.
func (err *DuplicateNetworkError) Error() (msg string) {
	return fmt.Sprintf("%s %s", ErrDuplicateNetwork, err.Prefix)
}

// Unwrap implements the [errors.Wrapper] interface for *DuplicateNetworkError.
func (err *DuplicateNetworkError) Unwrap() (unwrapped error) {
	return ErrDuplicateNetwork
}
