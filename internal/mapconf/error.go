package mapconf

import (
	"fmt"
	"net/netip"

	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/errors"
)

const (
	// errEmptyLabel is returned when a label in the data is empty.
	errEmptyLabel errors.Error = "empty label"

	// errZone is returned when an address in the data has an IPv6 zone.
	errZone errors.Error = "address must not have a zone"
)

// ReservedSpaceError is returned when a configured IPv6 network lies within
// one of the reserved IPv4-embedding zones.
type ReservedSpaceError = snapshot.ReservedSpaceError

// DuplicateError is returned when the same network is listed more than once.
type DuplicateError struct {
	// Prefix is the duplicated network.
	Prefix netip.Prefix

	// Labels are the labels of the first and the second occurrences.  They
	// may be equal.
	Labels [2]string
}

// type check
var _ error = (*DuplicateError)(nil)

// Error implements the error interface for *DuplicateError.
func (err *DuplicateError) Error() (msg string) {
	return fmt.Sprintf(
		"network %s is listed for labels %q and %q",
		err.Prefix,
		err.Labels[0],
		err.Labels[1],
	)
}

// SourceError is returned when the data can't be read or parsed.
type SourceError struct {
	// Err is the underlying error.  It is never nil.
	Err error

	// Path is the path to the data file.
	Path string
}

// type check
var _ errors.Wrapper = (*SourceError)(nil)

// Error implements the error interface for *SourceError.
func (err *SourceError) Error() (msg string) {
	return fmt.Sprintf("source %q: %s", err.Path, err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *SourceError.
func (err *SourceError) Unwrap() (unwrapped error) {
	return err.Err
}
