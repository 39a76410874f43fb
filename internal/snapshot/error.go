package snapshot

import (
	"fmt"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
)

// errInvalidPrefix is returned when an entry has an invalid prefix.
const errInvalidPrefix errors.Error = "invalid prefix"

// ReservedSpaceError is returned when a labeled IPv6 network lies within one
// of the reserved IPv4-embedding zones.  IPv4 networks must be written in the
// IPv4 syntax instead.
type ReservedSpaceError struct {
	// Label is the label of the network.
	Label string

	// Prefix is the offending network.
	Prefix netip.Prefix

	// Zone is the reserved zone that contains Prefix.
	Zone netip.Prefix
}

// type check
var _ error = (*ReservedSpaceError)(nil)

// Error implements the error interface for *ReservedSpaceError.
func (err *ReservedSpaceError) Error() (msg string) {
	return fmt.Sprintf("network %s is within reserved zone %s", err.Prefix, err.Zone)
}

// BuildError is returned by [Build] when the entries of a generation cannot be
// compiled into a snapshot.
type BuildError struct {
	// Err is the underlying error.  It is never nil.
	Err error

	// Generation is the generation that failed to build.
	Generation uint64
}

// type check
var _ errors.Wrapper = (*BuildError)(nil)

// Error implements the error interface for *BuildError.
func (err *BuildError) Error() (msg string) {
	return fmt.Sprintf("building snapshot %d: %s", err.Generation, err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *BuildError.
func (err *BuildError) Unwrap() (unwrapped error) {
	return err.Err
}

// TransitionError is returned when a snapshot is moved into a state that
// doesn't follow its current one.
type TransitionError struct {
	// From is the actual state of the snapshot.
	From State

	// To is the requested state.
	To State

	// Wanted is the state the snapshot had to be in.
	Wanted State
}

// type check
var _ error = (*TransitionError)(nil)

// Error implements the error interface for *TransitionError.
func (err *TransitionError) Error() (msg string) {
	return fmt.Sprintf("snapshot: transition to %s: state is %s, want %s", err.To, err.From, err.Wanted)
}
