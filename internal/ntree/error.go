package ntree

import "github.com/AdguardTeam/golibs/errors"

const (
	// ErrNotFinished is returned by [Compile] when the network list has not
	// been finished.
	ErrNotFinished errors.Error = "network list is not finished"

	// ErrTooManyNodes is returned by [Compile] when the tree would contain
	// more than [MaxNodes] nodes.
	ErrTooManyNodes errors.Error = "too many nodes"
)
