package strtab

import "github.com/AdguardTeam/golibs/errors"

const (
	// errEmptyString is returned when an empty string is added to a table.
	errEmptyString errors.Error = "empty string"

	// errTooManyStrings is returned when the handle space is exhausted.
	errTooManyStrings errors.Error = "too many strings"
)
