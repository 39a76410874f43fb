package mapper

import "github.com/AdguardTeam/golibs/errors"

// errNilSnapshot is returned by [Manager.Publish] when the snapshot is nil.
const errNilSnapshot errors.Error = "nil snapshot"
