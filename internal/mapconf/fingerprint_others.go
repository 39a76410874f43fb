//go:build !linux

package mapconf

import (
	"os"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
)

// fingerprint returns the fingerprint of the file at path.  Only the
// modification time and the size are used.
func fingerprint(path string) (fp mapper.Fingerprint, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		// Don't wrap the error, because it already contains the path.
		return mapper.Fingerprint{}, err
	}

	return mapper.Fingerprint{
		ModTime: fi.ModTime().UnixNano(),
		Size:    fi.Size(),
	}, nil
}
