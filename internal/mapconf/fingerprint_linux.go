//go:build linux

package mapconf

import (
	"fmt"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"golang.org/x/sys/unix"
)

// fingerprint returns the fingerprint of the file at path.
func fingerprint(path string) (fp mapper.Fingerprint, err error) {
	var st unix.Stat_t
	err = unix.Stat(path, &st)
	if err != nil {
		return mapper.Fingerprint{}, fmt.Errorf("stat %q: %w", path, err)
	}

	return mapper.Fingerprint{
		ModTime:    st.Mtim.Nano(),
		ChangeTime: st.Ctim.Nano(),
		Inode:      st.Ino,
		Device:     uint64(st.Dev),
		Size:       st.Size,
	}, nil
}
