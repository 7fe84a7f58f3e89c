//go:build !windows

package recycle

import (
	"errors"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

// mountTop returns the mount point of the filesystem holding path: the
// highest ancestor that shares its device.
func mountTop(path string) (string, error) {
	dir := filepath.Dir(path)
	var st unix.Stat_t
	if err := unix.Stat(dir, &st); err != nil {
		return "", err
	}
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir, nil
		}
		var pst unix.Stat_t
		if err := unix.Stat(parent, &pst); err != nil {
			return "", err
		}
		if pst.Dev != st.Dev {
			return dir, nil
		}
		dir = parent
	}
}
