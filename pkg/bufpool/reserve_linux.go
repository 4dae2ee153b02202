package bufpool

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// reserve allocates storage for the whole file so a full disk is found now
// rather than while recording.
func reserve(f *os.File, size int64) error {
	err := unix.Fallocate(int(f.Fd()), 0, 0, size)
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return f.Truncate(size)
	}
	return err
}
