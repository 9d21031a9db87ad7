//go:build linux || darwin

package rawdevice

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/shubham/forensics/internal/forensicerr"
)

// unixBackend is the open(2)/pread(2) backend (spec.md §9 design notes).
// It reads a raw fd directly with unix.Pread so every ReadAt is a single
// positioned syscall with no implicit cursor movement, share-read
// compatible with other processes holding the same device open.
type unixBackend struct {
	fd int
}

func (u *unixBackend) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := unix.Pread(u.fd, buf, offset)
	if err != nil {
		return n, forensicerr.New(forensicerr.IoError, "pread failed", err)
	}
	return n, nil
}

func (u *unixBackend) Close() error {
	return unix.Close(u.fd)
}

func (u *unixBackend) Size() (int64, bool) {
	var st unix.Stat_t
	if err := unix.Fstat(u.fd, &st); err != nil {
		return 0, false
	}
	if st.Mode&unix.S_IFMT == unix.S_IFBLK {
		size, err := unix.Seek(u.fd, 0, unix.SEEK_END)
		if err == nil {
			unix.Seek(u.fd, 0, unix.SEEK_SET)
			return size, true
		}
		return 0, false
	}
	return st.Size, true
}

func openBackend(path string) (backend, int64, bool, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		switch err {
		case unix.EACCES, unix.EPERM:
			return nil, 0, false, forensicerr.New(forensicerr.PermissionDenied, "cannot open "+path, err)
		case unix.ENOENT:
			return nil, 0, false, forensicerr.New(forensicerr.DeviceNotFound, "no such device "+path, err)
		default:
			return nil, 0, false, forensicerr.New(forensicerr.UnsupportedDevice, "cannot open "+path, err)
		}
	}

	b := &unixBackend{fd: fd}
	size, ok := b.Size()
	return b, size, ok, nil
}

// canonicalize maps common identifier forms to a path openBackend can use.
// On Unix there is no drive-letter indirection: raw device paths
// (/dev/sda, /dev/disk0) and plain image files are used as given.
func canonicalize(identifier string) (string, Mode) {
	if strings.HasPrefix(identifier, "/dev/") {
		return identifier, Raw
	}
	return identifier, Raw
}
