//go:build !linux && !darwin && !windows

package rawdevice

import (
	"io"
	"os"

	"github.com/shubham/forensics/internal/forensicerr"
)

// fileBackend is a portable os.File-based fallback for platforms without a
// dedicated raw backend in this package.
type fileBackend struct {
	f *os.File
}

func (b *fileBackend) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := b.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return n, forensicerr.New(forensicerr.IoError, "read failed", err)
	}
	return n, nil
}

func (b *fileBackend) Close() error { return b.f.Close() }

func (b *fileBackend) Size() (int64, bool) {
	st, err := b.f.Stat()
	if err != nil {
		return 0, false
	}
	if st.Size() > 0 {
		return st.Size(), true
	}
	end, err := b.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, false
	}
	b.f.Seek(0, io.SeekStart)
	return end, true
}

func openBackend(path string) (backend, int64, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, 0, false, forensicerr.New(forensicerr.PermissionDenied, "cannot open "+path, err)
		}
		if os.IsNotExist(err) {
			return nil, 0, false, forensicerr.New(forensicerr.DeviceNotFound, "no such device "+path, err)
		}
		return nil, 0, false, forensicerr.New(forensicerr.UnsupportedDevice, "cannot open "+path, err)
	}

	b := &fileBackend{f: f}
	size, ok := b.Size()
	return b, size, ok, nil
}

func canonicalize(identifier string) (string, Mode) {
	return identifier, Raw
}
