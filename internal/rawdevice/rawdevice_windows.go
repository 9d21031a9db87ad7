//go:build windows

package rawdevice

import (
	"regexp"
	"strings"

	"golang.org/x/sys/windows"

	"github.com/shubham/forensics/internal/forensicerr"
)

// windowsBackend is the raw-handle backend (spec.md §9 design notes): it
// opens \\.\PhysicalDriveN or \\.\X: with CreateFile and positions reads
// with SetFilePointer, chunked through chunkedRelativeSeek because older
//32-bit builds of this API family only accept an int32 displacement per
// call.
type windowsBackend struct {
	handle windows.Handle
	cursor int64
}

func (w *windowsBackend) seekAbsolute(target int64) error {
	_, err := chunkedRelativeSeek(func(delta int64) (int64, error) {
		var newPos int64
		hi := int32(delta >> 32)
		lo, err := windows.SetFilePointer(w.handle, int32(delta), &hi, windows.FILE_CURRENT)
		if err != nil {
			return 0, err
		}
		newPos = int64(hi)<<32 | int64(uint32(lo))
		return newPos, nil
	}, w.cursor, target)
	if err != nil {
		return err
	}
	w.cursor = target
	return nil
}

func (w *windowsBackend) ReadAt(buf []byte, offset int64) (int, error) {
	if err := w.seekAbsolute(offset); err != nil {
		return 0, forensicerr.New(forensicerr.IoError, "seek failed", err)
	}

	var n uint32
	err := windows.ReadFile(w.handle, buf, &n, nil)
	w.cursor += int64(n)
	if err != nil && err != windows.ERROR_HANDLE_EOF {
		return int(n), forensicerr.New(forensicerr.IoError, "ReadFile failed", err)
	}
	return int(n), nil
}

func (w *windowsBackend) Close() error {
	return windows.CloseHandle(w.handle)
}

func (w *windowsBackend) Size() (int64, bool) {
	var hi int32
	lo, err := windows.SetFilePointer(w.handle, 0, &hi, windows.FILE_END)
	if err != nil {
		return 0, false
	}
	size := int64(hi)<<32 | int64(uint32(lo))
	// The handle now sits at size; seek back from there to the logical
	// position.
	logical := w.cursor
	w.cursor = size
	w.seekAbsolute(logical)
	return size, true
}

func openBackend(path string) (backend, int64, bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, 0, false, forensicerr.New(forensicerr.UnsupportedDevice, "bad path "+path, err)
	}

	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		switch err {
		case windows.ERROR_ACCESS_DENIED:
			return nil, 0, false, forensicerr.New(forensicerr.PermissionDenied, "cannot open "+path, err)
		case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND:
			return nil, 0, false, forensicerr.New(forensicerr.DeviceNotFound, "no such device "+path, err)
		default:
			return nil, 0, false, forensicerr.New(forensicerr.UnsupportedDevice, "cannot open "+path, err)
		}
	}

	b := &windowsBackend{handle: h}
	size, ok := b.Size()
	return b, size, ok, nil
}

var driveLetter = regexp.MustCompile(`^[A-Za-z]:\\?$`)

// canonicalize maps a drive-letter identifier (e.g. "E:") to the volume
// device path. Raw PHYSICALDRIVE access requires enumerating partition
// tables (out of scope, spec.md §1); lacking that, a drive letter resolves
// to its volume handle, which yields Mounted mode. The orchestrator does
// not consult Device.Mode(), so every strategy still runs against it.
func canonicalize(identifier string) (string, Mode) {
	if strings.HasPrefix(identifier, `\\.\PHYSICALDRIVE`) || strings.HasPrefix(identifier, `\\.\PhysicalDrive`) {
		return identifier, Raw
	}
	if driveLetter.MatchString(identifier) {
		letter := strings.TrimSuffix(identifier, `\`)
		return `\\.\` + letter, Mounted
	}
	return identifier, Raw
}
