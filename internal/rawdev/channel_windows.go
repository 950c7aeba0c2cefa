//go:build windows

package rawdev

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"github.com/sigreer/hwgod/internal/ata"
)

type ioctlTransport struct {
	handle windows.Handle
}

func openTransport(path string) (transport, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		switch {
		case errors.Is(err, windows.ERROR_FILE_NOT_FOUND), errors.Is(err, windows.ERROR_PATH_NOT_FOUND):
			return nil, fmt.Errorf("%s does not exist: %w", path, ErrDeviceUnavailable)
		case errors.Is(err, windows.ERROR_ACCESS_DENIED):
			return nil, fmt.Errorf("%s access denied (requires administrator): %w", path, ErrDeviceUnavailable)
		case errors.Is(err, windows.ERROR_SHARING_VIOLATION):
			return nil, fmt.Errorf("%s is exclusively held: %w", path, ErrDeviceUnavailable)
		}
		return nil, err
	}
	return &ioctlTransport{handle: h}, nil
}

// do passes the parameter block straight to the storage driver; the
// structures in package ata are its native SMART IOCTL layouts.
// DeviceIoControl has no timeout, so only the channel watchdog bounds it.
func (t *ioctlTransport) do(code ata.DriveCommand, in, out []byte, _ time.Duration) (int, error) {
	var returned uint32
	err := windows.DeviceIoControl(t.handle, uint32(code),
		&in[0], uint32(len(in)),
		&out[0], uint32(len(out)),
		&returned, nil)
	if err != nil {
		return 0, fmt.Errorf("DeviceIoControl: %v: %w", err, ErrCommandFailed)
	}
	return int(returned), nil
}

func (t *ioctlTransport) close() error {
	return windows.CloseHandle(t.handle)
}
