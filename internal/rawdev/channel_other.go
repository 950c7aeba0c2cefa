//go:build !linux && !windows

package rawdev

import (
	"fmt"
	"runtime"
)

func openTransport(path string) (transport, error) {
	return nil, fmt.Errorf("%s: no raw drive channel on %s: %w", path, runtime.GOOS, ErrDeviceUnavailable)
}
