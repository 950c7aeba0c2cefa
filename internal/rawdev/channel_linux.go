//go:build linux

package rawdev

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sigreer/hwgod/internal/ata"
)

// SG_IO constants from include/scsi/sg.h. These are stable kernel ABI.
const (
	sgIO = 0x2285

	sgInterfaceID = 'S'

	sgDxferNone    = -1
	sgDxferFromDev = -3

	sgInfoOkMask = 0x1
	sgInfoOk     = 0x0

	// ATA PASS-THROUGH (16) from the SAT specification
	ataPassThrough16 = 0x85
	ataProtoNonData  = 3 << 1
	ataProtoPIOIn    = 4 << 1

	// t_dir=from device, byt_blok=blocks, t_length=sector count field
	ataFlagsPIOIn = 0x0e

	senseBufferSize = 32
)

// sgIoHdr mirrors struct sg_io_hdr from include/scsi/sg.h. Go's natural
// alignment matches the C layout on every Linux architecture.
type sgIoHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         *byte
	cmdp           *byte
	sbp            *byte
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         *byte
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

type sgTransport struct {
	fd int
}

func openTransport(path string) (transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		switch {
		case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENXIO), errors.Is(err, unix.ENODEV):
			return nil, fmt.Errorf("%s does not exist: %w", path, ErrDeviceUnavailable)
		case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
			return nil, fmt.Errorf("%s access denied (requires root): %w", path, ErrDeviceUnavailable)
		case errors.Is(err, unix.EBUSY):
			return nil, fmt.Errorf("%s is exclusively held: %w", path, ErrDeviceUnavailable)
		}
		return nil, err
	}
	return &sgTransport{fd: fd}, nil
}

// do translates the drive command parameter block into an ATA
// PASS-THROUGH (16) CDB and submits it with SG_IO. The response is laid
// out like the driver result structures: a result header followed by the
// data sector.
func (s *sgTransport) do(code ata.DriveCommand, in, out []byte, timeout time.Duration) (int, error) {
	p, err := ata.DecodeDriveCommandParameter(in)
	if err != nil {
		return 0, err
	}
	r := p.Registers

	var cdb [16]byte
	cdb[0] = ataPassThrough16
	cdb[4] = r.Features
	cdb[6] = r.SectorCount
	cdb[8] = r.LBALow
	cdb[10] = r.LBAMid
	cdb[12] = r.LBAHigh
	cdb[13] = r.Device
	cdb[14] = r.Command

	var sense [senseBufferSize]byte
	hdr := sgIoHdr{
		interfaceID: sgInterfaceID,
		cmdLen:      uint8(len(cdb)),
		mxSbLen:     senseBufferSize,
		cmdp:        &cdb[0],
		sbp:         &sense[0],
		timeout:     uint32(timeout / time.Millisecond),
	}

	var data []byte
	switch code {
	case ata.ReceiveDriveData:
		if p.BufferSize == 0 {
			return 0, fmt.Errorf("receive with empty buffer: %w", ErrCommandFailed)
		}
		if cdb[6] == 0 {
			cdb[6] = 1
		}
		cdb[1] = ataProtoPIOIn
		cdb[2] = ataFlagsPIOIn
		data = make([]byte, p.BufferSize)
		hdr.dxferDirection = sgDxferFromDev
		hdr.dxferLen = uint32(len(data))
		hdr.dxferp = &data[0]
	case ata.SendDriveCommand:
		cdb[1] = ataProtoNonData
		hdr.dxferDirection = sgDxferNone
	default:
		return 0, fmt.Errorf("unsupported drive command %s: %w", code, ErrCommandFailed)
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(s.fd), uintptr(sgIO), uintptr(unsafe.Pointer(&hdr)))
	if errno != 0 {
		return 0, fmt.Errorf("SG_IO: %v: %w", errno, ErrCommandFailed)
	}
	if hdr.info&sgInfoOkMask != sgInfoOk || hdr.status != 0 || hdr.hostStatus != 0 || hdr.driverStatus != 0 {
		return 0, fmt.Errorf("SG_IO status 0x%x host 0x%x driver 0x%x: %w",
			hdr.status, hdr.hostStatus, hdr.driverStatus, ErrCommandFailed)
	}
	if hdr.resid != 0 {
		return 0, fmt.Errorf("SG_IO short transfer, %d bytes missing: %w", hdr.resid, ErrCommandFailed)
	}

	ata.ResultHeader{BufferSize: uint32(len(data))}.Put(out)
	n := ata.ResultHeaderSize + copy(out[ata.ResultHeaderSize:], data)
	if len(data) == 0 {
		n = len(out)
	}
	return n, nil
}

func (s *sgTransport) close() error {
	return unix.Close(s.fd)
}
