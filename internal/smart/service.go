// Package smart reads SMART attribute and threshold tables and IDENTIFY
// strings from a drive over a raw device channel.
//
// Devices that reject a command are common (virtual disks, USB bridges,
// SAS drives), so the table reads report rejection as an empty result.
// Only use of a closed channel is returned as an error.
package smart

import (
	"errors"
	"fmt"

	"github.com/sigreer/hwgod/internal/ata"
	"github.com/sigreer/hwgod/internal/rawdev"
)

// Channel is the device command channel a Service issues commands over.
// *rawdev.Channel implements it.
type Channel interface {
	IsValid() bool
	SendCommand(code ata.DriveCommand, p ata.DriveCommandParameter) ([]byte, error)
	Close() error
}

// Identity holds the IDENTIFY DEVICE strings of a drive.
type Identity struct {
	Model    string
	Firmware string
	Serial   string
}

// Service issues SMART and IDENTIFY commands to one drive. It owns its
// channel; Close releases it.
type Service struct {
	ch          Channel
	driveNumber byte
}

// New returns a Service for the drive behind ch.
func New(ch Channel, driveNumber int) *Service {
	return &Service{ch: ch, driveNumber: byte(driveNumber)}
}

// IsValid reports whether the underlying channel is still usable.
func (s *Service) IsValid() bool {
	return s.ch.IsValid()
}

// Close releases the channel.
func (s *Service) Close() error {
	return s.ch.Close()
}

// deviceRegister selects master/slave on legacy controllers.
func (s *Service) deviceRegister() byte {
	return 0xA0 | (s.driveNumber&1)<<4
}

func (s *Service) smartParameter(feature byte, bufferSize uint32) ata.DriveCommandParameter {
	p := ata.DriveCommandParameter{
		BufferSize:  bufferSize,
		DriveNumber: s.driveNumber,
		Registers: ata.CommandBlockRegisters{
			Features: feature,
			LBAMid:   ata.SmartLBAMid,
			LBAHigh:  ata.SmartLBAHigh,
			Device:   s.deviceRegister(),
			Command:  ata.SmartCmd,
		},
	}
	if bufferSize > 0 {
		p.Registers.SectorCount = 1
		p.Registers.LBALow = 1
	}
	return p
}

// EnableSmart turns on SMART operations. False means the device does not
// support SMART; the error is only set for a closed channel.
func (s *Service) EnableSmart() (bool, error) {
	b, err := s.ch.SendCommand(ata.SendDriveCommand, s.smartParameter(ata.SmartEnableOperations, 0))
	if err != nil {
		if errors.Is(err, rawdev.ErrDisposed) {
			return false, err
		}
		return false, nil
	}
	if len(b) < ata.ResultHeaderSize {
		return false, nil
	}
	return true, nil
}

// ReadAttributeTable reads the SMART attribute table and returns the
// non-empty slots. Unlike ReadAttributes it returns the failure, so a
// rejecting device can be told apart from one with no attributes.
func (s *Service) ReadAttributeTable() ([]ata.DriveAttributeValue, error) {
	b, err := s.ch.SendCommand(ata.ReceiveDriveData, s.smartParameter(ata.SmartReadData, ata.SectorSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read SMART data: %w", err)
	}
	r, err := ata.DecodeDriveSmartReadDataResult(b)
	if err != nil {
		return nil, fmt.Errorf("failed to read SMART data: %w", err)
	}

	attrs := make([]ata.DriveAttributeValue, 0, ata.MaxDriveAttributes)
	for _, a := range r.Attributes {
		if a.ID != 0 {
			attrs = append(attrs, a)
		}
	}
	return attrs, nil
}

// ReadThresholdTable reads the SMART threshold table and returns the
// non-empty slots, or the failure.
func (s *Service) ReadThresholdTable() ([]ata.DriveThresholdValue, error) {
	b, err := s.ch.SendCommand(ata.ReceiveDriveData, s.smartParameter(ata.SmartReadThresholds, ata.SectorSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read SMART thresholds: %w", err)
	}
	r, err := ata.DecodeDriveSmartReadThresholdsResult(b)
	if err != nil {
		return nil, fmt.Errorf("failed to read SMART thresholds: %w", err)
	}

	thresholds := make([]ata.DriveThresholdValue, 0, ata.MaxDriveAttributes)
	for _, t := range r.Thresholds {
		if t.ID != 0 {
			thresholds = append(thresholds, t)
		}
	}
	return thresholds, nil
}

// ReadAttributes reads the SMART attribute table. A device that rejects
// the command yields an empty table.
func (s *Service) ReadAttributes() ([]ata.DriveAttributeValue, error) {
	attrs, err := s.ReadAttributeTable()
	if err != nil {
		if errors.Is(err, rawdev.ErrDisposed) {
			return nil, err
		}
		return []ata.DriveAttributeValue{}, nil
	}
	return attrs, nil
}

// ReadThresholds reads the SMART threshold table. A device that rejects
// the command yields an empty table.
func (s *Service) ReadThresholds() ([]ata.DriveThresholdValue, error) {
	thresholds, err := s.ReadThresholdTable()
	if err != nil {
		if errors.Is(err, rawdev.ErrDisposed) {
			return nil, err
		}
		return []ata.DriveThresholdValue{}, nil
	}
	return thresholds, nil
}

// ReadIdentity issues IDENTIFY DEVICE. On failure no field is set.
func (s *Service) ReadIdentity() (Identity, error) {
	p := ata.DriveCommandParameter{
		BufferSize:  ata.SectorSize,
		DriveNumber: s.driveNumber,
		Registers: ata.CommandBlockRegisters{
			SectorCount: 1,
			Device:      s.deviceRegister(),
			Command:     ata.IdCmd,
		},
	}

	b, err := s.ch.SendCommand(ata.ReceiveDriveData, p)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to identify drive: %w", err)
	}
	r, err := ata.DecodeDriveIdentifyResult(b)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to identify drive: %w", err)
	}

	model, err := ata.DecodeIdentityString(r.Identify.ModelNumber())
	if err != nil {
		return Identity{}, fmt.Errorf("failed to decode model: %w", err)
	}
	firmware, err := ata.DecodeIdentityString(r.Identify.FirmwareRevision())
	if err != nil {
		return Identity{}, fmt.Errorf("failed to decode firmware: %w", err)
	}
	serial, err := ata.DecodeIdentityString(r.Identify.SerialNumber())
	if err != nil {
		return Identity{}, fmt.Errorf("failed to decode serial: %w", err)
	}
	return Identity{Model: model, Firmware: firmware, Serial: serial}, nil
}
