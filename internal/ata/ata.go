// Package ata describes the fixed binary structures exchanged with a
// storage driver when issuing ATA SMART and IDENTIFY commands, and
// converts them to and from wire bytes.
//
// All layouts are packed and little-endian. Sizes and offsets are spelled
// out as constants rather than derived from Go struct layout, so a driver
// expecting a different size makes the call fail instead of misparsing.
package ata

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LayoutVersion identifies the byte layouts declared in this package.
const LayoutVersion = 1

// ErrMalformedResponse is returned when response bytes do not match the
// expected structure size.
var ErrMalformedResponse = errors.New("malformed response")

// DriveCommand is the control code used to submit a parameter block to
// the storage driver.
type DriveCommand uint32

const (
	// SendDriveCommand issues a command that returns no data sector.
	SendDriveCommand DriveCommand = 0x0007C084
	// ReceiveDriveData issues a command that returns one data sector.
	ReceiveDriveData DriveCommand = 0x0007C088
)

func (c DriveCommand) String() string {
	switch c {
	case SendDriveCommand:
		return "send-drive-command"
	case ReceiveDriveData:
		return "receive-drive-data"
	default:
		return fmt.Sprintf("drive-command(0x%x)", uint32(c))
	}
}

// Register command values
const (
	SmartCmd byte = 0xB0
	IdCmd    byte = 0xEC
)

// Register feature values for SmartCmd
const (
	SmartReadData         byte = 0xD0
	SmartReadThresholds   byte = 0xD1
	SmartEnableOperations byte = 0xD8
)

// SMART commands must carry these values in the LBA mid/high registers.
const (
	SmartLBAMid  byte = 0x4F
	SmartLBAHigh byte = 0xC2
)

// SectorSize is the size of the single data sector returned by
// ReceiveDriveData commands.
const SectorSize = 512

// CommandBlockRegisters is the ATA task file submitted with a command.
type CommandBlockRegisters struct {
	Features    byte
	SectorCount byte
	LBALow      byte
	LBAMid      byte
	LBAHigh     byte
	Device      byte
	Command     byte
	Reserved    byte
}

const registersSize = 8

func (r CommandBlockRegisters) put(b []byte) {
	b[0] = r.Features
	b[1] = r.SectorCount
	b[2] = r.LBALow
	b[3] = r.LBAMid
	b[4] = r.LBAHigh
	b[5] = r.Device
	b[6] = r.Command
	b[7] = r.Reserved
}

func readRegisters(b []byte) CommandBlockRegisters {
	return CommandBlockRegisters{
		Features:    b[0],
		SectorCount: b[1],
		LBALow:      b[2],
		LBAMid:      b[3],
		LBAHigh:     b[4],
		Device:      b[5],
		Command:     b[6],
		Reserved:    b[7],
	}
}

// DriveCommandParameter layout
const (
	parameterBufferSizeOffset  = 0
	parameterRegistersOffset   = 4
	parameterDriveNumberOffset = 12
	parameterReservedOffset    = 13
	parameterReservedSize      = 20

	// DriveCommandParameterSize is the encoded size of a DriveCommandParameter.
	DriveCommandParameterSize = 33
)

// DriveCommandParameter is the request block for both drive commands.
type DriveCommandParameter struct {
	BufferSize  uint32
	Registers   CommandBlockRegisters
	DriveNumber byte
	Reserved    [parameterReservedSize]byte
}

// Encode returns the DriveCommandParameterSize byte encoding of p.
func (p DriveCommandParameter) Encode() []byte {
	b := make([]byte, DriveCommandParameterSize)
	binary.LittleEndian.PutUint32(b[parameterBufferSizeOffset:], p.BufferSize)
	p.Registers.put(b[parameterRegistersOffset : parameterRegistersOffset+registersSize])
	b[parameterDriveNumberOffset] = p.DriveNumber
	copy(b[parameterReservedOffset:], p.Reserved[:])
	return b
}

// DecodeDriveCommandParameter parses an encoded parameter block.
func DecodeDriveCommandParameter(b []byte) (DriveCommandParameter, error) {
	var p DriveCommandParameter
	if err := checkSize("drive command parameter", b, DriveCommandParameterSize); err != nil {
		return p, err
	}
	p.BufferSize = binary.LittleEndian.Uint32(b[parameterBufferSizeOffset:])
	p.Registers = readRegisters(b[parameterRegistersOffset:])
	p.DriveNumber = b[parameterDriveNumberOffset]
	copy(p.Reserved[:], b[parameterReservedOffset:])
	return p, nil
}

// Result header layout, shared by every response structure
const (
	resultBufferSizeOffset  = 0
	resultDriverErrorOffset = 4
	resultIDEErrorOffset    = 5
	resultReservedOffset    = 6
	resultReservedSize      = 10

	// ResultHeaderSize is the size of the header preceding response data.
	ResultHeaderSize = 16
)

// DriverStatus reports the driver's view of a completed command.
type DriverStatus struct {
	DriverError byte
	IDEError    byte
	Reserved    [resultReservedSize]byte
}

// ResultHeader starts every response structure.
type ResultHeader struct {
	BufferSize uint32
	Status     DriverStatus
}

// Put writes h into the first ResultHeaderSize bytes of b.
func (h ResultHeader) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[resultBufferSizeOffset:], h.BufferSize)
	b[resultDriverErrorOffset] = h.Status.DriverError
	b[resultIDEErrorOffset] = h.Status.IDEError
	copy(b[resultReservedOffset:ResultHeaderSize], h.Status.Reserved[:])
}

func readResultHeader(b []byte) ResultHeader {
	var h ResultHeader
	h.BufferSize = binary.LittleEndian.Uint32(b[resultBufferSizeOffset:])
	h.Status.DriverError = b[resultDriverErrorOffset]
	h.Status.IDEError = b[resultIDEErrorOffset]
	copy(h.Status.Reserved[:], b[resultReservedOffset:ResultHeaderSize])
	return h
}

// ResultSize returns the response size the driver produces for a request
// announcing bufferSize data bytes. The structure always carries at least
// one buffer byte.
func ResultSize(bufferSize uint32) int {
	if bufferSize == 0 {
		return ResultHeaderSize + 1
	}
	return ResultHeaderSize + int(bufferSize)
}

// DriveCommandResultSize is the encoded size of a DriveCommandResult.
const DriveCommandResultSize = ResultHeaderSize + 1

// DriveCommandResult is the response to SendDriveCommand.
type DriveCommandResult struct {
	ResultHeader
}

// DecodeDriveCommandResult parses the response to SendDriveCommand.
func DecodeDriveCommandResult(b []byte) (DriveCommandResult, error) {
	if err := checkSize("drive command result", b, DriveCommandResultSize); err != nil {
		return DriveCommandResult{}, err
	}
	return DriveCommandResult{ResultHeader: readResultHeader(b)}, nil
}

// Encode returns the wire encoding of r.
func (r DriveCommandResult) Encode() []byte {
	b := make([]byte, DriveCommandResultSize)
	r.ResultHeader.Put(b)
	return b
}

func checkSize(what string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%s: got %d bytes, want %d: %w", what, len(b), want, ErrMalformedResponse)
	}
	return nil
}
