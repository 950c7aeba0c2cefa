package ata

import (
	"errors"
	"strings"
)

// ErrOddLength is returned when an identity string field has an odd
// number of bytes and cannot be split into 16-bit words.
var ErrOddLength = errors.New("identity string has odd length")

// Field offsets inside the 512-byte IDENTIFY DEVICE sector
const (
	identifySerialOffset   = 20
	identifySerialSize     = 20
	identifyFirmwareOffset = 46
	identifyFirmwareSize   = 8
	identifyModelOffset    = 54
	identifyModelSize      = 40

	// DriveIdentifyResultSize is the encoded size of a DriveIdentifyResult.
	DriveIdentifyResultSize = ResultHeaderSize + SectorSize
)

// IdentifyData is the raw IDENTIFY DEVICE sector.
type IdentifyData [SectorSize]byte

// SerialNumber returns the raw, word-swapped serial number field.
func (d *IdentifyData) SerialNumber() []byte {
	return d[identifySerialOffset : identifySerialOffset+identifySerialSize]
}

// FirmwareRevision returns the raw, word-swapped firmware revision field.
func (d *IdentifyData) FirmwareRevision() []byte {
	return d[identifyFirmwareOffset : identifyFirmwareOffset+identifyFirmwareSize]
}

// ModelNumber returns the raw, word-swapped model number field.
func (d *IdentifyData) ModelNumber() []byte {
	return d[identifyModelOffset : identifyModelOffset+identifyModelSize]
}

// DriveIdentifyResult is the response to an IdCmd.
type DriveIdentifyResult struct {
	ResultHeader
	Identify IdentifyData
}

// DecodeDriveIdentifyResult parses the response to an IdCmd.
func DecodeDriveIdentifyResult(b []byte) (DriveIdentifyResult, error) {
	var r DriveIdentifyResult
	if err := checkSize("identify result", b, DriveIdentifyResultSize); err != nil {
		return r, err
	}
	r.ResultHeader = readResultHeader(b)
	copy(r.Identify[:], b[ResultHeaderSize:])
	return r, nil
}

// Encode returns the wire encoding of r.
func (r DriveIdentifyResult) Encode() []byte {
	b := make([]byte, DriveIdentifyResultSize)
	r.ResultHeader.Put(b)
	copy(b[ResultHeaderSize:], r.Identify[:])
	return b
}

// DecodeIdentityString decodes an ATA string field. Each 16-bit word holds
// two characters with the first character in the high byte, so the bytes
// of every word are swapped before being read as ASCII. Surrounding spaces
// and NUL padding are removed.
func DecodeIdentityString(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", ErrOddLength
	}
	chars := make([]byte, len(b))
	for i := 0; i < len(b); i += 2 {
		chars[i] = b[i+1]
		chars[i+1] = b[i]
	}
	return strings.Trim(string(chars), " \x00"), nil
}

// EncodeIdentityString is the inverse of DecodeIdentityString for a field
// of the given size: s is space padded and word swapped. Characters past
// size are dropped.
func EncodeIdentityString(s string, size int) []byte {
	chars := make([]byte, size)
	for i := range chars {
		chars[i] = ' '
	}
	copy(chars, s)
	b := make([]byte, size)
	for i := 0; i+1 < size; i += 2 {
		b[i] = chars[i+1]
		b[i+1] = chars[i]
	}
	return b
}

// SetIdentity fills the serial, firmware and model fields of d.
func (d *IdentifyData) SetIdentity(serial, firmware, model string) {
	copy(d.SerialNumber(), EncodeIdentityString(serial, identifySerialSize))
	copy(d.FirmwareRevision(), EncodeIdentityString(firmware, identifyFirmwareSize))
	copy(d.ModelNumber(), EncodeIdentityString(model, identifyModelSize))
}
