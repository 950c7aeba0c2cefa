package ata

import "encoding/binary"

// MaxDriveAttributes is the number of attribute slots in a SMART table.
const MaxDriveAttributes = 30

// SMART data sector layout
const (
	smartVersionOffset = 0
	smartTableOffset   = 2
	smartEntrySize     = 12
	smartTableSize     = MaxDriveAttributes * smartEntrySize
	smartTailOffset    = smartTableOffset + smartTableSize
	smartTailSize      = SectorSize - smartTailOffset

	// DriveSmartReadDataResultSize is the encoded size of a DriveSmartReadDataResult.
	DriveSmartReadDataResultSize = ResultHeaderSize + SectorSize
	// DriveSmartReadThresholdsResultSize is the encoded size of a DriveSmartReadThresholdsResult.
	DriveSmartReadThresholdsResultSize = ResultHeaderSize + SectorSize
)

// DriveAttributeValue is one entry of the SMART attribute table.
type DriveAttributeValue struct {
	ID       byte
	Flags    uint16
	Value    byte // normalized current value
	Worst    byte
	Raw      [6]byte
	Reserved byte
}

// RawValue returns the 48-bit little-endian raw counter.
func (a DriveAttributeValue) RawValue() uint64 {
	var v uint64
	for i := len(a.Raw) - 1; i >= 0; i-- {
		v = v<<8 | uint64(a.Raw[i])
	}
	return v
}

func (a DriveAttributeValue) put(b []byte) {
	b[0] = a.ID
	binary.LittleEndian.PutUint16(b[1:], a.Flags)
	b[3] = a.Value
	b[4] = a.Worst
	copy(b[5:11], a.Raw[:])
	b[11] = a.Reserved
}

func readAttribute(b []byte) DriveAttributeValue {
	a := DriveAttributeValue{
		ID:       b[0],
		Flags:    binary.LittleEndian.Uint16(b[1:]),
		Value:    b[3],
		Worst:    b[4],
		Reserved: b[11],
	}
	copy(a.Raw[:], b[5:11])
	return a
}

// DriveThresholdValue is one entry of the SMART threshold table.
type DriveThresholdValue struct {
	ID        byte
	Threshold byte
	Reserved  [10]byte
}

func (t DriveThresholdValue) put(b []byte) {
	b[0] = t.ID
	b[1] = t.Threshold
	copy(b[2:smartEntrySize], t.Reserved[:])
}

func readThreshold(b []byte) DriveThresholdValue {
	t := DriveThresholdValue{ID: b[0], Threshold: b[1]}
	copy(t.Reserved[:], b[2:smartEntrySize])
	return t
}

// DriveSmartReadDataResult is the response to SMART READ DATA.
type DriveSmartReadDataResult struct {
	ResultHeader
	Version    uint16
	Attributes [MaxDriveAttributes]DriveAttributeValue
	Tail       [smartTailSize]byte
}

// DecodeDriveSmartReadDataResult parses the response to SMART READ DATA.
func DecodeDriveSmartReadDataResult(b []byte) (DriveSmartReadDataResult, error) {
	var r DriveSmartReadDataResult
	if err := checkSize("smart data result", b, DriveSmartReadDataResultSize); err != nil {
		return r, err
	}
	r.ResultHeader = readResultHeader(b)
	sector := b[ResultHeaderSize:]
	r.Version = binary.LittleEndian.Uint16(sector[smartVersionOffset:])
	for i := range r.Attributes {
		off := smartTableOffset + i*smartEntrySize
		r.Attributes[i] = readAttribute(sector[off : off+smartEntrySize])
	}
	copy(r.Tail[:], sector[smartTailOffset:])
	return r, nil
}

// Encode returns the wire encoding of r.
func (r DriveSmartReadDataResult) Encode() []byte {
	b := make([]byte, DriveSmartReadDataResultSize)
	r.ResultHeader.Put(b)
	sector := b[ResultHeaderSize:]
	binary.LittleEndian.PutUint16(sector[smartVersionOffset:], r.Version)
	for i, a := range r.Attributes {
		off := smartTableOffset + i*smartEntrySize
		a.put(sector[off : off+smartEntrySize])
	}
	copy(sector[smartTailOffset:], r.Tail[:])
	return b
}

// DriveSmartReadThresholdsResult is the response to SMART READ THRESHOLDS.
type DriveSmartReadThresholdsResult struct {
	ResultHeader
	Version    uint16
	Thresholds [MaxDriveAttributes]DriveThresholdValue
	Tail       [smartTailSize]byte
}

// DecodeDriveSmartReadThresholdsResult parses the response to SMART READ THRESHOLDS.
func DecodeDriveSmartReadThresholdsResult(b []byte) (DriveSmartReadThresholdsResult, error) {
	var r DriveSmartReadThresholdsResult
	if err := checkSize("smart thresholds result", b, DriveSmartReadThresholdsResultSize); err != nil {
		return r, err
	}
	r.ResultHeader = readResultHeader(b)
	sector := b[ResultHeaderSize:]
	r.Version = binary.LittleEndian.Uint16(sector[smartVersionOffset:])
	for i := range r.Thresholds {
		off := smartTableOffset + i*smartEntrySize
		r.Thresholds[i] = readThreshold(sector[off : off+smartEntrySize])
	}
	copy(r.Tail[:], sector[smartTailOffset:])
	return r, nil
}

// Encode returns the wire encoding of r.
func (r DriveSmartReadThresholdsResult) Encode() []byte {
	b := make([]byte, DriveSmartReadThresholdsResultSize)
	r.ResultHeader.Put(b)
	sector := b[ResultHeaderSize:]
	binary.LittleEndian.PutUint16(sector[smartVersionOffset:], r.Version)
	for i, t := range r.Thresholds {
		off := smartTableOffset + i*smartEntrySize
		t.put(sector[off : off+smartEntrySize])
	}
	copy(sector[smartTailOffset:], r.Tail[:])
	return b
}
