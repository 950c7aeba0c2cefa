package hardware

import "errors"

var (
	// ErrDeviceGone is returned by a Device update when the underlying
	// hardware has vanished. The owner removes the node.
	ErrDeviceGone = errors.New("device gone")

	// ErrClosed is returned for operations on a closed node or group.
	ErrClosed = errors.New("closed")
)

// HardwareType tags the kind of device a node represents.
type HardwareType int

const (
	TypeMainboard HardwareType = iota
	TypeCPU
	TypeRAM
	TypeGPU
	TypeHDD
	TypeThermal
	TypeController
)

func (t HardwareType) String() string {
	switch t {
	case TypeMainboard:
		return "mainboard"
	case TypeCPU:
		return "cpu"
	case TypeRAM:
		return "ram"
	case TypeGPU:
		return "gpu"
	case TypeHDD:
		return "hdd"
	case TypeThermal:
		return "thermal"
	case TypeController:
		return "controller"
	default:
		return "unknown"
	}
}

// SensorType is the quantity kind a sensor measures.
type SensorType int

const (
	SensorVoltage SensorType = iota
	SensorClock
	SensorTemperature
	SensorLoad
	SensorFan
	SensorFlow
	SensorControl
	SensorLevel
	SensorFactor
	SensorPower
	SensorData
	SensorSmallData
	SensorRawValue
)

// String returns the identifier segment for the type.
func (t SensorType) String() string {
	switch t {
	case SensorVoltage:
		return "voltage"
	case SensorClock:
		return "clock"
	case SensorTemperature:
		return "temperature"
	case SensorLoad:
		return "load"
	case SensorFan:
		return "fan"
	case SensorFlow:
		return "flow"
	case SensorControl:
		return "control"
	case SensorLevel:
		return "level"
	case SensorFactor:
		return "factor"
	case SensorPower:
		return "power"
	case SensorData:
		return "data"
	case SensorSmallData:
		return "smalldata"
	case SensorRawValue:
		return "rawvalue"
	default:
		return "unknown"
	}
}

// Unit returns the display unit for values of the type.
func (t SensorType) Unit() string {
	switch t {
	case SensorVoltage:
		return "V"
	case SensorClock:
		return "MHz"
	case SensorTemperature:
		return "°C"
	case SensorLoad, SensorControl, SensorLevel:
		return "%"
	case SensorFan:
		return "RPM"
	case SensorFlow:
		return "L/h"
	case SensorPower:
		return "W"
	case SensorData:
		return "GB"
	case SensorSmallData:
		return "MB"
	default:
		return ""
	}
}

// Settings is the persistence collaborator for per-identifier options.
// Keys are built with SettingKey.
type Settings interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
