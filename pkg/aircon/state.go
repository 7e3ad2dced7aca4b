// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import "github.com/coilworks/sirocco/pkg/ablink"

// ClimateMode is the externally visible operating mode. Unlike the wire
// protocol, which encodes power state and mode in separate registers, the
// visible mode folds "powered off" into the mode itself.
type ClimateMode int

// Visible operating modes
const (
	ClimateOff ClimateMode = iota
	ClimateHeatCool
	ClimateCool
	ClimateHeat
	ClimateDry
	ClimateFanOnly
)

func (m ClimateMode) String() string {
	switch m {
	case ClimateOff:
		return "off"
	case ClimateHeatCool:
		return "heat_cool"
	case ClimateCool:
		return "cool"
	case ClimateHeat:
		return "heat"
	case ClimateDry:
		return "dry"
	case ClimateFanOnly:
		return "fan_only"
	default:
		return "unknown"
	}
}

// Diagnostics mirrors the extended status registers. The outdoor load and
// IAC values are best-effort decodes of reverse-engineered fields.
type Diagnostics struct {
	ODUTdTemp int8
	ODUTsTemp int8
	ODUTeTemp int8
	ODULoad   float64
	ODUIAC    uint8

	IDUTcTemp  int8
	IDUTcjTemp int8
	IDUFanRPM  uint8

	IDUAirTemp  int8
	IDUSetpoint uint8
}

// Snapshot is the externally visible state published to the Sink after
// every change. It is a value type; receivers may retain it freely.
type Snapshot struct {
	Ready bool

	Mode               ClimateMode
	TargetTemperature  float64
	CurrentTemperature float64
	FanMode            ablink.FanMode
	SwingMode          ablink.SwingMode
	SpecialMode        ablink.SpecialMode
	PowerSelect        ablink.PowerSelect
	Ionizer            bool

	// UseInternalThermistor selects the unit's built-in sensor as the
	// temperature source. When false the smart thermostat loop owns the
	// device setpoint register and the visible setpoint.
	UseInternalThermistor bool

	OutdoorTemperature float64
	SupportedModes     []ClimateMode
	Diagnostics        Diagnostics
}

// deviceState is the internal mirror of the last known register values.
// It tracks the hardware's view, which can differ from the visible
// Snapshot: the visible setpoint stays fixed while the thermostat loop
// walks the device register around it.
type deviceState struct {
	power   ablink.PowerState
	fan     ablink.FanMode
	swing   ablink.SwingMode
	special ablink.SpecialMode
	limit   ablink.PowerSelect
	target  uint8 // device setpoint, low-temperature offset removed
	room    int8  // built-in thermistor reading
}

func newDeviceState() deviceState {
	return deviceState{
		power:   ablink.PowerOff,
		fan:     ablink.FanMedium,
		swing:   ablink.SwingOff,
		special: ablink.SpecialStandard,
		limit:   ablink.Power100,
		target:  20,
	}
}

// supportedModes returns the advertised capability set. The core exposes a
// fixed superset regardless of the attached model; only the cooling-disable
// policy restricts it.
func supportedModes(disableCooling bool) []ClimateMode {
	if disableCooling {
		return []ClimateMode{ClimateOff, ClimateHeat, ClimateFanOnly}
	}
	return []ClimateMode{
		ClimateOff, ClimateHeatCool, ClimateCool,
		ClimateHeat, ClimateDry, ClimateFanOnly,
	}
}
