// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

// Package ablink implements the proprietary serial protocol spoken on the
// AB header between a Toshiba indoor unit and its control module.
//
// The protocol is reverse-engineered: frames are variable-length binary
// messages with a length field at offset 6 and a trailing two's-complement
// checksum. The unit emits unsolicited register reports; the controller
// side issues read and write register requests. There are no message IDs,
// so request/response correlation is purely by value and timing.
package ablink

// Frame layout
const (
	SyncByte      = 0x02
	LengthOffset  = 6   // payload length field
	FrameOverhead = 8   // 6 header bytes + length byte + checksum
	MinFrameSize  = 7   // enough to read the length field
	MaxFrameSize  = 255 // buffer overflow threshold
)

// Header markers. A frame whose first three bytes are 02 00 03 carries
// register or status data. Anything else is only recognized as a handshake
// stage reply via the marker at offset 3.
const (
	dataHeader1 = 0x02
	dataHeader2 = 0x00
	dataHeader3 = 0x03

	HandshakeReplyMarker     = 0x80
	PostHandshakeReplyMarker = 0x82
)

// Recognized data frame lengths. 15 and 17 byte frames carry a single
// register report; the 17 byte shape is what the unit sends in reply to our
// own read requests, the 15 byte shape accompanies external changes
// (IR handset). 22 and 24 byte frames carry extended status blocks.
const (
	LenReportExternal  = 15
	LenReportQueried   = 17
	LenStatusBroadcast = 22
	LenStatusQueried   = 24
)

// Command identifies a device register.
type Command uint8

// Register command codes
const (
	CmdPowerState         Command = 0x80
	CmdPowerSelect        Command = 0x87
	CmdFanMode            Command = 0xA0
	CmdSwingMode          Command = 0xA3
	CmdMode               Command = 0xB0
	CmdTargetTemperature  Command = 0xB3
	CmdRoomTemperature    Command = 0xBB
	CmdOutdoorTemperature Command = 0xBE
	CmdIonizer            Command = 0xC7
	CmdIDUStatus          Command = 0xE4
	CmdODUStatus          Command = 0xE5
	CmdSpecialMode        Command = 0xF7
)

// PowerState represents the unit's on/off register
type PowerState uint8

// Power state values
const (
	PowerOn  PowerState = 0x30
	PowerOff PowerState = 0x31
)

// Mode represents the operating mode register
type Mode uint8

// Operating mode values
const (
	ModeHeatCool Mode = 0x41
	ModeCool     Mode = 0x42
	ModeHeat     Mode = 0x43
	ModeDry      Mode = 0x44
	ModeFanOnly  Mode = 0x45
)

// FanMode represents the fan speed register
type FanMode uint8

// Fan speed values
const (
	FanQuiet      FanMode = 0x31
	FanLow        FanMode = 0x32
	FanLowMedium  FanMode = 0x33
	FanMedium     FanMode = 0x34
	FanMediumHigh FanMode = 0x35
	FanHigh       FanMode = 0x36
	FanAuto       FanMode = 0x41
)

// SwingMode represents the louver register
type SwingMode uint8

// Swing mode values
const (
	SwingOff        SwingMode = 0x31
	SwingVertical   SwingMode = 0x41
	SwingHorizontal SwingMode = 0x42
	SwingBoth       SwingMode = 0x43
	SwingFixed1     SwingMode = 0x50
	SwingFixed2     SwingMode = 0x51
	SwingFixed3     SwingMode = 0x52
	SwingFixed4     SwingMode = 0x53
	SwingFixed5     SwingMode = 0x54
)

// SpecialMode represents the vendor merit mode register
type SpecialMode uint8

// Special mode values. EightDegrees is the extended low-temperature heating
// mode; while it is active the target temperature register is offset by +16.
const (
	SpecialStandard     SpecialMode = 0x00
	SpecialHighPower    SpecialMode = 0x01
	SpecialSilent1      SpecialMode = 0x02
	SpecialEco          SpecialMode = 0x03
	SpecialEightDegrees SpecialMode = 0x04
	SpecialSleepCare    SpecialMode = 0x05
	SpecialFloor        SpecialMode = 0x06
	SpecialComfort      SpecialMode = 0x07
	SpecialSilent2      SpecialMode = 0x0A
	SpecialFireplace1   SpecialMode = 0x20
	SpecialFireplace2   SpecialMode = 0x30
)

// PowerSelect represents the power-limit register
type PowerSelect uint8

// Power limit values
const (
	Power50  PowerSelect = 0x32
	Power75  PowerSelect = 0x4B
	Power100 PowerSelect = 0x64
)

// Ionizer register values
const (
	IonizerOn  uint8 = 0x18
	IonizerOff uint8 = 0x10
)

// cduLoad arrives as a 0-170 raw value; dividing by 1.7 maps it onto a 0-100
// percentage. Best-effort decode, the vendor calls this register "cduHz" but
// the range does not match a compressor frequency.
const ODULoadDivisor = 1.7

// Handshake returns the fixed six-frame link establishment sequence.
// The byte values are captured from the vendor module and must be sent
// verbatim; the unit ignores register traffic until it has seen them.
func Handshake() [][]byte {
	return [][]byte{
		{0x02, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x02},
		{0x02, 0xFF, 0xFF, 0x01, 0x00, 0x00, 0x01, 0x02, 0xFE},
		{0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x02, 0x02, 0xFA},
		{0x02, 0x00, 0x01, 0x81, 0x01, 0x00, 0x02, 0x00, 0x00, 0x7B},
		{0x02, 0x00, 0x01, 0x02, 0x00, 0x00, 0x02, 0x00, 0x00, 0xFE},
		{0x02, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0xFE},
	}
}

// PostHandshake returns the two-frame sequence sent 3 seconds after the
// handshake, completing link establishment.
func PostHandshake() [][]byte {
	return [][]byte{
		{0x02, 0x00, 0x02, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0xFB},
		{0x02, 0x00, 0x02, 0x02, 0x00, 0x00, 0x02, 0x00, 0x00, 0xFA},
	}
}

func (c Command) String() string {
	switch c {
	case CmdPowerState:
		return "POWER_STATE"
	case CmdPowerSelect:
		return "POWER_SELECT"
	case CmdFanMode:
		return "FAN_MODE"
	case CmdSwingMode:
		return "SWING_MODE"
	case CmdMode:
		return "MODE"
	case CmdTargetTemperature:
		return "TARGET_TEMPERATURE"
	case CmdRoomTemperature:
		return "ROOM_TEMPERATURE"
	case CmdOutdoorTemperature:
		return "OUTDOOR_TEMPERATURE"
	case CmdIonizer:
		return "IONIZER"
	case CmdIDUStatus:
		return "IDU_STATUS"
	case CmdODUStatus:
		return "ODU_STATUS"
	case CmdSpecialMode:
		return "SPECIAL_MODE"
	default:
		return "UNKNOWN"
	}
}

func (m Mode) String() string {
	switch m {
	case ModeHeatCool:
		return "HEAT_COOL"
	case ModeCool:
		return "COOL"
	case ModeHeat:
		return "HEAT"
	case ModeDry:
		return "DRY"
	case ModeFanOnly:
		return "FAN_ONLY"
	default:
		return "UNKNOWN"
	}
}

func (p PowerState) String() string {
	switch p {
	case PowerOn:
		return "ON"
	case PowerOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

func (f FanMode) String() string {
	switch f {
	case FanQuiet:
		return "QUIET"
	case FanLow:
		return "LOW"
	case FanLowMedium:
		return "LOW_MEDIUM"
	case FanMedium:
		return "MEDIUM"
	case FanMediumHigh:
		return "MEDIUM_HIGH"
	case FanHigh:
		return "HIGH"
	case FanAuto:
		return "AUTO"
	default:
		return "UNKNOWN"
	}
}

func (s SwingMode) String() string {
	switch s {
	case SwingOff:
		return "OFF"
	case SwingVertical:
		return "VERTICAL"
	case SwingHorizontal:
		return "HORIZONTAL"
	case SwingBoth:
		return "VERTICAL_AND_HORIZONTAL"
	case SwingFixed1:
		return "FIXED_1"
	case SwingFixed2:
		return "FIXED_2"
	case SwingFixed3:
		return "FIXED_3"
	case SwingFixed4:
		return "FIXED_4"
	case SwingFixed5:
		return "FIXED_5"
	default:
		return "UNKNOWN"
	}
}

func (s SpecialMode) String() string {
	switch s {
	case SpecialStandard:
		return "STANDARD"
	case SpecialHighPower:
		return "HIGH_POWER"
	case SpecialSilent1:
		return "SILENT_1"
	case SpecialEco:
		return "ECO"
	case SpecialEightDegrees:
		return "EIGHT_DEGREES"
	case SpecialSleepCare:
		return "SLEEP_CARE"
	case SpecialFloor:
		return "FLOOR"
	case SpecialComfort:
		return "COMFORT"
	case SpecialSilent2:
		return "SILENT_2"
	case SpecialFireplace1:
		return "FIREPLACE_1"
	case SpecialFireplace2:
		return "FIREPLACE_2"
	default:
		return "UNKNOWN"
	}
}

func (p PowerSelect) String() string {
	switch p {
	case Power50:
		return "50%"
	case Power75:
		return "75%"
	case Power100:
		return "100%"
	default:
		return "UNKNOWN"
	}
}
