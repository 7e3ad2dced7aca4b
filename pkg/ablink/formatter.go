// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package ablink

import (
	"fmt"
	"strings"
)

// FormatFrame formats a complete frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")

	msg, err := Decode(f)
	if err != nil {
		return fmt.Sprintf("[%s] %s len=%d %s (%v)\n",
			timestamp, f.Kind(), f.Len(), FormatHex(f.Bytes()), err)
	}

	result := fmt.Sprintf("[%s] %s len=%d\n", timestamp, FormatMessage(msg), f.Len())
	return result
}

// FormatMessage renders a decoded message on one line
func FormatMessage(msg Message) string {
	switch m := msg.(type) {
	case HandshakeReply:
		return fmt.Sprintf("HANDSHAKE_REPLY %s", FormatHex(m.Raw))
	case PostHandshakeReply:
		return fmt.Sprintf("POST_HANDSHAKE_REPLY %s", FormatHex(m.Raw))
	case RegisterReport:
		origin := "own query"
		if m.External {
			origin = "external"
		}
		return fmt.Sprintf("%s (0x%02X) = %s [%s]",
			m.Command, uint8(m.Command), formatRegisterValue(m.Command, m.Value), origin)
	case ODUStatus:
		return fmt.Sprintf("ODU_STATUS td=%d°C ts=%d°C te=%d°C load=%.1f%% iac=%d",
			m.TdTemp, m.TsTemp, m.TeTemp, m.Load, m.IAC)
	case IDUStatus:
		return fmt.Sprintf("IDU_STATUS tc=%d°C tcj=%d°C fan=%d rpm",
			m.TcTemp, m.TcjTemp, m.FanRPM)
	default:
		return "UNKNOWN"
	}
}

// formatRegisterValue decodes a register value by command semantics
func formatRegisterValue(cmd Command, value uint8) string {
	switch cmd {
	case CmdPowerState:
		return PowerState(value).String()
	case CmdMode:
		return Mode(value).String()
	case CmdFanMode:
		return FanMode(value).String()
	case CmdSwingMode:
		return SwingMode(value).String()
	case CmdSpecialMode:
		return SpecialMode(value).String()
	case CmdPowerSelect:
		return PowerSelect(value).String()
	case CmdIonizer:
		switch value {
		case IonizerOn:
			return "ON"
		case IonizerOff:
			return "OFF"
		}
		return fmt.Sprintf("0x%02X", value)
	case CmdTargetTemperature:
		return fmt.Sprintf("%d°C", value)
	case CmdRoomTemperature, CmdOutdoorTemperature:
		return fmt.Sprintf("%d°C", int8(value))
	default:
		return fmt.Sprintf("0x%02X", value)
	}
}

// FormatHex renders bytes as space-separated uppercase hex
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
