// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package ablink

import (
	"errors"
	"fmt"
)

// Decode errors
var (
	ErrBadHeader    = errors.New("invalid message header")
	ErrBadChecksum  = errors.New("invalid checksum")
	ErrUnknownShape = errors.New("unrecognized message length")
)

// Message is a decoded inbound frame
type Message interface {
	message()
}

// HandshakeReply acknowledges one of the six handshake frames
type HandshakeReply struct {
	Raw []byte
}

// PostHandshakeReply acknowledges one of the two post-handshake frames
type PostHandshakeReply struct {
	Raw []byte
}

// RegisterReport carries a single (command, value) register update.
// External distinguishes changes originating from the IR handset (15 byte
// frame) from replies to our own read requests (17 byte frame). This is a
// low-confidence heuristic observed on one firmware revision, not a
// documented protocol signal.
type RegisterReport struct {
	Command  Command
	Value    uint8
	External bool
}

// ODUStatus is the outdoor unit diagnostic block. Temperatures are degrees
// Celsius; Load is a best-effort 0-100 percentage (raw 0-170 divided by
// 1.7); IAC is an unconfirmed decode, possibly EEV actuation.
type ODUStatus struct {
	TdTemp int8
	TsTemp int8
	TeTemp int8
	Load   float64
	IAC    uint8
}

// IDUStatus is the indoor unit diagnostic block
type IDUStatus struct {
	TcTemp  int8
	TcjTemp int8
	FanRPM  uint8
}

func (HandshakeReply) message()     {}
func (PostHandshakeReply) message() {}
func (RegisterReport) message()     {}
func (ODUStatus) message()          {}
func (IDUStatus) message()          {}

// Decode classifies a complete frame and extracts its payload.
// Handshake stage replies are passed through without checksum validation;
// data frames are checksum-checked and decoded by length. Frames with a
// valid header but a length the protocol reverse engineering does not cover
// return ErrUnknownShape.
func Decode(f *Frame) (Message, error) {
	raw := f.Bytes()

	switch f.Kind() {
	case KindHandshakeReply:
		return HandshakeReply{Raw: raw}, nil
	case KindPostHandshakeReply:
		return PostHandshakeReply{Raw: raw}, nil
	case KindData:
		// fall through to payload decode
	default:
		return nil, ErrBadHeader
	}

	if !f.ChecksumValid() {
		return nil, fmt.Errorf("%w: calculated 0x%02X, received 0x%02X",
			ErrBadChecksum, Checksum(raw[:len(raw)-1]), raw[len(raw)-1])
	}

	switch len(raw) {
	case LenReportExternal, LenReportQueried:
		return RegisterReport{
			Command:  Command(raw[len(raw)-3]),
			Value:    raw[len(raw)-2],
			External: len(raw) == LenReportExternal,
		}, nil

	case LenStatusBroadcast:
		return decodeStatus(raw, 12)

	case LenStatusQueried:
		return decodeStatus(raw, 14)
	}

	return nil, ErrUnknownShape
}

func decodeStatus(raw []byte, cmdOffset int) (Message, error) {
	switch Command(raw[cmdOffset]) {
	case CmdODUStatus:
		return ODUStatus{
			TdTemp: int8(raw[cmdOffset+1]),
			TsTemp: int8(raw[cmdOffset+2]),
			TeTemp: int8(raw[cmdOffset+3]),
			Load:   float64(raw[cmdOffset+4]) / ODULoadDivisor,
			IAC:    raw[cmdOffset+7],
		}, nil
	case CmdIDUStatus:
		return IDUStatus{
			TcTemp:  int8(raw[cmdOffset+1]),
			TcjTemp: int8(raw[cmdOffset+2]),
			FanRPM:  raw[cmdOffset+3],
		}, nil
	}
	return nil, ErrUnknownShape
}
