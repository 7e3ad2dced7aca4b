// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package ablink

import "time"

// FrameKind classifies a complete frame by its header bytes
type FrameKind int

// Frame kinds
const (
	KindUnknown FrameKind = iota
	KindData
	KindHandshakeReply
	KindPostHandshakeReply
)

// Frame is a complete, length-validated message as received from the wire.
// Checksum validation is separate: handshake replies do not carry the data
// frame checksum discipline and are identified by header alone.
type Frame struct {
	raw       []byte
	timestamp time.Time
}

// NewFrame wraps a complete raw frame. The slice is copied.
func NewFrame(raw []byte) *Frame {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &Frame{raw: buf, timestamp: time.Now()}
}

// Bytes returns the raw frame bytes
func (f *Frame) Bytes() []byte {
	return f.raw
}

// Len returns the total frame length
func (f *Frame) Len() int {
	return len(f.raw)
}

// Timestamp returns the time the frame completed assembly
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Kind classifies the frame by header
func (f *Frame) Kind() FrameKind {
	if len(f.raw) < 4 {
		return KindUnknown
	}
	if f.raw[0] == dataHeader1 && f.raw[1] == dataHeader2 && f.raw[2] == dataHeader3 {
		return KindData
	}
	switch f.raw[3] {
	case HandshakeReplyMarker:
		return KindHandshakeReply
	case PostHandshakeReplyMarker:
		return KindPostHandshakeReply
	}
	return KindUnknown
}

// ChecksumValid recomputes the trailing checksum and compares it
func (f *Frame) ChecksumValid() bool {
	n := len(f.raw)
	if n < 2 {
		return false
	}
	return Checksum(f.raw[:n-1]) == f.raw[n-1]
}

func (k FrameKind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindHandshakeReply:
		return "HANDSHAKE_REPLY"
	case KindPostHandshakeReply:
		return "POST_HANDSHAKE_REPLY"
	default:
		return "UNKNOWN"
	}
}
