// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package ablink

// Request builder functions produce fully checksummed outbound frames.
// The fixed prefix bytes are captured from the vendor module; only the
// length field, request type, command and value vary.

// ReadRequest builds a register read request frame (14 bytes)
func ReadRequest(cmd Command) []byte {
	msg := []byte{
		0x02, 0x00, 0x03, 0x10, 0x00, 0x00, 0x06,
		0x01, 0x30, 0x01, 0x00, 0x01, uint8(cmd),
	}
	return append(msg, Checksum(msg))
}

// WriteRequest builds a register write request frame (15 bytes)
func WriteRequest(cmd Command, value uint8) []byte {
	msg := []byte{
		0x02, 0x00, 0x03, 0x10, 0x00, 0x00, 0x07,
		0x01, 0x30, 0x01, 0x00, 0x02, uint8(cmd), value,
	}
	return append(msg, Checksum(msg))
}
