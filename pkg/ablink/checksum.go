// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package ablink

// Checksum computes the frame checksum: the two's-complement of the
// mod-256 sum of all bytes after the leading sync byte.
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data[1:] {
		sum += b
	}
	return -sum
}
