// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

// Package aircon implements the control core for a bridged indoor unit:
// the device register mirror, outbound command sequencing, the startup
// handshake, the smart thermostat loop and the mode policy rules.
//
// The core is single-threaded and tick-driven. One Tick handles a bounded
// number of inbound bytes, at most one outbound transmission, and the
// thermostat loop when its period has elapsed. Nothing blocks; all waiting
// is expressed as deadline checks against a monotonic millisecond clock.
package aircon

import "time"

// ByteIO is the byte transport boundary. ReadByte must not block: it
// returns false when no byte is currently available.
type ByteIO interface {
	ReadByte() (byte, bool)
	Write(p []byte) error
}

// Clock supplies monotonic milliseconds. The core never reads wall time;
// injecting the clock keeps every timer deterministic under test.
type Clock interface {
	Millis() int64
}

// ExternalSensor supplies the room temperature when the unit's built-in
// thermistor is not the selected source. Read returns false when no
// reading is available.
type ExternalSensor interface {
	Read() (float64, bool)
}

// Sink receives the externally visible state after every change. The host
// entity layer implements this; the core never depends on its framework.
type Sink interface {
	Publish(Snapshot)
}

// WallClock is the production Clock, anchored at construction
type WallClock struct {
	start time.Time
}

// NewWallClock creates a monotonic clock starting at zero
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Millis returns milliseconds since construction
func (w *WallClock) Millis() int64 {
	return time.Since(w.start).Milliseconds()
}
