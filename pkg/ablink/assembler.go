// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package ablink

import "fmt"

// Receive-silence after which a partial frame is discarded. Handles
// mid-frame cable noise and power-up garbage: the next byte starts a
// fresh frame.
const ResyncTimeoutMillis = 200

// Assembler accumulates inbound bytes into complete frames. The protocol
// has no start/stop framing; a frame is complete exactly when the length
// field at offset 6 plus the fixed overhead matches the accumulated count.
//
// Time is supplied by the caller as monotonic milliseconds so the assembler
// stays clock-agnostic and deterministic under test.
type Assembler struct {
	buf        []byte
	lastRecvMs int64
}

// NewAssembler creates an empty frame assembler
func NewAssembler() *Assembler {
	return &Assembler{buf: make([]byte, 0, MaxFrameSize)}
}

// Push feeds one received byte at the given monotonic time.
// Returns a complete frame, or nil while the frame is still partial.
// Returns an error on buffer overflow; the partial frame is discarded.
func (a *Assembler) Push(b byte, nowMs int64) (*Frame, error) {
	a.lastRecvMs = nowMs
	a.buf = append(a.buf, b)

	if len(a.buf) > MaxFrameSize {
		a.buf = a.buf[:0]
		return nil, fmt.Errorf("rx buffer overflow")
	}

	if len(a.buf) >= MinFrameSize && int(a.buf[LengthOffset])+FrameOverhead == len(a.buf) {
		frame := NewFrame(a.buf)
		a.buf = a.buf[:0]
		return frame, nil
	}

	return nil, nil
}

// CheckTimeout discards a partial frame once ResyncTimeoutMillis of receive
// silence has passed. Returns the number of bytes dropped, zero when no
// resynchronization was needed.
func (a *Assembler) CheckTimeout(nowMs int64) int {
	if len(a.buf) == 0 || nowMs-a.lastRecvMs < ResyncTimeoutMillis {
		return 0
	}
	n := len(a.buf)
	a.buf = a.buf[:0]
	return n
}

// Pending reports whether a partial frame is currently being assembled.
// The transmitter must stay quiet while this is true.
func (a *Assembler) Pending() bool {
	return len(a.buf) > 0
}

// LastReceiveMillis returns the monotonic time of the most recent byte
func (a *Assembler) LastReceiveMillis() int64 {
	return a.lastRecvMs
}

// Reset discards any partial frame
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}
