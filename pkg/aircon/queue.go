// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import "github.com/coilworks/sirocco/pkg/ablink"

// Transmit gating. The protocol has no explicit turn-taking; staying quiet
// for 100 ms around any receive activity approximates half-duplex
// discipline and avoids colliding with unsolicited reports.
const (
	txMinIntervalMillis = 100
	rxQuietMillis       = 100
)

// CommandQueue serializes outbound frames. FIFO, no de-duplication:
// redundant requests are allowed on purpose, they re-confirm state.
// Frames are fire-and-forget; nothing ties a request to a later response.
type CommandQueue struct {
	frames     [][]byte
	lastSentMs int64
}

// NewCommandQueue creates an empty outbound queue
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Enqueue appends a prebuilt frame (handshake sequences)
func (q *CommandQueue) Enqueue(frame []byte) {
	q.frames = append(q.frames, frame)
}

// EnqueueRead appends a register read request
func (q *CommandQueue) EnqueueRead(cmd ablink.Command) {
	q.frames = append(q.frames, ablink.ReadRequest(cmd))
}

// EnqueueWrite appends a register write request
func (q *CommandQueue) EnqueueWrite(cmd ablink.Command, value uint8) {
	q.frames = append(q.frames, ablink.WriteRequest(cmd, value))
}

// Len returns the number of queued frames
func (q *CommandQueue) Len() int {
	return len(q.frames)
}

// TryTransmit sends at most one frame when all gates hold: 100 ms since
// the last transmission, no partial inbound frame, and 100 ms of receive
// silence. Returns the frame that was sent, or nil.
//
// A failed write still consumes the frame; the periodic register refresh
// recovers any state the lost request would have confirmed.
func (q *CommandQueue) TryTransmit(nowMs, lastRxMs int64, rxPending bool, w ByteIO) ([]byte, error) {
	if len(q.frames) == 0 {
		return nil, nil
	}
	if nowMs-q.lastSentMs < txMinIntervalMillis {
		return nil, nil
	}
	if rxPending || nowMs-lastRxMs < rxQuietMillis {
		return nil, nil
	}

	frame := q.frames[0]
	q.frames = q.frames[1:]
	q.lastSentMs = nowMs

	if err := w.Write(frame); err != nil {
		return frame, err
	}
	return frame, nil
}
