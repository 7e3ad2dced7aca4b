// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import "github.com/coilworks/sirocco/pkg/ablink"

// Handshake stage delays, empirically derived. The unit needs settling
// time between link stages; none of this is protocol-documented, so the
// values are fixed constants.
const (
	handshakeDelayMillis     = 10000
	postHandshakeDelayMillis = 3000
	initialReadDelayMillis   = 3000
)

type handshakePhase int

const (
	phaseIdle handshakePhase = iota
	phaseAwaitingHandshake
	phaseAwaitingPostHandshake
	phaseAwaitingInitialRead
	phaseReady
)

// handshakeSequencer drives the one-shot startup sequence. Each stage is a
// deferred deadline against the tick clock; the stages fire exactly once
// and are never re-entered.
type handshakeSequencer struct {
	phase      handshakePhase
	deadlineMs int64
}

func (s *handshakeSequencer) start(nowMs int64) {
	s.phase = phaseAwaitingHandshake
	s.deadlineMs = nowMs + handshakeDelayMillis
}

func (s *handshakeSequencer) ready() bool {
	return s.phase == phaseReady
}

// tick advances the sequencer when the current stage deadline has passed.
// Returns true on the single tick where the link becomes ready; the caller
// issues the initial full register read at that point.
func (s *handshakeSequencer) tick(nowMs int64, queue *CommandQueue) bool {
	if s.phase == phaseIdle || s.phase == phaseReady || nowMs < s.deadlineMs {
		return false
	}

	switch s.phase {
	case phaseAwaitingHandshake:
		for _, frame := range ablink.Handshake() {
			queue.Enqueue(frame)
		}
		s.phase = phaseAwaitingPostHandshake
		s.deadlineMs = nowMs + postHandshakeDelayMillis

	case phaseAwaitingPostHandshake:
		for _, frame := range ablink.PostHandshake() {
			queue.Enqueue(frame)
		}
		s.phase = phaseAwaitingInitialRead
		s.deadlineMs = nowMs + initialReadDelayMillis

	case phaseAwaitingInitialRead:
		s.phase = phaseReady
		return true
	}

	return false
}
