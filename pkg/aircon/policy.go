// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import "github.com/coilworks/sirocco/pkg/ablink"

// eightDegreesSwitchover keeps the frost-protection merit mode consistent
// with the operating mode and setpoint. Setpoints below 17 only exist
// inside the eight-degrees range, so crossing that boundary in either
// direction forces the merit register over with it. Called on every mode
// and setpoint change.
func (c *Controller) eightDegreesSwitchover(target uint8) {
	if c.dev.power == ablink.PowerOff {
		return
	}

	inEight := c.dev.special == ablink.SpecialEightDegrees
	wantEight := c.snap.Mode == ClimateHeat && target < minSetpointCooling

	switch {
	case wantEight && !inEight:
		c.log.Info().Uint8("target", target).Msg("entering eight degrees mode")
		c.dev.special = ablink.SpecialEightDegrees
		c.snap.SpecialMode = ablink.SpecialEightDegrees
		c.queue.EnqueueWrite(ablink.CmdSpecialMode, uint8(ablink.SpecialEightDegrees))

	case !wantEight && inEight:
		c.log.Info().Uint8("target", target).Msg("leaving eight degrees mode")
		c.dev.special = ablink.SpecialStandard
		c.snap.SpecialMode = ablink.SpecialStandard
		c.queue.EnqueueWrite(ablink.CmdSpecialMode, uint8(ablink.SpecialStandard))
	}
}
