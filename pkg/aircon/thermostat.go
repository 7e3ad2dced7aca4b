// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import (
	"math"
	"sort"

	"github.com/coilworks/sirocco/pkg/ablink"
)

// Thermostat loop timing. The correction period matches the unit's own
// control cadence; running faster only churns the setpoint register.
const (
	thermostatPeriodMillis = 30000

	// The built-in thermistor sits in the return air stream and reads
	// garbage until the fan has moved air for a while.
	fanSpinUpMillis = 60000

	// Offset history retention
	offsetMaxAgeMillis = 900000
	offsetMinRetained  = 10
)

// Corrector behavior
const (
	runawayDisarmBand  = 0.15
	runawayBias        = 3.0
	roundingHysteresis = 0.2
)

// Plausible room temperature range; readings outside are clamped
const (
	roomTempMin = 0.0
	roomTempMax = 35.0
)

type offsetSample struct {
	atMs  int64
	value float64
}

// thermostat holds the state of the external-sensor correction loop: the
// rolling thermistor offset history, the runaway latch and the rounding
// direction latch.
type thermostat struct {
	lastRunMs     int64
	lastFanIdleMs int64
	history       []offsetSample

	// runawayLatch is +1 when forcing extra heating, -1 when forcing
	// extra cooling, 0 when disarmed.
	runawayLatch int

	roundUp bool
}

// thermostatTick runs one pass of the correction loop when due. The loop
// owns the device setpoint register whenever the external sensor is the
// selected source; the visible setpoint never moves.
func (c *Controller) thermostatTick(now int64) {
	if now-c.thermo.lastRunMs < thermostatPeriodMillis {
		return
	}
	c.thermo.lastRunMs = now

	if !c.seq.ready() || c.snap.UseInternalThermistor {
		return
	}

	room, ok := c.roomTemperature()
	if !ok {
		c.log.Error().Msg("no usable room temperature, skipping thermostat pass")
		return
	}
	c.snap.CurrentTemperature = room
	c.publish()

	if c.dev.power == ablink.PowerOff {
		return
	}
	switch c.snap.Mode {
	case ClimateHeat, ClimateCool, ClimateHeatCool:
	default:
		// fan-only and dry hold no setpoint worth correcting
		return
	}
	c.sampleOffset(now, room)
	median, mean := offsetStats(c.thermo.history)

	target := c.snap.TargetTemperature
	err := target - room

	setpoint := target + median + err*c.cfg.ThermostatMultiplier

	if c.cfg.RunawayProtection {
		setpoint = c.applyRunaway(setpoint, target, median, err)
	}

	register := c.roundSetpoint(setpoint, err)
	register = c.clampSetpoint(register)

	c.log.Debug().
		Float64("room", room).Float64("target", target).Float64("err", err).
		Float64("median", median).Float64("mean", mean).
		Float64("setpoint", setpoint).Uint8("register", register).
		Int("latch", c.thermo.runawayLatch).
		Msg("thermostat pass")

	if register == c.dev.target {
		return
	}

	c.dev.target = register
	c.snap.Diagnostics.IDUSetpoint = register

	// crossing 17 in either direction moves the frost-protection mode with it
	c.eightDegreesSwitchover(register)

	if register < minSetpointCooling {
		c.queue.EnqueueWrite(ablink.CmdTargetTemperature, register+16)
	} else {
		c.queue.EnqueueWrite(ablink.CmdTargetTemperature, register)
	}
	c.publish()
}

// roomTemperature reads the external sensor, falling back to the unit's
// built-in thermistor when the sensor is absent. The effective reading is
// clamped to the plausible range so a faulty sensor degrades the correction
// instead of stalling the loop.
func (c *Controller) roomTemperature() (float64, bool) {
	var v float64
	have := false

	if c.sensor != nil {
		if s, ok := c.sensor.Read(); ok && !math.IsNaN(s) && s != 0 {
			v = s
			have = true
		}
	}
	if !have {
		if c.dev.room == 0 {
			return 0, false
		}
		v = float64(c.dev.room)
		c.log.Error().Float64("fallback", v).
			Msg("external sensor unavailable, using built-in thermistor")
	}

	if v < roomTempMin {
		v = roomTempMin
	}
	if v > roomTempMax {
		v = roomTempMax
	}
	return v, true
}

// sampleOffset records the thermistor-vs-sensor offset when the air is
// actually moving, then ages out stale samples.
func (c *Controller) sampleOffset(now int64, room float64) {
	if c.snap.Diagnostics.IDUFanRPM == 0 {
		c.thermo.lastFanIdleMs = now
	}

	if now-c.thermo.lastFanIdleMs >= fanSpinUpMillis {
		c.thermo.history = append(c.thermo.history, offsetSample{
			atMs:  now,
			value: float64(c.dev.room) - room,
		})
	}

	for len(c.thermo.history) > offsetMinRetained &&
		now-c.thermo.history[0].atMs > offsetMaxAgeMillis {
		c.thermo.history = c.thermo.history[1:]
	}
}

// applyRunaway latches a fixed overshoot when the unit stops responding to
// small corrections. Some firmware revisions deadband the setpoint; the
// only way through is a demand the unit cannot ignore.
func (c *Controller) applyRunaway(setpoint, target, median, err float64) float64 {
	threshold := 0.25
	if c.cfg.ThermostatMultiplier != 0 {
		if t := 1.0 / c.cfg.ThermostatMultiplier; t > threshold {
			threshold = t
		}
	}

	switch {
	case math.Abs(err) < runawayDisarmBand:
		c.thermo.runawayLatch = 0
	case err > threshold:
		c.thermo.runawayLatch = 1
	case err < -threshold:
		c.thermo.runawayLatch = -1
	}

	// The bias raises (or lowers) the demand past every plausible floor,
	// the unprotected correction included.
	iduRoom := float64(c.dev.room)
	switch c.thermo.runawayLatch {
	case 1:
		return math.Max(setpoint, math.Max(target, math.Max(iduRoom, target+median))) + runawayBias
	case -1:
		return math.Min(setpoint, math.Min(target, math.Min(iduRoom, target+median))) - runawayBias
	}
	return setpoint
}

// roundSetpoint converts the continuous setpoint to a whole-degree register
// value. The direction latches with hysteresis so a setpoint hovering at a
// half degree does not flap between two register values.
func (c *Controller) roundSetpoint(setpoint, err float64) uint8 {
	if err > roundingHysteresis {
		c.thermo.roundUp = true
	} else if err < -roundingHysteresis {
		c.thermo.roundUp = false
	}

	v := math.Min(255, math.Max(0, setpoint))
	if c.thermo.roundUp {
		v = math.Ceil(v)
	} else {
		v = math.Floor(v)
	}
	return uint8(v)
}

func (c *Controller) clampSetpoint(register uint8) uint8 {
	min := uint8(minSetpointCooling)
	if c.snap.Mode == ClimateHeat {
		min = minSetpointHeating
	}
	if register < min {
		return min
	}
	if register > maxSetpoint {
		return maxSetpoint
	}
	return register
}

// offsetStats returns the median and mean of the sample window. The median
// drives the correction; the mean is only logged for comparison.
func offsetStats(history []offsetSample) (median, mean float64) {
	if len(history) == 0 {
		return 0, 0
	}

	values := make([]float64, len(history))
	for i, s := range history {
		values[i] = s.value
		mean += s.value
	}
	mean /= float64(len(values))

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		median = (values[mid-1] + values[mid]) / 2
	} else {
		median = values[mid]
	}
	return median, mean
}
