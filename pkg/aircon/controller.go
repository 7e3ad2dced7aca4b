// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/coilworks/sirocco/pkg/ablink"
)

// Control intent rejections
var (
	ErrNotReady        = errors.New("link not established yet")
	ErrPoweredOff      = errors.New("indoor unit is powered off")
	ErrInvalidValue    = errors.New("invalid value")
	ErrUnsupportedMode = errors.New("mode not supported on this unit")
)

// Setpoint limits in degrees Celsius
const (
	minSetpointHeating = 5
	minSetpointCooling = 17
	maxSetpoint        = 30
)

// Inbound bytes handled per tick, so a chatty unit cannot starve the
// transmitter or the thermostat loop.
const rxBytesPerTick = 32

// Periodic register refresh, recovers from missed unsolicited reports
const (
	refreshHoldoffMillis = 30000
	partialReadMillis    = 10000
	fullReadMillis       = 150000
)

// Settings are the immutable controller parameters, supplied once
type Settings struct {
	// ThermostatMultiplier is the proportional gain of the smart
	// thermostat corrector.
	ThermostatMultiplier float64

	// RunawayProtection enables the forced-overshoot latch for units
	// that ignore small setpoint changes.
	RunawayProtection bool

	// DisableCooling restricts the unit to off/heat/fan-only and
	// overrides any cooling mode the unit reports.
	DisableCooling bool
}

// Controller is the single owner of the link: register mirror, command
// queue, handshake sequencer and thermostat loop. It must only be driven
// from one goroutine; Tick is the sole entry point after Start.
type Controller struct {
	log    zerolog.Logger
	io     ByteIO
	clock  Clock
	sensor ExternalSensor
	sink   Sink

	cfg Settings

	asm   *ablink.Assembler
	queue *CommandQueue
	seq   handshakeSequencer

	dev  deviceState
	snap Snapshot

	startMs           int64
	lastPartialReadMs int64
	lastFullReadMs    int64

	restore *PersistedState

	thermo thermostat
}

// New creates a controller over the given transport and clock.
// Sensor, sink and logger are attached with the Set methods before Start.
func New(io ByteIO, clock Clock, cfg Settings) *Controller {
	if cfg.ThermostatMultiplier == 0 {
		cfg.ThermostatMultiplier = 4.0
	}
	return &Controller{
		log:   zerolog.Nop(),
		io:    io,
		clock: clock,
		cfg:   cfg,
		asm:   ablink.NewAssembler(),
		queue: NewCommandQueue(),
		dev:   newDeviceState(),
		snap: Snapshot{
			Mode:              ClimateOff,
			TargetTemperature: 20,
			FanMode:           ablink.FanMedium,
			SwingMode:         ablink.SwingOff,
			SpecialMode:       ablink.SpecialStandard,
			PowerSelect:       ablink.Power100,
			SupportedModes:    supportedModes(cfg.DisableCooling),
		},
	}
}

// SetLogger attaches a structured logger
func (c *Controller) SetLogger(log zerolog.Logger) {
	c.log = log
}

// SetExternalSensor attaches the external room temperature source
func (c *Controller) SetExternalSensor(s ExternalSensor) {
	c.sensor = s
}

// SetSink attaches the published-state receiver
func (c *Controller) SetSink(s Sink) {
	c.sink = s
}

// Start flushes stale inbound bytes and arms the handshake sequencer.
// Control intents are rejected until the sequence completes.
func (c *Controller) Start() {
	flushed := 0
	for {
		if _, ok := c.io.ReadByte(); !ok {
			break
		}
		flushed++
	}
	if flushed > 0 {
		c.log.Debug().Int("bytes", flushed).Msg("flushed stale rx bytes")
	}

	now := c.clock.Millis()
	c.startMs = now
	c.seq.start(now)
	c.publish()
}

// Ready reports whether the startup handshake has completed
func (c *Controller) Ready() bool {
	return c.seq.ready()
}

// Snapshot returns the current externally visible state
func (c *Controller) Snapshot() Snapshot {
	return c.snap
}

// Tick runs one cooperative pass: bounded receive, handshake sequencing,
// at most one transmission, the thermostat loop and the periodic refresh.
func (c *Controller) Tick() {
	now := c.clock.Millis()

	c.processRx(now)

	if c.seq.tick(now, c.queue) {
		c.log.Info().Msg("link established, requesting initial registers")
		c.requestRegisters(true)
		c.lastFullReadMs = now
		c.lastPartialReadMs = now
		c.snap.Ready = true
		if c.restore != nil {
			c.applyRestore()
		}
		c.publish()
	}

	c.transmit(now)
	c.thermostatTick(now)
	c.periodicRefresh(now)
}

func (c *Controller) processRx(now int64) {
	for i := 0; i < rxBytesPerTick; i++ {
		b, ok := c.io.ReadByte()
		if !ok {
			break
		}
		frame, err := c.asm.Push(b, now)
		if err != nil {
			c.log.Error().Err(err).Msg("rx")
			continue
		}
		if frame != nil {
			c.handleFrame(frame)
		}
	}

	if dropped := c.asm.CheckTimeout(now); dropped > 0 {
		c.log.Error().Int("bytes", dropped).Msg("discarded partial frame after rx timeout")
	}
}

func (c *Controller) transmit(now int64) {
	frame, err := c.queue.TryTransmit(now, c.asm.LastReceiveMillis(), c.asm.Pending(), c.io)
	if err != nil {
		c.log.Error().Err(err).Msg("tx failed")
		return
	}
	if frame != nil {
		c.log.Debug().Str("frame", ablink.FormatHex(frame)).Msg("sent")
	}
}

func (c *Controller) handleFrame(frame *ablink.Frame) {
	msg, err := ablink.Decode(frame)
	if err != nil {
		switch {
		case errors.Is(err, ablink.ErrUnknownShape):
			// protocol is not fully reverse-engineered; not an error
			c.log.Debug().Int("len", frame.Len()).
				Str("frame", ablink.FormatHex(frame.Bytes())).Msg("ignoring unknown message shape")
		default:
			c.log.Error().Err(err).
				Str("frame", ablink.FormatHex(frame.Bytes())).Msg("rejected frame")
		}
		return
	}

	switch m := msg.(type) {
	case ablink.HandshakeReply:
		c.log.Debug().Str("frame", ablink.FormatHex(m.Raw)).Msg("handshake reply")
	case ablink.PostHandshakeReply:
		c.log.Debug().Str("frame", ablink.FormatHex(m.Raw)).Msg("post handshake reply")
	case ablink.RegisterReport:
		c.handleRegister(m)
	case ablink.ODUStatus:
		c.snap.Diagnostics.ODUTdTemp = m.TdTemp
		c.snap.Diagnostics.ODUTsTemp = m.TsTemp
		c.snap.Diagnostics.ODUTeTemp = m.TeTemp
		c.snap.Diagnostics.ODULoad = m.Load
		c.snap.Diagnostics.ODUIAC = m.IAC
		c.log.Info().Int8("td", m.TdTemp).Int8("ts", m.TsTemp).Int8("te", m.TeTemp).
			Float64("load", m.Load).Uint8("iac", m.IAC).Msg("odu status")
		c.publish()
	case ablink.IDUStatus:
		c.snap.Diagnostics.IDUTcTemp = m.TcTemp
		c.snap.Diagnostics.IDUTcjTemp = m.TcjTemp
		c.snap.Diagnostics.IDUFanRPM = m.FanRPM
		c.log.Info().Int8("tc", m.TcTemp).Int8("tcj", m.TcjTemp).
			Uint8("fanRPM", m.FanRPM).Msg("idu status")
		c.publish()
	}
}

func (c *Controller) handleRegister(r ablink.RegisterReport) {
	c.log.Debug().Str("command", r.Command.String()).Uint8("value", r.Value).
		Bool("external", r.External).Msg("register report")

	switch r.Command {
	case ablink.CmdMode:
		c.handleModeReport(ablink.Mode(r.Value))
	case ablink.CmdPowerState:
		c.handlePowerStateReport(ablink.PowerState(r.Value))
	case ablink.CmdTargetTemperature:
		c.handleTargetReport(r.Value, r.External)
	case ablink.CmdFanMode:
		c.handleFanReport(ablink.FanMode(r.Value))
	case ablink.CmdSwingMode:
		c.handleSwingReport(ablink.SwingMode(r.Value))
	case ablink.CmdSpecialMode:
		c.handleSpecialReport(ablink.SpecialMode(r.Value))
	case ablink.CmdIonizer:
		c.handleIonizerReport(r.Value)
	case ablink.CmdPowerSelect:
		c.handlePowerSelectReport(ablink.PowerSelect(r.Value))
	case ablink.CmdRoomTemperature:
		c.handleRoomTemperatureReport(int8(r.Value))
	case ablink.CmdOutdoorTemperature:
		c.snap.OutdoorTemperature = float64(int8(r.Value))
		c.publish()
	default:
		c.log.Error().Uint8("command", uint8(r.Command)).Msg("unhandled register report")
	}
}

func (c *Controller) handleModeReport(v ablink.Mode) {
	if c.dev.power == ablink.PowerOff {
		// the unit reports a mode while it considers itself off; the
		// visible mode stays off regardless of the reported value
		c.log.Error().Str("mode", v.String()).Msg("mode report while powered off")
		c.snap.Mode = ClimateOff
		c.publish()
		return
	}

	if c.cfg.DisableCooling &&
		(v == ablink.ModeCool || v == ablink.ModeDry || v == ablink.ModeHeatCool) {
		c.log.Info().Str("mode", v.String()).Msg("cooling disabled, forcing fan only")
		c.snap.Mode = ClimateFanOnly
		c.publish()
		c.queue.EnqueueWrite(ablink.CmdMode, uint8(ablink.ModeFanOnly))
		return
	}

	mode, ok := climateModeFromWire(v)
	if !ok {
		c.log.Error().Uint8("mode", uint8(v)).Msg("unknown mode value")
		return
	}
	c.snap.Mode = mode
	c.publish()
}

func (c *Controller) handlePowerStateReport(v ablink.PowerState) {
	switch v {
	case ablink.PowerOn:
		if c.dev.power == ablink.PowerOff {
			// the unit does not proactively report mode and setpoint
			// after power-on, so ask for them
			c.queue.EnqueueRead(ablink.CmdMode)
			c.queue.EnqueueRead(ablink.CmdTargetTemperature)
		}
	case ablink.PowerOff:
		c.snap.Mode = ClimateOff
		c.publish()
	default:
		c.log.Error().Uint8("value", uint8(v)).Msg("unknown power state")
		return
	}
	c.dev.power = v
}

func (c *Controller) handleTargetReport(value uint8, external bool) {
	if c.dev.special == ablink.SpecialEightDegrees {
		c.dev.target = value - 16
	} else {
		c.dev.target = value
	}
	c.snap.Diagnostics.IDUSetpoint = c.dev.target

	// Only surface the setpoint when the built-in thermistor owns it or
	// the change came from outside (IR handset). Replies to our own reads
	// are absorbed: the thermostat loop owns the visible setpoint then.
	if c.snap.UseInternalThermistor || external {
		c.snap.TargetTemperature = float64(c.dev.target)
		c.publish()
	} else {
		c.log.Debug().Uint8("value", c.dev.target).Msg("own-query setpoint absorbed")
	}
}

func (c *Controller) handleFanReport(v ablink.FanMode) {
	switch v {
	case ablink.FanQuiet, ablink.FanLow, ablink.FanLowMedium, ablink.FanMedium,
		ablink.FanMediumHigh, ablink.FanHigh, ablink.FanAuto:
		c.dev.fan = v
		c.snap.FanMode = v
		c.publish()
	default:
		c.log.Error().Uint8("value", uint8(v)).Msg("unknown fan mode")
	}
}

func (c *Controller) handleSwingReport(v ablink.SwingMode) {
	switch v {
	case ablink.SwingOff, ablink.SwingVertical, ablink.SwingHorizontal, ablink.SwingBoth,
		ablink.SwingFixed1, ablink.SwingFixed2, ablink.SwingFixed3,
		ablink.SwingFixed4, ablink.SwingFixed5:
		c.dev.swing = v
		c.snap.SwingMode = v
		c.publish()
	default:
		c.log.Error().Uint8("value", uint8(v)).Msg("unknown swing mode")
	}
}

func (c *Controller) handleSpecialReport(v ablink.SpecialMode) {
	switch v {
	case ablink.SpecialStandard, ablink.SpecialHighPower, ablink.SpecialSilent1,
		ablink.SpecialEco, ablink.SpecialEightDegrees, ablink.SpecialSleepCare,
		ablink.SpecialFloor, ablink.SpecialComfort, ablink.SpecialSilent2,
		ablink.SpecialFireplace1, ablink.SpecialFireplace2:
		c.dev.special = v
		c.snap.SpecialMode = v
		c.publish()
	default:
		c.log.Error().Uint8("value", uint8(v)).Msg("unknown special mode")
	}
}

func (c *Controller) handleIonizerReport(v uint8) {
	switch v {
	case ablink.IonizerOn:
		c.snap.Ionizer = true
	case ablink.IonizerOff:
		c.snap.Ionizer = false
	default:
		c.log.Error().Uint8("value", v).Msg("unknown ionizer state")
		return
	}
	c.publish()
}

func (c *Controller) handlePowerSelectReport(v ablink.PowerSelect) {
	switch v {
	case ablink.Power50, ablink.Power75, ablink.Power100:
		c.dev.limit = v
		c.snap.PowerSelect = v
		c.publish()
	default:
		c.log.Error().Uint8("value", uint8(v)).Msg("unknown power select")
	}
}

func (c *Controller) handleRoomTemperatureReport(v int8) {
	c.dev.room = v
	c.snap.Diagnostics.IDUAirTemp = v
	if c.snap.UseInternalThermistor {
		c.snap.CurrentTemperature = float64(v)
	}
	c.publish()
}

// ---------------------------------------------------------------
// Control intents (host entity layer -> device)
// ---------------------------------------------------------------

// SetMode requests an operating mode change. ClimateOff writes the power
// register; any other mode powers the unit on first when it is off.
func (c *Controller) SetMode(mode ClimateMode) error {
	if !c.seq.ready() {
		c.log.Error().Str("mode", mode.String()).Msg("rejecting mode change before ready")
		return ErrNotReady
	}

	if mode == ClimateOff {
		c.queue.EnqueueWrite(ablink.CmdPowerState, uint8(ablink.PowerOff))
		c.snap.Mode = ClimateOff
		c.publish()
		return nil
	}

	if c.cfg.DisableCooling &&
		(mode == ClimateCool || mode == ClimateDry || mode == ClimateHeatCool) {
		return ErrUnsupportedMode
	}

	wire, ok := wireModeFromClimate(mode)
	if !ok {
		return ErrInvalidValue
	}

	if c.dev.power == ablink.PowerOff {
		// mirror optimistically; the periodic refresh corrects a lost write
		c.queue.EnqueueWrite(ablink.CmdPowerState, uint8(ablink.PowerOn))
		c.dev.power = ablink.PowerOn
	}
	c.queue.EnqueueWrite(ablink.CmdMode, uint8(wire))
	c.snap.Mode = mode
	c.eightDegreesSwitchover(c.dev.target)
	c.publish()
	return nil
}

// SetTargetTemperature requests a new setpoint, rounded to 0.5 degrees and
// clamped to [5, 30]. With an external sensor in use the device register is
// left to the thermostat loop; only the visible setpoint changes.
func (c *Controller) SetTargetTemperature(target float64) error {
	if !c.seq.ready() {
		return ErrNotReady
	}

	target = math.Round(target*2) / 2
	if target < minSetpointHeating {
		target = minSetpointHeating
	} else if target > maxSetpoint {
		target = maxSetpoint
	}

	if c.dev.power == ablink.PowerOff {
		c.log.Error().Float64("target", target).Msg("rejecting setpoint while powered off")
		return ErrPoweredOff
	}

	c.snap.TargetTemperature = target

	if !c.snap.UseInternalThermistor {
		c.log.Debug().Float64("target", target).
			Msg("external sensor in use, setpoint owned by thermostat loop")
		c.eightDegreesSwitchover(uint8(target))
		c.publish()
		return nil
	}

	register := uint8(target)
	c.eightDegreesSwitchover(register)
	c.dev.target = register
	c.snap.Diagnostics.IDUSetpoint = register

	switch {
	case c.snap.Mode != ClimateHeat:
		if register < minSetpointCooling {
			register = minSetpointCooling
		}
		c.queue.EnqueueWrite(ablink.CmdTargetTemperature, register)
	case register < minSetpointCooling:
		c.queue.EnqueueWrite(ablink.CmdTargetTemperature, register+16)
	default:
		c.queue.EnqueueWrite(ablink.CmdTargetTemperature, register)
	}

	c.publish()
	return nil
}

// SetFanMode requests a fan speed change
func (c *Controller) SetFanMode(fan ablink.FanMode) error {
	if !c.seq.ready() {
		return ErrNotReady
	}
	if c.dev.power == ablink.PowerOff {
		return ErrPoweredOff
	}
	switch fan {
	case ablink.FanQuiet, ablink.FanLow, ablink.FanLowMedium, ablink.FanMedium,
		ablink.FanMediumHigh, ablink.FanHigh, ablink.FanAuto:
	default:
		return ErrInvalidValue
	}

	c.queue.EnqueueWrite(ablink.CmdFanMode, uint8(fan))
	c.dev.fan = fan
	c.snap.FanMode = fan
	c.publish()
	return nil
}

// SetSwingMode requests a louver change
func (c *Controller) SetSwingMode(swing ablink.SwingMode) error {
	if !c.seq.ready() {
		return ErrNotReady
	}
	if c.dev.power == ablink.PowerOff {
		return ErrPoweredOff
	}
	switch swing {
	case ablink.SwingOff, ablink.SwingVertical, ablink.SwingHorizontal, ablink.SwingBoth,
		ablink.SwingFixed1, ablink.SwingFixed2, ablink.SwingFixed3,
		ablink.SwingFixed4, ablink.SwingFixed5:
	default:
		return ErrInvalidValue
	}

	c.queue.EnqueueWrite(ablink.CmdSwingMode, uint8(swing))
	c.dev.swing = swing
	c.snap.SwingMode = swing
	c.publish()
	return nil
}

// SetSpecialMode requests a merit mode change, applying the eight-degrees
// boundary clamping rules on manual entry and exit.
func (c *Controller) SetSpecialMode(mode ablink.SpecialMode) error {
	if !c.seq.ready() {
		return ErrNotReady
	}
	switch mode {
	case ablink.SpecialStandard, ablink.SpecialHighPower, ablink.SpecialSilent1,
		ablink.SpecialEco, ablink.SpecialEightDegrees, ablink.SpecialSleepCare,
		ablink.SpecialFloor, ablink.SpecialComfort, ablink.SpecialSilent2,
		ablink.SpecialFireplace1, ablink.SpecialFireplace2:
	default:
		return ErrInvalidValue
	}

	if mode == ablink.SpecialEightDegrees && c.snap.Mode != ClimateHeat {
		c.log.Error().Msg("eight degrees mode requires heating")
		return ErrUnsupportedMode
	}

	old := c.dev.special

	if old == ablink.SpecialEightDegrees && mode != ablink.SpecialEightDegrees &&
		c.dev.target < minSetpointCooling {
		// leaving the low-temperature range: clamp up to the standard minimum
		c.dev.target = minSetpointCooling
		c.queue.EnqueueWrite(ablink.CmdTargetTemperature, c.dev.target)
		c.snap.Diagnostics.IDUSetpoint = c.dev.target
		if c.snap.UseInternalThermistor {
			c.snap.TargetTemperature = float64(c.dev.target)
		}
	}

	if old != ablink.SpecialEightDegrees && mode == ablink.SpecialEightDegrees &&
		c.dev.target > 16 {
		// entering the low-temperature range: clamp down to its maximum
		c.dev.target = 16
		c.queue.EnqueueWrite(ablink.CmdTargetTemperature, c.dev.target+16)
		c.snap.Diagnostics.IDUSetpoint = c.dev.target
		if c.snap.UseInternalThermistor {
			c.snap.TargetTemperature = float64(c.dev.target)
		}
	}

	c.dev.special = mode
	c.snap.SpecialMode = mode
	c.queue.EnqueueWrite(ablink.CmdSpecialMode, uint8(mode))
	c.publish()
	return nil
}

// SetPowerSelect requests a power limit change
func (c *Controller) SetPowerSelect(limit ablink.PowerSelect) error {
	if !c.seq.ready() {
		return ErrNotReady
	}
	switch limit {
	case ablink.Power50, ablink.Power75, ablink.Power100:
	default:
		return ErrInvalidValue
	}

	c.queue.EnqueueWrite(ablink.CmdPowerSelect, uint8(limit))
	c.dev.limit = limit
	c.snap.PowerSelect = limit
	c.publish()
	return nil
}

// SetIonizer switches the ionizer on or off
func (c *Controller) SetIonizer(on bool) error {
	if !c.seq.ready() {
		return ErrNotReady
	}
	value := ablink.IonizerOff
	if on {
		value = ablink.IonizerOn
	}
	c.queue.EnqueueWrite(ablink.CmdIonizer, value)
	c.snap.Ionizer = on
	c.publish()
	return nil
}

// SetUseInternalThermistor selects the temperature source. This is a local
// switch, accepted at any time.
func (c *Controller) SetUseInternalThermistor(on bool) {
	c.snap.UseInternalThermistor = on
	c.publish()
}

// ---------------------------------------------------------------
// Periodic refresh
// ---------------------------------------------------------------

func (c *Controller) periodicRefresh(now int64) {
	if !c.seq.ready() || now-c.startMs < refreshHoldoffMillis {
		return
	}

	if now-c.lastPartialReadMs > partialReadMillis {
		c.lastPartialReadMs = now
		c.requestRegisters(false)
	} else if now-c.lastFullReadMs > fullReadMillis {
		c.lastFullReadMs = now
		c.requestRegisters(true)
	}
}

func (c *Controller) requestRegisters(full bool) {
	c.queue.EnqueueRead(ablink.CmdRoomTemperature)
	c.queue.EnqueueRead(ablink.CmdOutdoorTemperature)

	if !full {
		return
	}
	c.queue.EnqueueRead(ablink.CmdPowerState)
	c.queue.EnqueueRead(ablink.CmdMode)
	c.queue.EnqueueRead(ablink.CmdTargetTemperature)
	c.queue.EnqueueRead(ablink.CmdFanMode)
	c.queue.EnqueueRead(ablink.CmdSwingMode)
	c.queue.EnqueueRead(ablink.CmdSpecialMode)
	c.queue.EnqueueRead(ablink.CmdIonizer)
	c.queue.EnqueueRead(ablink.CmdPowerSelect)
	c.queue.EnqueueRead(ablink.CmdODUStatus)
	c.queue.EnqueueRead(ablink.CmdIDUStatus)
}

func (c *Controller) publish() {
	if c.sink != nil {
		c.sink.Publish(c.snap)
	}
}

func climateModeFromWire(v ablink.Mode) (ClimateMode, bool) {
	switch v {
	case ablink.ModeHeatCool:
		return ClimateHeatCool, true
	case ablink.ModeCool:
		return ClimateCool, true
	case ablink.ModeHeat:
		return ClimateHeat, true
	case ablink.ModeDry:
		return ClimateDry, true
	case ablink.ModeFanOnly:
		return ClimateFanOnly, true
	}
	return ClimateOff, false
}

func wireModeFromClimate(m ClimateMode) (ablink.Mode, bool) {
	switch m {
	case ClimateHeatCool:
		return ablink.ModeHeatCool, true
	case ClimateCool:
		return ablink.ModeCool, true
	case ClimateHeat:
		return ablink.ModeHeat, true
	case ClimateDry:
		return ablink.ModeDry, true
	case ClimateFanOnly:
		return ablink.ModeFanOnly, true
	}
	return 0, false
}
