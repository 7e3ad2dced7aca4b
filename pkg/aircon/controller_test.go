// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import (
	"bytes"
	"errors"
	"testing"

	"github.com/coilworks/sirocco/pkg/ablink"
)

// ============================================================
// Test Doubles
// ============================================================

type fakeClock struct {
	ms int64
}

func (c *fakeClock) Millis() int64 {
	return c.ms
}

func (c *fakeClock) advance(d int64) {
	c.ms += d
}

type fakeIO struct {
	rx       []byte
	tx       [][]byte
	writeErr error
}

func (f *fakeIO) ReadByte() (byte, bool) {
	if len(f.rx) == 0 {
		return 0, false
	}
	b := f.rx[0]
	f.rx = f.rx[1:]
	return b, true
}

func (f *fakeIO) Write(p []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	f.tx = append(f.tx, cp)
	return nil
}

type fakeSensor struct {
	value float64
	ok    bool
}

func (s *fakeSensor) Read() (float64, bool) {
	return s.value, s.ok
}

type fakeSink struct {
	last  Snapshot
	count int
}

func (s *fakeSink) Publish(snap Snapshot) {
	s.last = snap
	s.count++
}

// ============================================================
// Harness
// ============================================================

// reportFrame builds an inbound register report fixture. totalLen selects
// the externally-triggered (15) or own-query (17) shape.
func reportFrame(totalLen int, cmd ablink.Command, value uint8) []byte {
	raw := make([]byte, totalLen)
	raw[0], raw[1], raw[2] = 0x02, 0x00, 0x03
	raw[ablink.LengthOffset] = byte(totalLen - ablink.FrameOverhead)
	raw[totalLen-3] = uint8(cmd)
	raw[totalLen-2] = value
	raw[totalLen-1] = ablink.Checksum(raw[:totalLen-1])
	return raw
}

// newReadyController runs the startup sequence to completion and clears the
// queue and transmit log, leaving a controller ready for intents.
func newReadyController(t *testing.T, cfg Settings) (*Controller, *fakeIO, *fakeClock) {
	t.Helper()

	io := &fakeIO{}
	clk := &fakeClock{}
	c := New(io, clk, cfg)
	c.Start()

	clk.ms = handshakeDelayMillis
	c.Tick()
	clk.advance(postHandshakeDelayMillis)
	c.Tick()
	clk.advance(initialReadDelayMillis)
	c.Tick()

	if !c.Ready() {
		t.Fatal("controller not ready after startup sequence")
	}

	c.queue.frames = nil
	io.tx = nil
	clk.advance(200)
	return c, io, clk
}

// feed delivers a raw inbound frame and runs one tick to process it
func feed(c *Controller, io *fakeIO, clk *fakeClock, raw []byte) {
	io.rx = append(io.rx, raw...)
	clk.advance(1)
	c.Tick()
}

// powerOn walks the controller into a powered-on heating state via reports
func powerOn(c *Controller, io *fakeIO, clk *fakeClock, mode ablink.Mode) {
	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdPowerState, uint8(ablink.PowerOn)))
	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdMode, uint8(mode)))
	c.queue.frames = nil
}

func hasFrame(frames [][]byte, want []byte) bool {
	for _, f := range frames {
		if bytes.Equal(f, want) {
			return true
		}
	}
	return false
}

// ============================================================
// Startup Sequence Tests
// ============================================================

func TestStartup_Sequence(t *testing.T) {
	io := &fakeIO{}
	clk := &fakeClock{}
	c := New(io, clk, Settings{})
	c.Start()

	clk.ms = handshakeDelayMillis - 1
	c.Tick()
	if c.queue.Len() != 0 {
		t.Fatal("handshake queued before its delay elapsed")
	}

	clk.ms = handshakeDelayMillis
	c.Tick()
	// one frame transmits on the same tick, the rest stay queued
	if got := c.queue.Len() + len(io.tx); got != len(ablink.Handshake()) {
		t.Fatalf("handshake frames = %d, want %d", got, len(ablink.Handshake()))
	}
	if !bytes.Equal(io.tx[0], ablink.Handshake()[0]) {
		t.Errorf("first frame on the wire = % X, want first handshake frame", io.tx[0])
	}
	if c.Ready() {
		t.Error("ready before the sequence completed")
	}

	clk.advance(postHandshakeDelayMillis)
	c.Tick()
	if c.Ready() {
		t.Error("ready before the initial read delay")
	}

	clk.advance(initialReadDelayMillis)
	c.Tick()
	if !c.Ready() {
		t.Fatal("not ready after the full sequence")
	}
	if !hasFrame(c.queue.frames, ablink.ReadRequest(ablink.CmdRoomTemperature)) {
		t.Error("initial register read not queued on the ready tick")
	}
	if !hasFrame(c.queue.frames, ablink.ReadRequest(ablink.CmdODUStatus)) {
		t.Error("initial status read not queued on the ready tick")
	}
}

func TestStart_FlushesStaleBytes(t *testing.T) {
	io := &fakeIO{rx: []byte{0x02, 0x00, 0x03, 0x99}}
	c := New(io, &fakeClock{}, Settings{})
	c.Start()

	if len(io.rx) != 0 {
		t.Errorf("%d stale bytes left after Start", len(io.rx))
	}
}

// ============================================================
// Transmit Gating Tests
// ============================================================

func TestTransmit_RateLimited(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})

	if err := c.SetIonizer(true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetIonizer(false); err != nil {
		t.Fatal(err)
	}

	clk.advance(txMinIntervalMillis)
	c.Tick()
	if len(io.tx) != 1 {
		t.Fatalf("sent %d frames on first tick, want 1", len(io.tx))
	}

	c.Tick() // clock unchanged, minimum interval not elapsed
	if len(io.tx) != 1 {
		t.Fatalf("sent %d frames without the interval elapsing, want 1", len(io.tx))
	}

	clk.advance(txMinIntervalMillis)
	c.Tick()
	if len(io.tx) != 2 {
		t.Fatalf("sent %d frames after the interval elapsed, want 2", len(io.tx))
	}
}

func TestTransmit_HeldDuringReceive(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})

	if err := c.SetIonizer(true); err != nil {
		t.Fatal(err)
	}

	// a partial inbound frame holds the transmitter
	io.rx = []byte{0x02, 0x00}
	clk.advance(txMinIntervalMillis)
	c.Tick()
	if len(io.tx) != 0 {
		t.Fatal("transmitted while a partial frame was pending")
	}

	// complete the frame; transmission still waits for receive silence
	io.rx = reportFrame(ablink.LenReportExternal, ablink.CmdIonizer, ablink.IonizerOn)[2:]
	clk.advance(1)
	c.Tick()
	if len(io.tx) != 0 {
		t.Fatal("transmitted inside the receive quiet window")
	}

	clk.advance(rxQuietMillis)
	c.Tick()
	if len(io.tx) != 1 {
		t.Fatalf("sent %d frames after the quiet window, want 1", len(io.tx))
	}
}

// ============================================================
// Register Report Tests
// ============================================================

func TestModeReport_WhilePoweredOff(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})

	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdMode, uint8(ablink.ModeHeat)))
	if c.Snapshot().Mode != ClimateOff {
		t.Errorf("mode = %v while powered off, want off", c.Snapshot().Mode)
	}
}

func TestModeReport_FollowsPowerState(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	powerOn(c, io, clk, ablink.ModeHeat)

	if c.Snapshot().Mode != ClimateHeat {
		t.Errorf("mode = %v, want heat", c.Snapshot().Mode)
	}

	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdPowerState, uint8(ablink.PowerOff)))
	if c.Snapshot().Mode != ClimateOff {
		t.Errorf("mode = %v after power off report, want off", c.Snapshot().Mode)
	}
}

func TestPowerOnReport_RequestsModeAndSetpoint(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})

	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdPowerState, uint8(ablink.PowerOn)))

	if !hasFrame(c.queue.frames, ablink.ReadRequest(ablink.CmdMode)) {
		t.Error("mode read not queued after power-on report")
	}
	if !hasFrame(c.queue.frames, ablink.ReadRequest(ablink.CmdTargetTemperature)) {
		t.Error("setpoint read not queued after power-on report")
	}
}

func TestModeReport_CoolingDisabled(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{DisableCooling: true})
	powerOn(c, io, clk, ablink.ModeHeat)

	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdMode, uint8(ablink.ModeCool)))

	if c.Snapshot().Mode != ClimateFanOnly {
		t.Errorf("mode = %v, want fan_only override", c.Snapshot().Mode)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdMode, uint8(ablink.ModeFanOnly))) {
		t.Error("corrective fan-only write not queued")
	}
}

func TestUnknownEnumReports_NoMutation(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	powerOn(c, io, clk, ablink.ModeHeat)

	before := c.Snapshot()

	tests := []struct {
		name string
		cmd  ablink.Command
	}{
		{"fan mode", ablink.CmdFanMode},
		{"swing mode", ablink.CmdSwingMode},
		{"special mode", ablink.CmdSpecialMode},
		{"power select", ablink.CmdPowerSelect},
		{"ionizer", ablink.CmdIonizer},
		{"mode", ablink.CmdMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed(c, io, clk, reportFrame(ablink.LenReportExternal, tt.cmd, 0xEE))
			after := c.Snapshot()
			if after.FanMode != before.FanMode || after.SwingMode != before.SwingMode ||
				after.SpecialMode != before.SpecialMode || after.PowerSelect != before.PowerSelect ||
				after.Ionizer != before.Ionizer || after.Mode != before.Mode {
				t.Errorf("state mutated by unknown value: %+v", after)
			}
		})
	}
}

func TestTargetReport_OwnQueryAbsorbed(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	powerOn(c, io, clk, ablink.ModeHeat)
	// external sensor mode: the loop owns the setpoint register
	c.snap.TargetTemperature = 22

	feed(c, io, clk, reportFrame(ablink.LenReportQueried, ablink.CmdTargetTemperature, 25))

	if c.Snapshot().TargetTemperature != 22 {
		t.Errorf("visible setpoint = %.1f after own-query reply, want 22 unchanged",
			c.Snapshot().TargetTemperature)
	}
	if c.dev.target != 25 {
		t.Errorf("device mirror = %d, want 25", c.dev.target)
	}

	// an externally triggered report (IR handset) does surface
	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdTargetTemperature, 24))
	if c.Snapshot().TargetTemperature != 24 {
		t.Errorf("visible setpoint = %.1f after external report, want 24",
			c.Snapshot().TargetTemperature)
	}
}

func TestTargetReport_EightDegreesEncoding(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	c.SetUseInternalThermistor(true)
	powerOn(c, io, clk, ablink.ModeHeat)
	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdSpecialMode, uint8(ablink.SpecialEightDegrees)))

	// the register carries setpoint+16 inside the eight-degrees range
	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdTargetTemperature, 26))

	if c.Snapshot().TargetTemperature != 10 {
		t.Errorf("visible setpoint = %.1f, want decoded 10", c.Snapshot().TargetTemperature)
	}
}

func TestStatusReports_Diagnostics(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})

	odu := make([]byte, ablink.LenStatusBroadcast)
	odu[0], odu[1], odu[2] = 0x02, 0x00, 0x03
	odu[ablink.LengthOffset] = byte(ablink.LenStatusBroadcast - ablink.FrameOverhead)
	odu[12] = uint8(ablink.CmdODUStatus)
	odu[13] = 62   // td
	odu[14] = 0xF8 // ts = -8
	odu[15] = 3    // te
	odu[16] = 85   // load, scales to 50%
	odu[19] = 12   // iac
	odu[len(odu)-1] = ablink.Checksum(odu[:len(odu)-1])
	feed(c, io, clk, odu)

	d := c.Snapshot().Diagnostics
	if d.ODUTdTemp != 62 || d.ODUTsTemp != -8 || d.ODUTeTemp != 3 || d.ODUIAC != 12 {
		t.Errorf("odu diagnostics = %+v", d)
	}
	if d.ODULoad < 49.9 || d.ODULoad > 50.1 {
		t.Errorf("odu load = %.2f, want 50.0", d.ODULoad)
	}

	idu := make([]byte, ablink.LenStatusBroadcast)
	idu[0], idu[1], idu[2] = 0x02, 0x00, 0x03
	idu[ablink.LengthOffset] = byte(ablink.LenStatusBroadcast - ablink.FrameOverhead)
	idu[12] = uint8(ablink.CmdIDUStatus)
	idu[13] = 30   // tc
	idu[14] = 0xFD // tcj = -3
	idu[15] = 90   // fan rpm
	idu[len(idu)-1] = ablink.Checksum(idu[:len(idu)-1])
	feed(c, io, clk, idu)

	d = c.Snapshot().Diagnostics
	if d.IDUTcTemp != 30 || d.IDUTcjTemp != -3 || d.IDUFanRPM != 90 {
		t.Errorf("idu diagnostics = %+v", d)
	}
}

// ============================================================
// Control Intent Tests
// ============================================================

func TestIntents_RejectedBeforeReady(t *testing.T) {
	c := New(&fakeIO{}, &fakeClock{}, Settings{})
	c.Start()

	if err := c.SetMode(ClimateHeat); !errors.Is(err, ErrNotReady) {
		t.Errorf("SetMode error = %v, want ErrNotReady", err)
	}
	if err := c.SetTargetTemperature(21); !errors.Is(err, ErrNotReady) {
		t.Errorf("SetTargetTemperature error = %v, want ErrNotReady", err)
	}
	if err := c.SetFanMode(ablink.FanAuto); !errors.Is(err, ErrNotReady) {
		t.Errorf("SetFanMode error = %v, want ErrNotReady", err)
	}
	if err := c.SetSwingMode(ablink.SwingVertical); !errors.Is(err, ErrNotReady) {
		t.Errorf("SetSwingMode error = %v, want ErrNotReady", err)
	}
	if err := c.SetIonizer(true); !errors.Is(err, ErrNotReady) {
		t.Errorf("SetIonizer error = %v, want ErrNotReady", err)
	}
}

func TestSetMode_PowersOnFirst(t *testing.T) {
	c, _, _ := newReadyController(t, Settings{})

	if err := c.SetMode(ClimateHeat); err != nil {
		t.Fatal(err)
	}

	if len(c.queue.frames) < 2 {
		t.Fatalf("queued %d frames, want power-on then mode", len(c.queue.frames))
	}
	if !bytes.Equal(c.queue.frames[0], ablink.WriteRequest(ablink.CmdPowerState, uint8(ablink.PowerOn))) {
		t.Error("power-on write not first in queue")
	}
	if !bytes.Equal(c.queue.frames[1], ablink.WriteRequest(ablink.CmdMode, uint8(ablink.ModeHeat))) {
		t.Error("mode write not second in queue")
	}
	if c.Snapshot().Mode != ClimateHeat {
		t.Errorf("mode = %v, want heat", c.Snapshot().Mode)
	}
}

func TestSetMode_Off(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	powerOn(c, io, clk, ablink.ModeHeat)

	if err := c.SetMode(ClimateOff); err != nil {
		t.Fatal(err)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdPowerState, uint8(ablink.PowerOff))) {
		t.Error("power-off write not queued")
	}
	if c.Snapshot().Mode != ClimateOff {
		t.Errorf("mode = %v, want off", c.Snapshot().Mode)
	}
}

func TestSetMode_CoolingDisabled(t *testing.T) {
	c, _, _ := newReadyController(t, Settings{DisableCooling: true})

	for _, mode := range []ClimateMode{ClimateCool, ClimateDry, ClimateHeatCool} {
		if err := c.SetMode(mode); !errors.Is(err, ErrUnsupportedMode) {
			t.Errorf("SetMode(%v) error = %v, want ErrUnsupportedMode", mode, err)
		}
	}
	if err := c.SetMode(ClimateHeat); err != nil {
		t.Errorf("SetMode(heat) error = %v", err)
	}

	modes := c.Snapshot().SupportedModes
	if len(modes) != 3 {
		t.Errorf("supported modes = %v, want off/heat/fan_only", modes)
	}
}

func TestSetTargetTemperature_RoundingAndClamp(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	c.SetUseInternalThermistor(true)
	powerOn(c, io, clk, ablink.ModeHeat)

	tests := []struct {
		name    string
		request float64
		visible float64
		written uint8
	}{
		{"rounds to half degree", 21.26, 21.5, 21},
		{"clamps high", 42, 30, 30},
		{"plain whole degree", 23, 23, 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.queue.frames = nil
			if err := c.SetTargetTemperature(tt.request); err != nil {
				t.Fatal(err)
			}
			if got := c.Snapshot().TargetTemperature; got != tt.visible {
				t.Errorf("visible setpoint = %.2f, want %.2f", got, tt.visible)
			}
			if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdTargetTemperature, tt.written)) {
				t.Errorf("register write %d not queued", tt.written)
			}
		})
	}
}

func TestSetTargetTemperature_RejectedWhilePoweredOff(t *testing.T) {
	c, _, _ := newReadyController(t, Settings{})

	if err := c.SetTargetTemperature(21); !errors.Is(err, ErrPoweredOff) {
		t.Errorf("error = %v, want ErrPoweredOff", err)
	}
}

func TestSetTargetTemperature_ExternalSensorSkipsRegister(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	powerOn(c, io, clk, ablink.ModeHeat)

	if err := c.SetTargetTemperature(22); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().TargetTemperature != 22 {
		t.Errorf("visible setpoint = %.1f, want 22", c.Snapshot().TargetTemperature)
	}
	if len(c.queue.frames) != 0 {
		t.Error("register write queued although the thermostat loop owns the register")
	}
}

func TestSetFanMode(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	powerOn(c, io, clk, ablink.ModeHeat)

	if err := c.SetFanMode(ablink.FanAuto); err != nil {
		t.Fatal(err)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdFanMode, uint8(ablink.FanAuto))) {
		t.Error("fan write not queued")
	}
	if err := c.SetFanMode(ablink.FanMode(0x99)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("error = %v, want ErrInvalidValue", err)
	}
}

func TestSetSpecialMode_EightRequiresHeat(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	powerOn(c, io, clk, ablink.ModeCool)

	if err := c.SetSpecialMode(ablink.SpecialEightDegrees); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("error = %v, want ErrUnsupportedMode", err)
	}
}

func TestSetSpecialMode_BoundaryClamps(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	c.SetUseInternalThermistor(true)
	powerOn(c, io, clk, ablink.ModeHeat)

	// entering with a setpoint above the range clamps down to 16,
	// written with the +16 register offset
	c.dev.target = 20
	if err := c.SetSpecialMode(ablink.SpecialEightDegrees); err != nil {
		t.Fatal(err)
	}
	if c.dev.target != 16 {
		t.Errorf("setpoint = %d after entry, want 16", c.dev.target)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdTargetTemperature, 32)) {
		t.Error("clamped setpoint write (16+16) not queued")
	}

	// leaving with a setpoint below the standard minimum clamps up to 17
	c.queue.frames = nil
	c.dev.target = 10
	if err := c.SetSpecialMode(ablink.SpecialStandard); err != nil {
		t.Fatal(err)
	}
	if c.dev.target != 17 {
		t.Errorf("setpoint = %d after exit, want 17", c.dev.target)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdTargetTemperature, 17)) {
		t.Error("clamped setpoint write not queued")
	}
}

func TestEightDegrees_AutomaticSwitchover(t *testing.T) {
	c, io, clk := newReadyController(t, Settings{})
	c.SetUseInternalThermistor(true)
	powerOn(c, io, clk, ablink.ModeHeat)

	// a heating setpoint below 17 enters the eight-degrees range
	if err := c.SetTargetTemperature(16); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().SpecialMode != ablink.SpecialEightDegrees {
		t.Errorf("special mode = %v, want eight degrees", c.Snapshot().SpecialMode)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdSpecialMode, uint8(ablink.SpecialEightDegrees))) {
		t.Error("merit mode write not queued")
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdTargetTemperature, 32)) {
		t.Error("setpoint write with +16 offset not queued")
	}

	// raising the setpoint back out reverts to standard
	c.queue.frames = nil
	if err := c.SetTargetTemperature(18); err != nil {
		t.Fatal(err)
	}
	if c.Snapshot().SpecialMode != ablink.SpecialStandard {
		t.Errorf("special mode = %v, want standard", c.Snapshot().SpecialMode)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdTargetTemperature, 18)) {
		t.Error("plain setpoint write not queued")
	}
}

func TestSetIonizer(t *testing.T) {
	c, _, _ := newReadyController(t, Settings{})

	if err := c.SetIonizer(true); err != nil {
		t.Fatal(err)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdIonizer, ablink.IonizerOn)) {
		t.Error("ionizer-on write not queued")
	}
	if !c.Snapshot().Ionizer {
		t.Error("snapshot ionizer not set")
	}
}

func TestSetPowerSelect(t *testing.T) {
	c, _, _ := newReadyController(t, Settings{})

	if err := c.SetPowerSelect(ablink.Power75); err != nil {
		t.Fatal(err)
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdPowerSelect, uint8(ablink.Power75))) {
		t.Error("power select write not queued")
	}
	if err := c.SetPowerSelect(ablink.PowerSelect(0x01)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("error = %v, want ErrInvalidValue", err)
	}
}

// ============================================================
// Periodic Refresh Tests
// ============================================================

func TestPeriodicRefresh(t *testing.T) {
	c, _, clk := newReadyController(t, Settings{})

	// nothing before the holdoff expires
	clk.ms = c.startMs + refreshHoldoffMillis - 1
	c.Tick()
	if c.queue.Len() != 0 {
		t.Fatal("refresh fired during the holdoff window")
	}

	clk.ms = c.startMs + refreshHoldoffMillis + partialReadMillis + 1
	c.Tick()
	if !hasFrame(c.queue.frames, ablink.ReadRequest(ablink.CmdRoomTemperature)) {
		t.Error("partial refresh did not request the room temperature")
	}
	if hasFrame(c.queue.frames, ablink.ReadRequest(ablink.CmdFanMode)) {
		t.Error("partial refresh requested full register set")
	}
}

// ============================================================
// Sink and Restore Tests
// ============================================================

func TestSink_PublishedOnChange(t *testing.T) {
	io := &fakeIO{}
	clk := &fakeClock{}
	sink := &fakeSink{}
	c := New(io, clk, Settings{})
	c.SetSink(sink)
	c.Start()

	clk.ms = handshakeDelayMillis
	c.Tick()
	clk.advance(postHandshakeDelayMillis)
	c.Tick()
	clk.advance(initialReadDelayMillis)
	c.Tick()

	if !sink.last.Ready {
		t.Error("ready snapshot not published")
	}

	n := sink.count
	feed(c, io, clk, reportFrame(ablink.LenReportExternal, ablink.CmdIonizer, ablink.IonizerOn))
	if sink.count == n {
		t.Error("no publish after a state change")
	}
	if !sink.last.Ionizer {
		t.Error("published snapshot missing the change")
	}
}

func TestRestore_ReplaysOnReady(t *testing.T) {
	io := &fakeIO{}
	clk := &fakeClock{}
	c := New(io, clk, Settings{})
	c.Restore(PersistedState{
		Mode:              ClimateHeat,
		TargetTemperature: 21,
		FanMode:           ablink.FanAuto,
		SwingMode:         ablink.SwingVertical,
		PowerSelect:       ablink.Power100,

		UseInternalThermistor: true,
	})
	c.Start()

	clk.ms = handshakeDelayMillis
	c.Tick()
	clk.advance(postHandshakeDelayMillis)
	c.Tick()
	clk.advance(initialReadDelayMillis)
	c.Tick()

	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdMode, uint8(ablink.ModeHeat))) {
		t.Error("restored mode write not queued")
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdTargetTemperature, 21)) {
		t.Error("restored setpoint write not queued")
	}
	if !hasFrame(c.queue.frames, ablink.WriteRequest(ablink.CmdFanMode, uint8(ablink.FanAuto))) {
		t.Error("restored fan write not queued")
	}
	if c.Snapshot().Mode != ClimateHeat || c.Snapshot().TargetTemperature != 21 {
		t.Errorf("restored snapshot = %+v", c.Snapshot())
	}
}
