// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Coilworks

package aircon

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/coilworks/sirocco/pkg/ablink"
)

// PersistedState is the subset of state restored across restarts. Encoded
// as CBOR with integer keys to keep the file stable across field renames.
type PersistedState struct {
	Mode                  ClimateMode        `cbor:"1,keyasint"`
	TargetTemperature     float64            `cbor:"2,keyasint"`
	FanMode               ablink.FanMode     `cbor:"3,keyasint"`
	SwingMode             ablink.SwingMode   `cbor:"4,keyasint"`
	UseInternalThermistor bool               `cbor:"5,keyasint"`
	Ionizer               bool               `cbor:"6,keyasint"`
	PowerSelect           ablink.PowerSelect `cbor:"7,keyasint"`
}

// PersistedFromSnapshot extracts the restorable subset of a snapshot
func PersistedFromSnapshot(s Snapshot) PersistedState {
	return PersistedState{
		Mode:                  s.Mode,
		TargetTemperature:     s.TargetTemperature,
		FanMode:               s.FanMode,
		SwingMode:             s.SwingMode,
		UseInternalThermistor: s.UseInternalThermistor,
		Ionizer:               s.Ionizer,
		PowerSelect:           s.PowerSelect,
	}
}

// SaveState writes the persisted state to path
func SaveState(path string, st PersistedState) error {
	data, err := cbor.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// LoadState reads a previously saved state from path
func LoadState(path string) (PersistedState, error) {
	var st PersistedState
	data, err := os.ReadFile(path)
	if err != nil {
		return st, fmt.Errorf("reading state file: %w", err)
	}
	if err := cbor.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decoding state file: %w", err)
	}
	return st, nil
}

// Restore schedules a saved state to be reapplied once the link is
// established. Must be called before Start.
func (c *Controller) Restore(st PersistedState) {
	c.restore = &st
}

// applyRestore replays the saved state onto the unit. Runs on the ready
// tick, after the initial register reads are queued, so the restored
// writes land after the unit has answered with its own view.
func (c *Controller) applyRestore() {
	st := c.restore
	c.restore = nil

	c.log.Info().Str("mode", st.Mode.String()).
		Float64("target", st.TargetTemperature).Msg("restoring saved state")

	c.snap.UseInternalThermistor = st.UseInternalThermistor

	if err := c.SetMode(st.Mode); err != nil {
		c.log.Error().Err(err).Msg("restore: mode")
	}
	if st.Mode == ClimateOff {
		return
	}
	if err := c.SetTargetTemperature(st.TargetTemperature); err != nil {
		c.log.Error().Err(err).Msg("restore: setpoint")
	}
	if err := c.SetFanMode(st.FanMode); err != nil {
		c.log.Error().Err(err).Msg("restore: fan")
	}
	if err := c.SetSwingMode(st.SwingMode); err != nil {
		c.log.Error().Err(err).Msg("restore: swing")
	}
	if err := c.SetPowerSelect(st.PowerSelect); err != nil {
		c.log.Error().Err(err).Msg("restore: power select")
	}
	if err := c.SetIonizer(st.Ionizer); err != nil {
		c.log.Error().Err(err).Msg("restore: ionizer")
	}
}
