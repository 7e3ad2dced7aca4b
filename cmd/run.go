// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coilworks/sirocco/pkg/aircon"
)

// tickInterval paces the control loop. 20 ms is well under the 100 ms
// transmit gates, so gating resolution stays dominated by the protocol
// timing rather than the loop.
const tickInterval = 20 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control daemon",
	Long: `Run the air conditioner control daemon.

Establishes the link to the indoor unit, restores the previously saved
state, and keeps the register mirror, thermostat loop and periodic refresh
running until interrupted. State is saved on every change and on shutdown.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log := newLogger()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("connection", connInfo).Msg("link opened")

	io := newPumpedIO(conn, log)

	ctrl := aircon.New(io, aircon.NewWallClock(), aircon.Settings{
		ThermostatMultiplier: viper.GetFloat64("thermostat.multiplier"),
		RunawayProtection:    viper.GetBool("thermostat.runaway"),
		DisableCooling:       viper.GetBool("policy.disable_cooling"),
	})
	ctrl.SetLogger(log)

	if path := viper.GetString("thermostat.sensor_file"); path != "" {
		ctrl.SetExternalSensor(&fileSensor{path: path})
		log.Info().Str("path", path).Msg("external room sensor attached")
	}

	statePath := viper.GetString("state.path")
	sink := &stateSink{log: log, path: statePath}
	ctrl.SetSink(sink)

	if st, err := aircon.LoadState(statePath); err == nil {
		ctrl.Restore(st)
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Msg("saved state unreadable, starting fresh")
	}

	ctrl.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctrl.Tick()
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			if err := aircon.SaveState(statePath, aircon.PersistedFromSnapshot(ctrl.Snapshot())); err != nil {
				log.Error().Err(err).Msg("saving state on shutdown")
			}
			return nil
		}
	}
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).
		Level(level).
		With().Timestamp().Logger()
}

// pumpedIO bridges the blocking Connection reads to the non-blocking
// ByteIO the control core expects. A single goroutine pumps bytes into a
// buffered channel; ReadByte drains it without blocking.
type pumpedIO struct {
	conn Connection
	ch   chan byte
}

func newPumpedIO(conn Connection, log zerolog.Logger) *pumpedIO {
	p := &pumpedIO{
		conn: conn,
		ch:   make(chan byte, 512),
	}
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				log.Error().Err(err).Msg("link read failed, pump stopped")
				close(p.ch)
				return
			}
			for _, b := range buf[:n] {
				p.ch <- b
			}
		}
	}()
	return p
}

func (p *pumpedIO) ReadByte() (byte, bool) {
	select {
	case b, ok := <-p.ch:
		return b, ok
	default:
		return 0, false
	}
}

func (p *pumpedIO) Write(buf []byte) error {
	_, err := p.conn.Write(buf)
	return err
}

// fileSensor reads the room temperature from a plain text file, the
// integration contract for host automation: whatever owns the real sensor
// writes the current value there.
type fileSensor struct {
	path string
}

func (s *fileSensor) Read() (float64, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// stateSink logs published snapshots and persists the restorable subset
// whenever it changes.
type stateSink struct {
	log  zerolog.Logger
	path string
	last aircon.PersistedState
	init bool
}

func (s *stateSink) Publish(snap aircon.Snapshot) {
	s.log.Info().
		Bool("ready", snap.Ready).
		Str("mode", snap.Mode.String()).
		Float64("target", snap.TargetTemperature).
		Float64("current", snap.CurrentTemperature).
		Str("fan", snap.FanMode.String()).
		Str("special", snap.SpecialMode.String()).
		Msg("state")

	st := aircon.PersistedFromSnapshot(snap)
	if s.init && st == s.last {
		return
	}
	s.last = st
	s.init = true

	if !snap.Ready {
		// nothing worth persisting before the link settles
		return
	}
	if err := aircon.SaveState(s.path, st); err != nil {
		s.log.Error().Err(err).Msg("saving state")
	}
}
