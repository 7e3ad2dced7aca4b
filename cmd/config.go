// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Configuration keys, all overridable via SIROCCO_* environment variables.
//
//	thermostat.multiplier     proportional gain of the correction loop
//	thermostat.runaway        enable the forced-overshoot latch
//	thermostat.sensor_file    text file holding the external room temperature
//	policy.disable_cooling    restrict the unit to off/heat/fan-only
//	state.path                CBOR snapshot file for restart persistence
//	log.level                 zerolog level name
//	serial.port / serial.baud defaults when --port is not given
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("sirocco")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/sirocco")
	}

	viper.SetDefault("thermostat.multiplier", 4.0)
	viper.SetDefault("thermostat.runaway", true)
	viper.SetDefault("thermostat.sensor_file", "")
	viper.SetDefault("policy.disable_cooling", false)
	viper.SetDefault("state.path", "sirocco-state.cbor")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("serial.port", "")
	viper.SetDefault("serial.baud", 9600)

	viper.SetEnvPrefix("sirocco")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		// no config file is fine, defaults and flags apply
	}

	// flags take precedence, config fills the gaps
	if portName == "" {
		portName = viper.GetString("serial.port")
	}
}
