// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Config file override
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "sirocco",
	Short: "Toshiba AB-port air conditioner bridge",
	Long: `Sirocco - a bridge for the proprietary serial link between a Toshiba
indoor unit and its control module.

Provides a long-running control daemon plus tooling for watching the raw
link traffic while reverse engineering unit behavior.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the SIROCCO_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.2.0",
}

func init() {
	cobra.OnInitialize(initConfig)

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default sirocco.yaml in . or /etc/sirocco)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
