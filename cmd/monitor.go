// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/coilworks/sirocco/pkg/ablink"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded link traffic in human-readable form",
	Long: `Continuously decode and display link frames as they arrive.

Each frame is shown with timestamp, decoded register or status content and
its origin (own query vs external change). Frames the decoder does not
recognize are dumped as hex, which is where new register discoveries start.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Sirocco - Link Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	asm := ablink.NewAssembler()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// a WebSocket read error means the bridge is gone for good
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		now := time.Now().UnixMilli()
		if dropped := asm.CheckTimeout(now); dropped > 0 {
			fmt.Printf("[RESYNC] discarded %d bytes\n", dropped)
		}

		for i := 0; i < n; i++ {
			frame, err := asm.Push(buf[i], now)
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(ablink.FormatFrame(frame))
			}
		}
	}
}
