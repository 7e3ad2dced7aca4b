// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Coilworks

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/coilworks/sirocco/pkg/ablink"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Live register dashboard",
	Long: `Watch the unit's registers update live in a terminal dashboard.

Every register report on the link updates its row in the table; status
blocks and handshake traffic appear in the event log below. Useful while
poking the unit with the IR handset to see which registers move.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// registerEntry is the last observed value of one register
type registerEntry struct {
	value    uint8
	external bool
	at       time.Time
}

type eventEntry struct {
	at      time.Time
	message string
	isError bool
}

// Messages
type frameMsg struct {
	frame *ablink.Frame
}
type readErrMsg struct {
	err error
}
type tickMsg time.Time

type tuiModel struct {
	connInfo  string
	frames    chan tea.Msg
	registers map[ablink.Command]registerEntry
	events    []eventEntry
	maxEvents int

	table table.Model

	frameCount int
	badFrames  int
	width      int
	height     int
	quitting   bool
	closed     bool
}

func newTUIModel(connInfo string, frames chan tea.Msg) tuiModel {
	columns := []table.Column{
		{Title: "Register", Width: 22},
		{Title: "Value", Width: 16},
		{Title: "Origin", Width: 10},
		{Title: "Age", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(12),
		table.WithFocused(true),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return tuiModel{
		connInfo:  connInfo,
		frames:    frames,
		registers: make(map[ablink.Command]registerEntry),
		maxEvents: 50,
		table:     t,
	}
}

func waitForFrame(frames chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-frames
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		waitForFrame(m.frames),
		tuiTick(),
		tea.EnterAltScreen,
	)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// ages in the table advance even without traffic
		m.refreshRows()
		return m, tuiTick()

	case frameMsg:
		m.frameCount++
		m.handleFrame(msg.frame)
		m.refreshRows()
		return m, waitForFrame(m.frames)

	case readErrMsg:
		if msg.err == ErrConnectionClosed {
			m.closed = true
			m.addEvent("connection closed", true)
			return m, nil
		}
		m.addEvent(fmt.Sprintf("read error: %v", msg.err), true)
		return m, waitForFrame(m.frames)
	}

	return m, nil
}

func (m *tuiModel) handleFrame(frame *ablink.Frame) {
	msg, err := ablink.Decode(frame)
	if err != nil {
		m.badFrames++
		m.addEvent(fmt.Sprintf("%v: %s", err, ablink.FormatHex(frame.Bytes())), true)
		return
	}

	switch v := msg.(type) {
	case ablink.RegisterReport:
		m.registers[v.Command] = registerEntry{
			value:    v.Value,
			external: v.External,
			at:       frame.Timestamp(),
		}
		if v.External {
			m.addEvent(fmt.Sprintf("external change: %s", ablink.FormatMessage(msg)), false)
		}
	default:
		m.addEvent(ablink.FormatMessage(msg), false)
	}
}

func (m *tuiModel) addEvent(message string, isError bool) {
	m.events = append(m.events, eventEntry{at: time.Now(), message: message, isError: isError})
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

func (m *tuiModel) refreshRows() {
	cmds := make([]ablink.Command, 0, len(m.registers))
	for cmd := range m.registers {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })

	rows := make([]table.Row, 0, len(cmds))
	for _, cmd := range cmds {
		e := m.registers[cmd]
		origin := "query"
		if e.external {
			origin = "external"
		}
		rows = append(rows, table.Row{
			cmd.String(),
			fmt.Sprintf("0x%02X", e.value),
			origin,
			formatAge(time.Since(e.at)),
		})
	}
	m.table.SetRows(rows)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SIROCCO - REGISTER DASHBOARD"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	if m.closed {
		s.WriteString(errorStyle.Render("✗ Connection closed"))
		s.WriteString("\n\n")
	}

	s.WriteString(fmt.Sprintf("%s %s   %s %s\n\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.frameCount)),
		labelStyle.Render("Rejected:"), func() string {
			if m.badFrames > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.badFrames))
			}
			return valueStyle.Render("0")
		}(),
	))

	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")

	logHeight := m.height - m.table.Height() - 12
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.events) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.events); i++ {
			entry := m.events[i]
			timestamp := entry.at.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					infoStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}

func runTUI(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	frames := make(chan tea.Msg, 64)

	// reader goroutine: assemble the byte stream into frames for the model
	go func() {
		asm := ablink.NewAssembler()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				frames <- readErrMsg{err: err}
				if err == ErrConnectionClosed {
					return
				}
				continue
			}
			now := time.Now().UnixMilli()
			asm.CheckTimeout(now)
			for i := 0; i < n; i++ {
				frame, err := asm.Push(buf[i], now)
				if err != nil {
					frames <- readErrMsg{err: err}
					continue
				}
				if frame != nil {
					frames <- frameMsg{frame: frame}
				}
			}
		}
	}()

	p := tea.NewProgram(newTUIModel(connInfo, frames))
	_, err = p.Run()
	return err
}
