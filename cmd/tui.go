// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Latest decoded value of one catalog field
type fieldValue struct {
	circuit string
	field   string
	value   string
	unit    string
	updated time.Time
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *ebus.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	width         int
	height        int
	quitting      bool
	disconnected  bool

	showValues bool
	values     map[string]fieldValue
	valueTable table.Model
}

// Messages
type tickMsg time.Time
type telegramMsg struct {
	req     ebus.Request
	resp    *ebus.Response
	records []catalog.Record
}
type dropMsg struct {
	reason ebus.DropReason
	req    ebus.Request
}
type adapterMsg struct {
	ev ebus.AdapterEvent
}
type framingMsg struct {
	total uint64
}
type disconnectedMsg struct{}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d.Seconds())
	if seconds <= 0 {
		return "0 seconds"
	}

	days := seconds / 86400
	hours := seconds / 3600 % 24
	minutes := seconds / 60 % 60
	seconds %= 60

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func newValueTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Circuit", Width: 16},
			{Title: "Field", Width: 22},
			{Title: "Value", Width: 12},
			{Title: "Unit", Width: 6},
			{Title: "Updated", Width: 12},
		}),
		table.WithHeight(8),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("10")).
		Bold(false)
	t.SetStyles(styles)
	return t
}

func initialModel(connInfo string, statsInterval int, showAll, showValues bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         ebus.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		showValues:    showValues,
		values:        make(map[string]fieldValue),
		valueTable:    newValueTable(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if m.showValues {
			var cmd tea.Cmd
			m.valueTable, cmd = m.valueTable.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case telegramMsg:
		m.stats.Telegram(&msg.req, msg.resp)
		if !m.synchronized {
			m.synchronized = true
			m.addLogEntry("Synchronized", false)
		}
		if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s %s->%s %s (valid)",
				ebus.TelegramKind(&msg.req), msg.req.SrcHex(), msg.req.DestHex(), msg.req.CommandHex()), false)
		}
		if len(msg.records) > 0 {
			m.updateValues(msg.records)
		}

	case dropMsg:
		m.stats.Drop(msg.reason)
		m.addLogEntry(fmt.Sprintf("%s: %s->%s %s", msg.reason,
			msg.req.SrcHex(), msg.req.DestHex(), msg.req.CommandHex()), msg.reason != ebus.DropNACK)

	case adapterMsg:
		m.stats.Adapter(msg.ev)
		switch msg.ev.Kind {
		case ebus.AdapterBusError, ebus.AdapterHostError, ebus.AdapterUnknown:
			m.addLogEntry(ebus.FormatAdapterEvent(msg.ev), true)
		case ebus.AdapterReset:
			m.addLogEntry(ebus.FormatAdapterEvent(msg.ev), false)
		default:
			if m.showAll {
				m.addLogEntry(ebus.FormatAdapterEvent(msg.ev), false)
			}
		}

	case framingMsg:
		if msg.total > m.stats.FramingErrors {
			m.addLogEntry(fmt.Sprintf("FRAMING ERROR: %d malformed escape sequence(s) skipped",
				msg.total-m.stats.FramingErrors), true)
		}
		m.stats.FramingErrors = msg.total

	case disconnectedMsg:
		m.disconnected = true
		m.addLogEntry("Connection closed", true)
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// updateValues stores the latest value of every decoded field and rebuilds
// the table rows in circuit/field order
func (m *model) updateValues(records []catalog.Record) {
	now := time.Now()
	for _, r := range records {
		for _, f := range r.Fields {
			m.values[r.Circuit+"/"+f.Name] = fieldValue{
				circuit: r.Circuit,
				field:   f.Name,
				value:   f.Value.String(),
				unit:    f.Unit,
				updated: now,
			}
		}
	}

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]table.Row, 0, len(keys))
	for _, k := range keys {
		v := m.values[k]
		rows = append(rows, table.Row{v.circuit, v.field, v.value, v.unit, v.updated.Format("15:04:05")})
	}
	m.valueTable.SetRows(rows)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("EBUSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All telegrams"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Uptime: %s | Press 'q' to quit",
		m.connInfo, mode, formatUptime(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.disconnected:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for first valid telegram..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalTelegrams > 0 {
		validPercent = float64(m.stats.ValidTelegrams) * 100.0 / float64(m.stats.TotalTelegrams)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalTelegrams)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalTelegrams)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidTelegrams, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Errors(), errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("With response:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.WithResponse)),
		statsLabelStyle.Render("Broadcast:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.BroadcastMessages)),
		statsLabelStyle.Render("NACKs:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.NACKs)),
	))

	if m.stats.ChecksumErrors > 0 || m.stats.LengthErrors > 0 || m.stats.ProtocolErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			statsLabelStyle.Render("Length:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.LengthErrors)),
			statsLabelStyle.Render("Protocol:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ProtocolErrors)),
		))
	}

	if m.stats.FramingErrors > 0 || m.stats.AdapterEvents > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
			statsLabelStyle.Render("Framing:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FramingErrors)),
			statsLabelStyle.Render("Adapter events:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.AdapterEvents)),
		))
		if m.stats.AdapterErrors > 0 {
			statsContent.WriteString(headerStyle.Render(fmt.Sprintf(" (%d errors)", m.stats.AdapterErrors)))
		}
		statsContent.WriteString("\n")
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Telegram Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f tgm/s", m.stats.TelegramRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	reserved := 17
	if m.showValues {
		s.WriteString(statsLabelStyle.Render("Decoded Values:"))
		s.WriteString("\n")
		if len(m.values) == 0 {
			s.WriteString(boxStyle.Render(headerStyle.Render("(no catalog matches yet)")))
		} else {
			s.WriteString(boxStyle.Render(m.valueTable.View()))
		}
		s.WriteString("\n\n")
		reserved += 12
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - reserved
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
