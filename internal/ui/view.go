package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/olhovivo/internal/logtail"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "loading…"
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderBody(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()

	tabs := []struct {
		key  string
		view viewKind
	}{
		{"1", viewStops}, {"2", viewLines}, {"3", viewVehicles}, {"4", viewRoads}, {"L", viewLogs},
	}
	parts := []string{styles.Logo.Render("olhovivo")}
	for _, tab := range tabs {
		label := tab.key + " " + tab.view.title()
		active := m.view == tab.view || (m.view == viewStop && tab.view == viewStops)
		if active {
			parts = append(parts, styles.ActiveTab.Render(label))
		} else {
			parts = append(parts, styles.Tab.Render(label))
		}
	}
	if m.pending > 0 {
		parts = append(parts, m.spinner.View())
	}
	if m.opts.Warning != "" {
		parts = append(parts, styles.WarningText.Render(m.opts.Warning))
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, " "))
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.searching {
		return styles.Footer.Width(m.width).Render(m.input.View())
	}
	hints := make([]string, 0, 8)
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, styles.AccentText.Render(h.Key)+" "+h.Desc)
	}
	return styles.Footer.Width(m.width).Render(strings.Join(hints, "  "))
}

func (m Model) renderBody() string {
	var title, content string
	switch m.view {
	case viewStops:
		title, content = m.renderStops()
	case viewStop:
		title, content = m.renderStop()
	case viewLines:
		title, content = m.renderLines()
	case viewVehicles:
		title, content = m.renderVehicles()
	case viewRoads:
		title, content = m.renderRoads()
	case viewLogs:
		title, content = m.renderLogs()
	}
	return m.renderTitledBox(title, content)
}

func (m Model) renderTitledBox(title, content string) string {
	styles := m.theme.Styles()
	header := styles.AccentText.Bold(true).Render(title)
	height := m.height - 4
	if height < 3 {
		height = 3
	}
	return styles.FocusPanel.
		Width(m.width - 2).
		Height(height).
		Render(header + "\n" + content)
}

// status renders the error or empty-state line of a view, or "".
func (m Model) status(v viewKind, loaded bool, n int, what string) string {
	styles := m.theme.Styles()
	if err := m.errs[v]; err != nil {
		return styles.DangerText.Render(errorText(err))
	}
	if loaded && n == 0 {
		return styles.MutedText.Render(emptyText(what))
	}
	return ""
}

func (m Model) renderStops() (string, string) {
	title := "Stops"
	if term := m.prefs.LastStopSearch; term != "" && m.stopsLoaded {
		title = fmt.Sprintf("Stops matching %q", term)
	}
	if !m.stopsLoaded && m.errs[viewStops] == nil {
		return title, m.theme.Styles().MutedText.Render("Press / to search stops by name or address")
	}
	if s := m.status(viewStops, m.stopsLoaded, len(m.stops), "stops"); s != "" {
		return title, s
	}
	return title, m.stopsTable.View()
}

func (m Model) renderStop() (string, string) {
	styles := m.theme.Styles()
	title := fmt.Sprintf("Stop %d · %s", m.stop.Code, m.stop.Name)

	var b strings.Builder
	b.WriteString(styles.MutedText.Render(m.stop.Address))
	b.WriteString("\n\n")
	if err := m.errs[viewStop]; err != nil {
		b.WriteString(styles.DangerText.Render(errorText(err)))
		b.WriteString("\n\n")
	}
	if len(m.stopLines) == 0 {
		if m.pending == 0 && m.errs[viewStop] == nil {
			b.WriteString(styles.MutedText.Render(emptyText("lines")))
		}
		return title, b.String()
	}
	b.WriteString(m.stopLinesTable.View())
	b.WriteString("\n\n")

	if !m.predicted {
		b.WriteString(styles.MutedText.Render("Press enter on a line for arrival predictions"))
		return title, b.String()
	}
	b.WriteString(styles.AccentText.Bold(true).Render(
		fmt.Sprintf("Arrivals · %s to %s", m.predictLine.Sign(), m.predictLine.Destination())))
	b.WriteString("\n")
	if len(m.predictions) == 0 && m.errs[viewStop] == nil {
		b.WriteString(styles.MutedText.Render(emptyText("predictions")))
	}
	for _, p := range m.predictions {
		b.WriteString(styles.Text.Render(fmt.Sprintf("%-8s dir %-2s ", p.Line, p.Direction)))
		b.WriteString(styles.SuccessText.Render(p.Arrival))
		b.WriteString("\n")
	}
	return title, b.String()
}

func (m Model) renderLines() (string, string) {
	title := "Lines"
	if term := m.prefs.LastLineSearch; term != "" && m.linesLoaded {
		title = fmt.Sprintf("Lines matching %q", term)
	}
	if !m.linesLoaded && m.errs[viewLines] == nil {
		return title, m.theme.Styles().MutedText.Render("Press / to search lines, enter to track one")
	}
	if s := m.status(viewLines, m.linesLoaded, len(m.lines), "lines"); s != "" {
		return title, s
	}
	return title, m.linesTable.View()
}

func (m Model) renderVehicles() (string, string) {
	styles := m.theme.Styles()
	snap := m.vehicles
	if !snap.Tracking {
		return "Vehicles", styles.MutedText.Render("No line tracked. Pick one in the Lines view (2).")
	}
	title := fmt.Sprintf("Vehicles · %s to %s", snap.Line.Sign(), snap.Line.Destination())

	var b strings.Builder
	info := fmt.Sprintf("%d vehicles", len(snap.Vehicles))
	if !snap.LastUpdated.IsZero() {
		info += " · updated " + snap.LastUpdated.Format("15:04:05")
	}
	if m.opts.PollTick > 0 {
		info += " · every " + m.opts.PollTick.Round(time.Second).String()
	}
	b.WriteString(styles.MutedText.Render(info))
	b.WriteString("\n")

	if snap.LastError != nil {
		msg := errorText(snap.LastError)
		if snap.IsStale() {
			msg = fmt.Sprintf("%s · %d polls failed, showing last known positions", msg, snap.ConsecutiveFailures)
			b.WriteString(styles.DangerText.Render(msg))
		} else {
			b.WriteString(styles.WarningText.Render(msg))
		}
		b.WriteString("\n")
	}
	if snap.HasVehicles && len(snap.Vehicles) == 0 {
		b.WriteString(styles.MutedText.Render(emptyText("vehicles")))
		return title, b.String()
	}
	b.WriteString(m.vehiclesTable.View())
	return title, b.String()
}

func (m Model) renderRoads() (string, string) {
	styles := m.theme.Styles()
	if s := m.status(viewRoads, m.roadsLoaded, len(m.roads), "road segments"); s != "" {
		return "Road speeds", s
	}
	fast := 0
	for _, r := range m.roads {
		if r.Fast() {
			fast++
		}
	}
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SpeedColor(true))).Render(fmt.Sprintf("%d fast", fast)) +
		styles.MutedText.Render(" · ") +
		lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SpeedColor(false))).Render(fmt.Sprintf("%d slow", len(m.roads)-fast))
	return "Road speeds", summary + "\n" + m.roadsTable.View()
}

func (m Model) renderLogs() (string, string) {
	title := "Logs"
	if m.opts.LogPath != "" {
		title += " · " + m.opts.LogPath
	}
	if err := m.errs[viewLogs]; err != nil {
		return title, m.theme.Styles().DangerText.Render(err.Error())
	}
	if len(m.logLines) == 0 {
		return title, m.theme.Styles().MutedText.Render("Log is empty")
	}
	return title, m.logViewport.View()
}

func (m *Model) updateLogViewport() {
	styles := m.theme.Styles()
	rendered := make([]string, 0, len(m.logLines))
	for _, line := range m.logLines {
		entry, ok := logtail.Parse(line)
		summary := logtail.Summarize(line)
		switch {
		case !ok:
			rendered = append(rendered, styles.Text.Render(summary))
		case entry.Level == "ERROR":
			rendered = append(rendered, styles.DangerText.Render(summary))
		case entry.Level == "WARN":
			rendered = append(rendered, styles.WarningText.Render(summary))
		case entry.Level == "DEBUG":
			rendered = append(rendered, styles.FaintText.Render(summary))
		default:
			rendered = append(rendered, styles.Text.Render(summary))
		}
	}
	m.logViewport.SetContent(strings.Join(rendered, "\n"))
	m.logViewport.GotoBottom()
}
