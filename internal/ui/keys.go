package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding
	Refresh    key.Binding

	// View switching
	ViewStops    key.Binding
	ViewLines    key.Binding
	ViewVehicles key.Binding
	ViewRoads    key.Binding
	ViewLogs     key.Binding

	// Actions
	Search  key.Binding
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),

		ViewStops: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Stops"),
		),
		ViewLines: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Lines"),
		),
		ViewVehicles: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Vehicles"),
		),
		ViewRoads: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Road speeds"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Logs"),
		),

		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Select"),
		),
	}
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ViewStops, k.ViewLines, k.ViewVehicles, k.ViewRoads, k.Search, k.Refresh, k.Help, k.Quit}
}
