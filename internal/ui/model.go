package ui

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/olhovivo/internal/logging"
	"github.com/five82/olhovivo/internal/prefs"
	"github.com/five82/olhovivo/internal/sptrans"
	"github.com/five82/olhovivo/internal/state"
)

type viewKind int

const (
	viewStops viewKind = iota
	viewStop
	viewLines
	viewVehicles
	viewRoads
	viewLogs
)

func (v viewKind) title() string {
	switch v {
	case viewStops:
		return "Stops"
	case viewStop:
		return "Stop"
	case viewLines:
		return "Lines"
	case viewVehicles:
		return "Vehicles"
	case viewRoads:
		return "Roads"
	case viewLogs:
		return "Logs"
	default:
		return ""
	}
}

// Model is the Bubble Tea model for olhovivo.
type Model struct {
	ctx     context.Context
	fetcher sptrans.Fetcher
	store   *state.Store
	opts    Options
	logger  *slog.Logger

	theme Theme
	keys  keyMap
	prefs prefs.Prefs

	width  int
	height int

	view     viewKind
	prevView viewKind
	showHelp bool

	searching bool
	input     textinput.Model
	spinner   spinner.Model
	pending   int

	stopsTable     table.Model
	stopLinesTable table.Model
	linesTable     table.Model
	vehiclesTable  table.Model
	roadsTable     table.Model
	logViewport    viewport.Model

	stops       []sptrans.Stop
	stopsLoaded bool
	stop        sptrans.Stop
	stopLines   []sptrans.Line
	predictLine sptrans.Line
	predictions []sptrans.ArrivalPrediction
	predicted   bool
	lines       []sptrans.Line
	linesLoaded bool
	roads       []sptrans.RoadSegment
	roadsLoaded bool
	vehicles    state.Snapshot
	logLines    []string

	errs map[viewKind]error
}

// New builds the model from opts. Run calls it; tests drive it directly.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := GetTheme(opts.Prefs.Theme)

	input := textinput.New()
	input.Prompt = "/ "
	input.CharLimit = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:     ctx,
		fetcher: opts.Fetcher,
		store:   opts.Store,
		opts:    opts,
		logger:  opts.logger(),
		theme:   theme,
		keys:    DefaultKeyMap(),
		prefs:   opts.Prefs,
		input:   input,
		spinner: sp,
		errs:    make(map[viewKind]error),

		stopsTable:     newTable(stopColumns(80)),
		stopLinesTable: newTable(lineColumns(80)),
		linesTable:     newTable(lineColumns(80)),
		vehiclesTable:  newTable(vehicleColumns(80)),
		roadsTable:     newTable(roadColumns(80)),
		logViewport:    viewport.New(80, 20),
	}
	m.applyTheme()
	return m
}

func newTable(columns []table.Column) table.Model {
	return table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(10))
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if term := m.prefs.LastStopSearch; term != "" {
		cmds = append(cmds, searchStopsCmd(m.ctx, m.fetcher, term))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.syncVehicles()
		return m, tickCmd()

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stopsMsg:
		m.done()
		if msg.term != m.prefs.LastStopSearch {
			return m, nil
		}
		m.stops = msg.stops
		m.stopsLoaded = true
		m.errs[viewStops] = msg.err
		m.stopsTable.SetRows(stopRows(msg.stops))
		m.stopsTable.SetCursor(0)
		return m, nil

	case linesMsg:
		m.done()
		if msg.term != m.prefs.LastLineSearch {
			return m, nil
		}
		m.lines = msg.lines
		m.linesLoaded = true
		m.errs[viewLines] = msg.err
		m.linesTable.SetRows(lineRows(msg.lines))
		m.linesTable.SetCursor(0)
		return m, nil

	case stopLinesMsg:
		m.done()
		if msg.stop != m.stop.Code {
			return m, nil
		}
		m.stopLines = msg.lines
		m.errs[viewStop] = msg.err
		m.stopLinesTable.SetRows(lineRows(msg.lines))
		m.stopLinesTable.SetCursor(0)
		return m, nil

	case predictionsMsg:
		m.done()
		if msg.stop != m.stop.Code {
			return m, nil
		}
		m.predictLine = msg.line
		m.predictions = msg.predictions
		m.predicted = true
		m.errs[viewStop] = msg.err
		return m, nil

	case roadsMsg:
		m.done()
		m.roads = msg.roads
		m.roadsLoaded = true
		m.errs[viewRoads] = msg.err
		m.roadsTable.SetRows(roadRows(msg.roads))
		return m, nil

	case vehiclesMsg:
		m.done()
		m.syncVehicles()
		return m, nil

	case logsMsg:
		m.done()
		m.errs[viewLogs] = msg.err
		m.logLines = msg.lines
		m.updateLogViewport()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.searching {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			return m.submitSearch()
		case key.Matches(msg, m.keys.Escape):
			m.searching = false
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape) {
			m.showHelp = false
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		return m, nil
	case key.Matches(msg, m.keys.ViewStops):
		return m.switchTo(viewStops)
	case key.Matches(msg, m.keys.ViewLines):
		return m.switchTo(viewLines)
	case key.Matches(msg, m.keys.ViewVehicles):
		return m.switchTo(viewVehicles)
	case key.Matches(msg, m.keys.ViewRoads):
		return m.switchTo(viewRoads)
	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchTo(viewLogs)
	case key.Matches(msg, m.keys.Search):
		return m.startSearch()
	case key.Matches(msg, m.keys.Confirm):
		return m.selectRow()
	case key.Matches(msg, m.keys.Escape):
		return m.back()
	case key.Matches(msg, m.keys.Refresh):
		return m.refresh()
	}

	return m.forwardToActive(msg)
}

func (m Model) switchTo(v viewKind) (tea.Model, tea.Cmd) {
	if m.view != v {
		m.prevView = m.view
		m.view = v
	}
	switch v {
	case viewRoads:
		if !m.roadsLoaded {
			return m.load(roadsCmd(m.ctx, m.fetcher))
		}
	case viewLogs:
		return m.load(readLogsCmd(m.opts.LogPath))
	case viewVehicles:
		m.syncVehicles()
	}
	return m, nil
}

func (m Model) startSearch() (tea.Model, tea.Cmd) {
	switch m.view {
	case viewStops:
		m.input.Placeholder = "stop name or address"
		m.input.SetValue(m.prefs.LastStopSearch)
	case viewLines:
		m.input.Placeholder = "line number or terminal"
		m.input.SetValue(m.prefs.LastLineSearch)
	default:
		return m, nil
	}
	m.input.CursorEnd()
	m.searching = true
	return m, m.input.Focus()
}

func (m Model) submitSearch() (tea.Model, tea.Cmd) {
	term := strings.TrimSpace(m.input.Value())
	m.searching = false
	m.input.Blur()

	switch m.view {
	case viewStops:
		m.prefs.LastStopSearch = term
		m.savePrefs()
		return m.load(searchStopsCmd(m.ctx, m.fetcher, term))
	case viewLines:
		m.prefs.LastLineSearch = term
		m.savePrefs()
		return m.load(searchLinesCmd(m.ctx, m.fetcher, term))
	}
	return m, nil
}

func (m Model) selectRow() (tea.Model, tea.Cmd) {
	switch m.view {
	case viewStops:
		idx := m.stopsTable.Cursor()
		if idx < 0 || idx >= len(m.stops) {
			return m, nil
		}
		m.stop = m.stops[idx]
		m.stopLines = nil
		m.predictions = nil
		m.predicted = false
		m.errs[viewStop] = nil
		m.stopLinesTable.SetRows(nil)
		m.prevView = viewStops
		m.view = viewStop
		return m.load(stopLinesCmd(m.ctx, m.fetcher, m.stop.Code))

	case viewStop:
		idx := m.stopLinesTable.Cursor()
		if idx < 0 || idx >= len(m.stopLines) {
			return m, nil
		}
		return m.load(predictionsCmd(m.ctx, m.fetcher, m.stop.Code, m.stopLines[idx]))

	case viewLines:
		idx := m.linesTable.Cursor()
		if idx < 0 || idx >= len(m.lines) {
			return m, nil
		}
		m.store.Track(m.lines[idx])
		m.logger.Info("tracking line", slog.Int("line", m.lines[idx].Code), slog.String("sign", m.lines[idx].Sign()))
		m.prevView = viewLines
		m.view = viewVehicles
		m.syncVehicles()
		return m.load(refreshVehiclesCmd(m.ctx, m.fetcher, m.store))
	}
	return m, nil
}

func (m Model) back() (tea.Model, tea.Cmd) {
	switch m.view {
	case viewStops:
	case viewStop:
		m.view = viewStops
	default:
		target := m.prevView
		if target == m.view {
			target = viewStops
		}
		m.view = target
		m.prevView = viewStops
	}
	return m, nil
}

func (m Model) refresh() (tea.Model, tea.Cmd) {
	switch m.view {
	case viewStops:
		if m.stopsLoaded {
			return m.load(searchStopsCmd(m.ctx, m.fetcher, m.prefs.LastStopSearch))
		}
	case viewStop:
		if m.predicted {
			return m.load(predictionsCmd(m.ctx, m.fetcher, m.stop.Code, m.predictLine))
		}
		return m.load(stopLinesCmd(m.ctx, m.fetcher, m.stop.Code))
	case viewLines:
		if m.linesLoaded {
			return m.load(searchLinesCmd(m.ctx, m.fetcher, m.prefs.LastLineSearch))
		}
	case viewVehicles:
		if _, ok := m.store.Tracked(); ok {
			return m.load(refreshVehiclesCmd(m.ctx, m.fetcher, m.store))
		}
	case viewRoads:
		return m.load(roadsCmd(m.ctx, m.fetcher))
	case viewLogs:
		return m.load(readLogsCmd(m.opts.LogPath))
	}
	return m, nil
}

func (m Model) forwardToActive(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case viewStops:
		m.stopsTable, cmd = m.stopsTable.Update(msg)
	case viewStop:
		m.stopLinesTable, cmd = m.stopLinesTable.Update(msg)
	case viewLines:
		m.linesTable, cmd = m.linesTable.Update(msg)
	case viewVehicles:
		m.vehiclesTable, cmd = m.vehiclesTable.Update(msg)
	case viewRoads:
		m.roadsTable, cmd = m.roadsTable.Update(msg)
	case viewLogs:
		m.logViewport, cmd = m.logViewport.Update(msg)
	}
	return m, cmd
}

// load starts a request and the spinner.
func (m Model) load(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.pending++
	if m.pending == 1 {
		return m, tea.Batch(cmd, m.spinner.Tick)
	}
	return m, cmd
}

func (m *Model) done() {
	if m.pending > 0 {
		m.pending--
	}
}

func (m *Model) syncVehicles() {
	if m.store == nil {
		return
	}
	m.vehicles = m.store.Snapshot()
	m.vehiclesTable.SetRows(vehicleRows(m.vehicles.Vehicles))
}

func (m *Model) cycleTheme() {
	m.prefs.Theme = NextTheme(m.theme.Name)
	m.theme = GetTheme(m.prefs.Theme)
	m.applyTheme()
	m.savePrefs()
}

func (m *Model) applyTheme() {
	styles := m.theme.TableStyles()
	for _, t := range []*table.Model{&m.stopsTable, &m.stopLinesTable, &m.linesTable, &m.vehiclesTable, &m.roadsTable} {
		t.SetStyles(styles)
	}
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent))
	m.input.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent))
}

func (m Model) savePrefs() {
	if err := prefs.Save(m.opts.PrefsPath, m.prefs); err != nil {
		logging.LogError(m.logger, "save prefs failed", err)
	}
}

func (m *Model) resize() {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	// header, footer, search line and panel borders
	height := m.height - 7
	if height < 3 {
		height = 3
	}

	m.stopsTable.SetColumns(stopColumns(width))
	m.linesTable.SetColumns(lineColumns(width))
	m.stopLinesTable.SetColumns(lineColumns(width))
	m.vehiclesTable.SetColumns(vehicleColumns(width))
	m.roadsTable.SetColumns(roadColumns(width))
	for _, t := range []*table.Model{&m.stopsTable, &m.linesTable, &m.vehiclesTable, &m.roadsTable} {
		t.SetWidth(width)
		t.SetHeight(height)
	}
	m.stopLinesTable.SetWidth(width)
	m.stopLinesTable.SetHeight(height / 2)
	m.input.Width = width - 4

	m.logViewport.Width = width
	m.logViewport.Height = height
	m.updateLogViewport()
}
