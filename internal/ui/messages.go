package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/olhovivo/internal/logtail"
	"github.com/five82/olhovivo/internal/sptrans"
	"github.com/five82/olhovivo/internal/state"
)

type stopsMsg struct {
	term  string
	stops []sptrans.Stop
	err   error
}

type linesMsg struct {
	term  string
	lines []sptrans.Line
	err   error
}

type stopLinesMsg struct {
	stop  int
	lines []sptrans.Line
	err   error
}

type predictionsMsg struct {
	stop        int
	line        sptrans.Line
	predictions []sptrans.ArrivalPrediction
	err         error
}

type roadsMsg struct {
	roads []sptrans.RoadSegment
	err   error
}

// vehiclesMsg signals that a manual vehicle refresh has landed in the store.
type vehiclesMsg struct{}

type logsMsg struct {
	lines []string
	err   error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(uiRefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, requestTimeout)
}

func searchStopsCmd(ctx context.Context, f sptrans.Fetcher, term string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		stops, err := f.SearchStops(ctx, term)
		return stopsMsg{term: term, stops: stops, err: err}
	}
}

func searchLinesCmd(ctx context.Context, f sptrans.Fetcher, term string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		lines, err := f.SearchLines(ctx, term)
		return linesMsg{term: term, lines: lines, err: err}
	}
}

func stopLinesCmd(ctx context.Context, f sptrans.Fetcher, stop int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		lines, err := f.LinesByStop(ctx, stop)
		return stopLinesMsg{stop: stop, lines: lines, err: err}
	}
}

func predictionsCmd(ctx context.Context, f sptrans.Fetcher, stop int, line sptrans.Line) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		predictions, err := f.ArrivalPredictions(ctx, stop, line.Code)
		return predictionsMsg{stop: stop, line: line, predictions: predictions, err: err}
	}
}

func roadsCmd(ctx context.Context, f sptrans.Fetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		roads, err := f.RoadSpeeds(ctx)
		return roadsMsg{roads: roads, err: err}
	}
}

// refreshVehiclesCmd polls the tracked line once, outside the poller's cadence.
func refreshVehiclesCmd(ctx context.Context, f sptrans.Fetcher, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		line, ok := store.Tracked()
		if !ok {
			return vehiclesMsg{}
		}
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		vehicles, err := f.VehiclePositions(ctx, line.Code)
		store.Update(line.Code, vehicles, err)
		return vehiclesMsg{}
	}
}

func readLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, logTailLines)
		return logsMsg{lines: lines, err: err}
	}
}
