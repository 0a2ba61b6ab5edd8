package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/five82/olhovivo/internal/sptrans"
)

// ErrUsage is returned by Query for an unknown command or bad arguments.
var ErrUsage = errors.New("usage")

// Commands lists the one-shot query commands and their arguments.
var Commands = []struct {
	Name string
	Args string
	Help string
}{
	{"stops", "<term>", "search stops by name or address"},
	{"lines", "<term>", "search lines by number or terminal"},
	{"stop-lines", "<stop-code>", "lines serving a stop"},
	{"vehicles", "<line-code>", "live vehicle positions of a line"},
	{"predictions", "<stop-code> <line-code>", "arrival estimates of a line at a stop"},
	{"roads", "", "average speed per road segment"},
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Query runs one command against fetcher and prints the result as a table.
func Query(ctx context.Context, w io.Writer, fetcher sptrans.Fetcher, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	cmd, rest := args[0], args[1:]

	var (
		headers []string
		rows    [][]string
		err     error
	)
	switch cmd {
	case "stops":
		var stops []sptrans.Stop
		stops, err = fetcher.SearchStops(ctx, strings.Join(rest, " "))
		headers, rows = stopRows(stops)
	case "lines":
		var lines []sptrans.Line
		lines, err = fetcher.SearchLines(ctx, strings.Join(rest, " "))
		headers, rows = lineRows(lines)
	case "stop-lines":
		codes, perr := intArgs(cmd, rest, 1)
		if perr != nil {
			return perr
		}
		var lines []sptrans.Line
		lines, err = fetcher.LinesByStop(ctx, codes[0])
		headers, rows = lineRows(lines)
	case "vehicles":
		codes, perr := intArgs(cmd, rest, 1)
		if perr != nil {
			return perr
		}
		var vehicles []sptrans.Vehicle
		vehicles, err = fetcher.VehiclePositions(ctx, codes[0])
		headers, rows = vehicleRows(vehicles)
	case "predictions":
		codes, perr := intArgs(cmd, rest, 2)
		if perr != nil {
			return perr
		}
		var predictions []sptrans.ArrivalPrediction
		predictions, err = fetcher.ArrivalPredictions(ctx, codes[0], codes[1])
		headers, rows = predictionRows(predictions)
	case "roads":
		var roads []sptrans.RoadSegment
		roads, err = fetcher.RoadSpeeds(ctx)
		headers, rows = roadRows(roads)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
	if err != nil {
		return fmt.Errorf("%s: %s: %w", cmd, describe(err), err)
	}

	if len(rows) == 0 {
		_, werr := fmt.Fprintln(w, "no results")
		return werr
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, werr := fmt.Fprintln(w, t.String())
	return werr
}

func describe(err error) string {
	switch sptrans.KindOf(err) {
	case sptrans.KindAuth:
		return "authentication failed (check the API token)"
	case sptrans.KindShape:
		return "unexpected response from the service"
	default:
		if status := sptrans.StatusOf(err); status > 0 {
			return fmt.Sprintf("service error (HTTP %d)", status)
		}
		return "service unreachable"
	}
}

func intArgs(cmd string, args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: %s expects %d numeric argument(s)", ErrUsage, cmd, n)
	}
	out := make([]int, 0, n)
	for _, arg := range args {
		v, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q is not a number", ErrUsage, cmd, arg)
		}
		out = append(out, v)
	}
	return out, nil
}

func stopRows(stops []sptrans.Stop) ([]string, [][]string) {
	rows := make([][]string, 0, len(stops))
	for _, s := range stops {
		rows = append(rows, []string{strconv.Itoa(s.Code), s.Name, s.Address, formatCoord(s.Lat, s.Lon)})
	}
	return []string{"Code", "Name", "Address", "Position"}, rows
}

func lineRows(lines []sptrans.Line) ([]string, [][]string) {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		circular := ""
		if l.Circular {
			circular = "yes"
		}
		rows = append(rows, []string{strconv.Itoa(l.Code), l.Sign(), l.MainTerminal + " ↔ " + l.SecondaryTerminal, l.Destination(), circular})
	}
	return []string{"Code", "Line", "Route", "Heading to", "Circular"}, rows
}

func vehicleRows(vehicles []sptrans.Vehicle) ([]string, [][]string) {
	rows := make([][]string, 0, len(vehicles))
	for _, v := range vehicles {
		accessible := ""
		if v.Accessible {
			accessible = "♿"
		}
		updated := v.UpdatedAt
		if t := v.ParsedUpdate(); !t.IsZero() {
			updated = t.Local().Format("15:04:05")
		}
		rows = append(rows, []string{string(v.Prefix), accessible, updated, formatCoord(v.Lat, v.Lon)})
	}
	return []string{"Prefix", "Accessible", "Updated", "Position"}, rows
}

func predictionRows(predictions []sptrans.ArrivalPrediction) ([]string, [][]string) {
	rows := make([][]string, 0, len(predictions))
	for _, p := range predictions {
		rows = append(rows, []string{p.Line, p.Direction, p.Arrival})
	}
	return []string{"Line", "Direction", "Arrival"}, rows
}

func roadRows(roads []sptrans.RoadSegment) ([]string, [][]string) {
	rows := make([][]string, 0, len(roads))
	for _, r := range roads {
		pace := "slow"
		if r.Fast() {
			pace = "fast"
		}
		rows = append(rows, []string{r.ID, strconv.FormatFloat(r.Speed, 'f', 1, 64), pace, r.Polyline()})
	}
	return []string{"Segment", "km/h", "Pace", "Polyline"}, rows
}

func formatCoord(lat, lon float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lon)
}
