package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/five82/olhovivo/internal/sptrans"
)

// flexColumns gives fixed widths to all columns but the last, which takes
// what is left of width.
func flexColumns(width int, titles []string, fixed []int) []table.Column {
	cols := make([]table.Column, len(titles))
	used := 0
	for i, w := range fixed {
		cols[i] = table.Column{Title: titles[i], Width: w}
		used += w + 2
	}
	last := width - used - 2
	if last < 10 {
		last = 10
	}
	cols[len(titles)-1] = table.Column{Title: titles[len(titles)-1], Width: last}
	return cols
}

func stopColumns(width int) []table.Column {
	return flexColumns(width, []string{"Code", "Name", "Position", "Address"}, []int{10, 28, 22})
}

func stopRows(stops []sptrans.Stop) []table.Row {
	rows := make([]table.Row, 0, len(stops))
	for _, s := range stops {
		rows = append(rows, table.Row{strconv.Itoa(s.Code), s.Name, formatCoord(s.Lat, s.Lon), s.Address})
	}
	return rows
}

func lineColumns(width int) []table.Column {
	return flexColumns(width, []string{"Code", "Line", "Dir", "Heading to", "Route"}, []int{7, 9, 3, 24})
}

func lineRows(lines []sptrans.Line) []table.Row {
	rows := make([]table.Row, 0, len(lines))
	for _, l := range lines {
		route := l.MainTerminal + " ↔ " + l.SecondaryTerminal
		if l.Circular {
			route += " (circular)"
		}
		rows = append(rows, table.Row{strconv.Itoa(l.Code), l.Sign(), strconv.Itoa(l.Direction), l.Destination(), route})
	}
	return rows
}

func vehicleColumns(width int) []table.Column {
	return flexColumns(width, []string{"Prefix", "Accessible", "Updated", "Position"}, []int{8, 10, 10})
}

func vehicleRows(vehicles []sptrans.Vehicle) []table.Row {
	rows := make([]table.Row, 0, len(vehicles))
	for _, v := range vehicles {
		accessible := "no"
		if v.Accessible {
			accessible = "yes"
		}
		rows = append(rows, table.Row{string(v.Prefix), accessible, formatUpdate(v), formatCoord(v.Lat, v.Lon)})
	}
	return rows
}

func roadColumns(width int) []table.Column {
	return flexColumns(width, []string{"Segment", "km/h", "Pace", "Polyline"}, []int{24, 6, 5})
}

func roadRows(roads []sptrans.RoadSegment) []table.Row {
	rows := make([]table.Row, 0, len(roads))
	for _, r := range roads {
		pace := "slow"
		if r.Fast() {
			pace = "fast"
		}
		rows = append(rows, table.Row{r.ID, strconv.FormatFloat(r.Speed, 'f', 1, 64), pace, r.Polyline()})
	}
	return rows
}

func formatCoord(lat, lon float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lon)
}

func formatUpdate(v sptrans.Vehicle) string {
	if t := v.ParsedUpdate(); !t.IsZero() {
		return t.Local().Format("15:04:05")
	}
	return v.UpdatedAt
}
