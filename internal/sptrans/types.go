package sptrans

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twpayne/go-polyline"
)

// fastRoadSpeed is the speed (km/h) above which a road segment is drawn as fast.
const fastRoadSpeed = 60

// Line mirrors a line record from /Linha/Buscar and /Parada/BuscarLinhasPorParada.
type Line struct {
	Code              int    `json:"cl"`
	Circular          bool   `json:"lc"`
	Number            string `json:"lt"`
	Direction         int    `json:"sl"`
	Suffix            int    `json:"tl"`
	MainTerminal      string `json:"tp"`
	SecondaryTerminal string `json:"ts"`
}

// Sign returns the route number as printed on the bus sign, e.g. "8000-10".
func (l Line) Sign() string {
	if l.Suffix > 0 {
		return fmt.Sprintf("%s-%d", l.Number, l.Suffix)
	}
	return l.Number
}

// Destination returns the terminal the line heads to. Direction 1 runs from
// the main terminal to the secondary one, direction 2 the other way.
func (l Line) Destination() string {
	if l.Direction == 2 {
		return l.MainTerminal
	}
	return l.SecondaryTerminal
}

// Stop mirrors a stop record from /Parada/Buscar.
type Stop struct {
	Code    int     `json:"cp"`
	Name    string  `json:"np"`
	Address string  `json:"ed"`
	Lat     float64 `json:"py"`
	Lon     float64 `json:"px"`
}

// Prefix is a vehicle prefix. Upstream sends it either as a JSON number or
// a string; both are kept as text.
type Prefix string

// UnmarshalJSON accepts strings and numbers.
func (p *Prefix) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("vehicle prefix: %w", err)
		}
		*p = Prefix(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("vehicle prefix: %w", err)
	}
	*p = Prefix(n.String())
	return nil
}

// Vehicle is a position snapshot from /Posicao/Linha.
type Vehicle struct {
	Prefix     Prefix  `json:"p"`
	Accessible bool    `json:"a"`
	UpdatedAt  string  `json:"ta"`
	Lat        float64 `json:"py"`
	Lon        float64 `json:"px"`
}

// ParsedUpdate returns the last-update timestamp as time.Time when possible.
func (v Vehicle) ParsedUpdate() time.Time {
	return parseTime(v.UpdatedAt)
}

// ArrivalPrediction mirrors a /Previsao record. Chegada is free text and is
// never parsed.
type ArrivalPrediction struct {
	Line      string `json:"linha"`
	Direction string `json:"sentido"`
	Arrival   string `json:"chegada"`
}

// Coordinate is a point of a road segment.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoadSegment is a stretch of road with its current average speed (/KMZ).
type RoadSegment struct {
	ID          string       `json:"id"`
	Coordinates []Coordinate `json:"coordinates"`
	Speed       float64      `json:"velocidade"`
}

// Fast reports whether traffic on the segment runs above 60 km/h.
func (r RoadSegment) Fast() bool {
	return r.Speed > fastRoadSpeed
}

// Polyline returns the coordinates in Google encoded polyline form.
func (r RoadSegment) Polyline() string {
	if len(r.Coordinates) == 0 {
		return ""
	}
	coords := make([][]float64, 0, len(r.Coordinates))
	for _, c := range r.Coordinates {
		coords = append(coords, []float64{c.Lat, c.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
