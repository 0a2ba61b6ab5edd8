package logtail

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path.
// A maxLines of zero or less returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is a decoded slog JSON line.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   []Attr
}

// Attr is one extra key of a log line, in file order.
type Attr struct {
	Key   string
	Value string
}

// Parse decodes a slog JSON line. ok is false for anything else.
func Parse(line string) (Entry, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Entry{}, false
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return Entry{}, false
	}

	var entry Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Entry{}, false
		}
		key, ok := tok.(string)
		if !ok {
			return Entry{}, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Entry{}, false
		}
		value := rawText(raw)
		switch key {
		case "time":
			entry.Time, _ = time.Parse(time.RFC3339Nano, value)
		case "level":
			entry.Level = value
		case "msg":
			entry.Message = value
		default:
			entry.Attrs = append(entry.Attrs, Attr{Key: key, Value: value})
		}
	}
	return entry, true
}

// Summarize renders a slog JSON line as "15:04:05 LEVEL msg key=value".
// Lines that are not JSON are returned unchanged.
func Summarize(line string) string {
	entry, ok := Parse(line)
	if !ok {
		return line
	}
	var b strings.Builder
	if !entry.Time.IsZero() {
		b.WriteString(entry.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	if entry.Level != "" {
		b.WriteString(fmt.Sprintf("%-5s ", entry.Level))
	}
	b.WriteString(entry.Message)
	for _, attr := range entry.Attrs {
		b.WriteByte(' ')
		b.WriteString(attr.Key)
		b.WriteByte('=')
		if strings.ContainsAny(attr.Value, " \t\"=") || attr.Value == "" {
			b.WriteString(fmt.Sprintf("%q", attr.Value))
		} else {
			b.WriteString(attr.Value)
		}
	}
	return b.String()
}

func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
