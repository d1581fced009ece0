package export

import (
	"fmt"
	"strings"
	"time"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatJSON, FormatCSV, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Preset is a named time range relative to the export time
type Preset string

const (
	PresetAll        Preset = "all"
	PresetLast7Days  Preset = "last_7_days"
	PresetLast30Days Preset = "last_30_days"
	PresetLast90Days Preset = "last_90_days"
	PresetThisYear   Preset = "this_year"
)

func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PresetAll, nil
	case PresetAll, PresetLast7Days, PresetLast30Days, PresetLast90Days, PresetThisYear:
		return p, nil
	}
	return "", fmt.Errorf("unknown range preset %q", s)
}

// Request describes one export. Explicit bounds take precedence over Preset;
// both bounds are inclusive.
type Request struct {
	Start        *time.Time
	End          *time.Time
	Preset       Preset
	Format       Format
	IncludeMedia bool
}

// bounds resolves the request to an inclusive range; nil means unbounded
func (r Request) bounds(now time.Time) (*time.Time, *time.Time) {
	if r.Start != nil || r.End != nil {
		return r.Start, r.End
	}

	now = now.UTC()
	var start time.Time
	switch r.Preset {
	case PresetLast7Days:
		start = now.AddDate(0, 0, -7)
	case PresetLast30Days:
		start = now.AddDate(0, 0, -30)
	case PresetLast90Days:
		start = now.AddDate(0, 0, -90)
	case PresetThisYear:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return nil, nil
	}
	return &start, &now
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}
