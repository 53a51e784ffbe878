package model

import "strings"

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"

	DefaultSeverity = SeverityModerate
)

// ParseSeverity maps a severity label to its canonical level. Matching is
// case-insensitive; "low" is read as minor and "high"/"critical" as severe.
// Unknown labels are returned verbatim with ok=false.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "minor", "low":
		return SeverityMinor, true
	case "moderate", "medium":
		return SeverityModerate, true
	case "severe", "high", "critical":
		return SeveritySevere, true
	default:
		return Severity(raw), false
	}
}

type RGB [3]int

// SeverityStyle describes how a severity level is rendered in reports and
// history listings.
type SeverityStyle struct {
	Level  Severity `json:"level"`
	Color  string   `json:"color"`
	RGB    RGB      `json:"rgb"`
	Marker float64  `json:"marker"`
}

var severityStyles = map[Severity]SeverityStyle{
	SeverityMinor:    {Level: SeverityMinor, Color: "green", RGB: RGB{0, 153, 51}, Marker: 0.15},
	SeverityModerate: {Level: SeverityModerate, Color: "yellow", RGB: RGB{255, 153, 0}, Marker: 0.45},
	SeveritySevere:   {Level: SeveritySevere, Color: "red", RGB: RGB{204, 0, 0}, Marker: 0.80},
}

// StyleFor returns the style of a raw severity label. Unrecognised labels
// render as moderate.
func StyleFor(raw string) SeverityStyle {
	level, ok := ParseSeverity(raw)
	if !ok {
		level = DefaultSeverity
	}
	return severityStyles[level]
}
