package model

import (
	"strconv"
	"strings"
	"time"
)

// AccidentRecord is a persisted detection as returned by the accidents API.
type AccidentRecord struct {
	ID           string   `json:"_id"`
	Result       string   `json:"result,omitempty"`
	Severity     string   `json:"severity,omitempty"`
	Entities     []Entity `json:"entities"`
	Timestamp    string   `json:"timestamp,omitempty"`
	Filename     string   `json:"filename,omitempty"`
	SnapshotPath string   `json:"snapshot_path,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

// Time parses the record timestamp. The service writes naive ISO-8601 values,
// which are read as local time.
func (r AccidentRecord) Time() (time.Time, bool) {
	raw := strings.TrimSpace(r.Timestamp)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalized returns the record with its entities trimmed the same way a
// live detection response is.
func (r AccidentRecord) Normalized() AccidentRecord {
	r.ID = strings.TrimSpace(r.ID)
	if r.Entities != nil {
		r.Entities = NormalizeEntities(r.Entities)
	}
	return r
}

func (r AccidentRecord) VisiblePlates() []string {
	plates := make([]string, 0, len(r.Entities))
	for _, entity := range r.Entities {
		if entity.PlateVisible() {
			plates = append(plates, entity.LicensePlate)
		}
	}
	return plates
}

// ProcessedView maps a stored record to the details projection. Records
// without a parsable timestamp are stamped with fallback.
func (r AccidentRecord) ProcessedView(fallback time.Time) ProcessedAccidentView {
	at, ok := r.Time()
	if !ok {
		at = fallback
	}
	severity := r.Severity
	if strings.TrimSpace(severity) == "" {
		severity = string(DefaultSeverity)
	}
	return BuildProcessedView(severity, NormalizeEntities(r.Entities), at)
}

// AccidentSummary is one row of the accident history listing.
type AccidentSummary struct {
	ID            string        `json:"id"`
	Date          string        `json:"date"`
	Time          string        `json:"time"`
	Severity      string        `json:"severity"`
	SeverityStyle SeverityStyle `json:"severity_style"`
	EntityCount   string        `json:"entity_count"`
	EntityTypes   string        `json:"entity_types"`
	LicensePlates string        `json:"license_plates"`
}

func (r AccidentRecord) Summary() AccidentSummary {
	summary := AccidentSummary{
		ID:            r.ID,
		Date:          "Unknown date",
		Time:          "Unknown time",
		Severity:      "Unknown",
		SeverityStyle: StyleFor(r.Severity),
		EntityCount:   "Unknown",
		EntityTypes:   "No data",
		LicensePlates: "No data",
	}

	if at, ok := r.Time(); ok {
		summary.Date = at.Format("Jan 2, 2006")
		summary.Time = at.Format("03:04 PM")
	}
	if r.Severity != "" {
		summary.Severity = r.Severity
	}

	if r.Entities != nil {
		summary.EntityCount = strconv.Itoa(len(r.Entities)) + " entities"
		types := make([]string, 0, len(r.Entities))
		for _, entity := range r.Entities {
			types = append(types, entity.Type)
		}
		summary.EntityTypes = strings.Join(types, ", ")
		summary.LicensePlates = "None visible"
		if plates := r.VisiblePlates(); len(plates) > 0 {
			summary.LicensePlates = strings.Join(plates, ", ")
		}
	}

	return summary
}

