package model

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	PlateNotVisibleLabel  = "License number not visible"
	AccidentTypeCollision = "Vehicle collision"
	ClassificationLabel   = "Accident"

	// DisplayTimeLayout mirrors the locale string the console page renders.
	DisplayTimeLayout = "1/2/2006, 3:04:05 PM"
)

type VehicleSummary struct {
	Count int      `json:"count"`
	Types []string `json:"types"`
}

// ProcessedAccidentView is the read-only projection shown on the accident
// details page and printed in the PDF report.
type ProcessedAccidentView struct {
	Severity             string         `json:"severity"`
	Vehicles             VehicleSummary `json:"vehicles"`
	Pedestrians          int            `json:"pedestrians"`
	LicensePlate         string         `json:"licensePlate"`
	VisibleLicensePlates []string       `json:"visibleLicensePlates"`
	Timestamp            string         `json:"timestamp"`
	AccidentType         string         `json:"accidentType"`
	Classification       string         `json:"classification"`
}

// BuildProcessedView projects captured accident data. An absent entity list
// counts as zero vehicles and zero pedestrians.
func BuildProcessedView(severity string, entities []Entity, at time.Time) ProcessedAccidentView {
	view := ProcessedAccidentView{
		Severity:             severity,
		Vehicles:             VehicleSummary{Types: []string{}},
		VisibleLicensePlates: []string{},
		LicensePlate:         PlateNotVisibleLabel,
		Timestamp:            at.Format(DisplayTimeLayout),
		AccidentType:         AccidentTypeCollision,
		Classification:       ClassificationLabel,
	}

	for _, entity := range entities {
		if entity.IsPedestrian() {
			view.Pedestrians++
			continue
		}
		view.Vehicles.Count++
		view.Vehicles.Types = append(view.Vehicles.Types, Capitalize(entity.Type))
		if entity.PlateVisible() {
			view.VisibleLicensePlates = append(view.VisibleLicensePlates, entity.LicensePlate)
		}
	}

	if len(view.VisibleLicensePlates) > 0 {
		view.LicensePlate = view.VisibleLicensePlates[0]
	}

	return view
}

// Capitalize upper-cases the first rune and leaves the rest untouched.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// EntitiesLine renders "2 Car, 1 Pedestrian" style summaries for reports.
func (v ProcessedAccidentView) EntitiesLine() string {
	counts := make(map[string]int)
	order := make([]string, 0, len(v.Vehicles.Types))
	for _, t := range v.Vehicles.Types {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	parts := make([]string, 0, len(order)+1)
	for _, t := range order {
		parts = append(parts, pluralize(counts[t], t))
	}
	if v.Pedestrians > 0 {
		parts = append(parts, pluralize(v.Pedestrians, "Pedestrian"))
	}
	if len(parts) == 0 {
		return "None detected"
	}
	return strings.Join(parts, ", ")
}

// PlatesLine renders the visible plates for reports.
func (v ProcessedAccidentView) PlatesLine() string {
	if len(v.VisibleLicensePlates) == 0 {
		return PlateNotVisibleLabel
	}
	return strings.Join(v.VisibleLicensePlates, ", ")
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
