package model

import (
	"errors"
	"strings"
)

type Classification string

const (
	ClassificationAccident   Classification = "Accident Detected"
	ClassificationNoAccident Classification = "No Accident Detected"
)

const (
	// ErrorSentinel is the only text a failed upload ever exposes.
	ErrorSentinel = "Error processing video"
	// NoPlateDetected is the plate result for a video without readable plates.
	NoPlateDetected = "No license plate detected"
	// PlateNotVisible marks an entity whose plate could not be read.
	PlateNotVisible = "undefined"

	EntityPedestrian  = "pedestrian"
	EntityUnknownType = "unknown"
)

var ErrMalformedResponse = errors.New("malformed detector response")

type Entity struct {
	Type         string `json:"type"`
	LicensePlate string `json:"license_plate,omitempty"`
}

func (e Entity) IsPedestrian() bool {
	return strings.EqualFold(e.Type, EntityPedestrian)
}

// Normalized trims the entity fields. The type keeps its case; an empty type
// becomes EntityUnknownType.
func (e Entity) Normalized() Entity {
	e.Type = strings.TrimSpace(e.Type)
	if e.Type == "" {
		e.Type = EntityUnknownType
	}
	e.LicensePlate = strings.TrimSpace(e.LicensePlate)
	return e
}

// NormalizeEntities applies Normalized to every entity. A nil list becomes
// an empty one.
func NormalizeEntities(entities []Entity) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, entity := range entities {
		out = append(out, entity.Normalized())
	}
	return out
}

// PlateVisible reports whether the entity carries a readable plate.
func (e Entity) PlateVisible() bool {
	return e.LicensePlate != "" && e.LicensePlate != PlateNotVisible
}

type DetectionResult struct {
	Classification Classification `json:"result"`
	Severity       string         `json:"severity,omitempty"`
	Entities       []Entity       `json:"entities"`
	SnapshotPath   string         `json:"snapshot_path,omitempty"`
}

func (r DetectionResult) AccidentDetected() bool {
	return r.Classification == ClassificationAccident
}

type EntityPayload struct {
	Type         *string `json:"type"`
	LicensePlate *string `json:"license_plate"`
}

// PredictResponse is the wire shape of POST /predict. Every field is
// optional on the wire; Normalize turns it into a DetectionResult.
type PredictResponse struct {
	Result       *string         `json:"result"`
	Severity     *string         `json:"severity"`
	Entities     []EntityPayload `json:"entities"`
	SnapshotPath *string         `json:"snapshot_path"`
}

func (p PredictResponse) Normalize() (DetectionResult, error) {
	if p.Result == nil || strings.TrimSpace(*p.Result) == "" {
		return DetectionResult{}, ErrMalformedResponse
	}

	result := DetectionResult{
		Classification: Classification(strings.TrimSpace(*p.Result)),
	}
	if p.SnapshotPath != nil {
		result.SnapshotPath = *p.SnapshotPath
	}

	entities := make([]Entity, 0, len(p.Entities))
	for _, raw := range p.Entities {
		var entity Entity
		if raw.Type != nil {
			entity.Type = *raw.Type
		}
		if raw.LicensePlate != nil {
			entity.LicensePlate = *raw.LicensePlate
		}
		entities = append(entities, entity)
	}
	result.Entities = NormalizeEntities(entities)

	if result.AccidentDetected() {
		result.Severity = string(DefaultSeverity)
		if p.Severity != nil && strings.TrimSpace(*p.Severity) != "" {
			result.Severity = strings.TrimSpace(*p.Severity)
		}
	} else if p.Severity != nil {
		result.Severity = strings.TrimSpace(*p.Severity)
	}

	return result, nil
}

// PlateResponse is the wire shape of POST /detect-license-plate.
type PlateResponse struct {
	LicensePlates []string `json:"license_plates"`
}

// FirstPlate returns the first non-blank plate in the response.
func (p PlateResponse) FirstPlate() (string, bool) {
	for _, plate := range p.LicensePlates {
		if plate = strings.TrimSpace(plate); plate != "" {
			return plate, true
		}
	}
	return "", false
}

// PlateText is the user-facing outcome of a plate detection.
func (p PlateResponse) PlateText() string {
	if plate, ok := p.FirstPlate(); ok {
		return plate
	}
	return NoPlateDetected
}
