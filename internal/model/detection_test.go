package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func decodePredict(t *testing.T, body string) PredictResponse {
	t.Helper()
	var resp PredictResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestNormalizeAccidentDefaults(t *testing.T) {
	result, err := decodePredict(t, `{"result":"Accident Detected"}`).Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !result.AccidentDetected() {
		t.Fatalf("expected accident classification, got %q", result.Classification)
	}
	if result.Severity != "moderate" {
		t.Errorf("expected default severity moderate, got %q", result.Severity)
	}
	if result.Entities == nil || len(result.Entities) != 0 {
		t.Errorf("expected empty entity list, got %#v", result.Entities)
	}
}

func TestNormalizeEntities(t *testing.T) {
	body := `{"result":"Accident Detected","severity":"High","entities":[
		{"type":"Car","license_plate":" ABC-1234 "},
		{"type":""},
		{"license_plate":"undefined"},
		{"type":"pedestrian"}
	]}`
	result, err := decodePredict(t, body).Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result.Severity != "High" {
		t.Errorf("expected severity kept verbatim, got %q", result.Severity)
	}
	want := []Entity{
		{Type: "Car", LicensePlate: "ABC-1234"},
		{Type: EntityUnknownType},
		{Type: EntityUnknownType, LicensePlate: "undefined"},
		{Type: "pedestrian"},
	}
	if len(result.Entities) != len(want) {
		t.Fatalf("expected %d entities, got %d", len(want), len(result.Entities))
	}
	for i := range want {
		if result.Entities[i] != want[i] {
			t.Errorf("entity %d: want %+v, got %+v", i, want[i], result.Entities[i])
		}
	}
}

func TestNormalizeNoAccidentLeavesSeverityEmpty(t *testing.T) {
	result, err := decodePredict(t, `{"result":"No Accident Detected"}`).Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result.AccidentDetected() {
		t.Fatalf("unexpected accident classification")
	}
	if result.Severity != "" {
		t.Errorf("expected no severity, got %q", result.Severity)
	}
}

func TestNormalizeRejectsMissingResult(t *testing.T) {
	for _, body := range []string{`{}`, `{"result":"  "}`, `{"severity":"minor"}`} {
		if _, err := decodePredict(t, body).Normalize(); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%s: expected ErrMalformedResponse, got %v", body, err)
		}
	}
}

func TestPlateText(t *testing.T) {
	cases := []struct {
		name string
		resp PlateResponse
		want string
	}{
		{"first plate", PlateResponse{LicensePlates: []string{"XYZ-999", "ABC-1"}}, "XYZ-999"},
		{"empty list", PlateResponse{LicensePlates: []string{}}, NoPlateDetected},
		{"missing list", PlateResponse{}, NoPlateDetected},
		{"blank entries skipped", PlateResponse{LicensePlates: []string{"", " KA-01 "}}, "KA-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.resp.PlateText(); got != tc.want {
				t.Errorf("PlateText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"Minor", SeverityMinor, true},
		{"low", SeverityMinor, true},
		{"MODERATE", SeverityModerate, true},
		{"Severe", SeveritySevere, true},
		{"High", SeveritySevere, true},
		{"Critical", SeveritySevere, true},
		{"Unknown", Severity("Unknown"), false},
	}
	for _, tc := range cases {
		got, ok := ParseSeverity(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseSeverity(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}

	if style := StyleFor("whatever"); style.Level != SeverityModerate || style.Marker != 0.45 {
		t.Errorf("unknown severity should style as moderate, got %+v", style)
	}
	if style := StyleFor("severe"); style.Color != "red" || style.Marker != 0.80 {
		t.Errorf("unexpected severe style %+v", style)
	}
}
