package history

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	"crashanalytix-console/internal/detector"
	"crashanalytix-console/internal/model"
)

type fakeSource struct {
	records    []model.AccidentRecord
	listErr    error
	getErr     error
	probe      bool
	probeErr   error
	collage    []byte
	collageErr error

	sortedBy []bool
	probed   []string
}

func (f *fakeSource) ListAccidents(_ context.Context, sortBySeverity bool) ([]model.AccidentRecord, error) {
	f.sortedBy = append(f.sortedBy, sortBySeverity)
	return f.records, f.listErr
}

func (f *fakeSource) GetAccident(_ context.Context, id string) (*model.AccidentRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.records {
		if r.ID == id {
			record := r
			return &record, nil
		}
	}
	return nil, detector.ErrNotFound
}

func (f *fakeSource) CollageURL(id string) string {
	return "http://detector/collages/" + id + ".jpg"
}

func (f *fakeSource) CollageExists(_ context.Context, id string) (bool, error) {
	f.probed = append(f.probed, id)
	return f.probe, f.probeErr
}

func (f *fakeSource) FetchCollage(context.Context, string) ([]byte, error) {
	return f.collage, f.collageErr
}

type countingRecorder map[string]int

func (c countingRecorder) HistoryRequest(op, outcome string) {
	c[op+"/"+outcome]++
}

func newService(src Source, rec Recorder) *Service {
	clock := clockz.NewFakeClock()
	return NewService(src, rec, clock, zerolog.Nop())
}

func TestListPassesSortFlagAndPreservesOrder(t *testing.T) {
	src := &fakeSource{records: []model.AccidentRecord{
		{ID: "a", Severity: "Severe", Timestamp: "2025-03-04T14:05:06"},
		{ID: "b", Severity: "Minor"},
	}}
	rec := countingRecorder{}
	svc := newService(src, rec)

	listing, err := svc.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(src.sortedBy) != 1 || !src.sortedBy[0] {
		t.Fatalf("sort flag not forwarded: %v", src.sortedBy)
	}
	if len(listing.Summaries) != 2 || listing.Summaries[0].ID != "a" || listing.Summaries[1].ID != "b" {
		t.Fatalf("unexpected summaries: %+v", listing.Summaries)
	}
	if listing.Summaries[1].Date != "Unknown date" {
		t.Errorf("Date = %q, want Unknown date", listing.Summaries[1].Date)
	}
	if rec["list/ok"] != 1 {
		t.Errorf("recorder = %v", rec)
	}
}

func TestListEmpty(t *testing.T) {
	svc := newService(&fakeSource{}, nil)

	listing, err := svc.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if listing.Records == nil || len(listing.Records) != 0 || len(listing.Summaries) != 0 {
		t.Fatalf("expected empty listing, got %+v", listing)
	}
}

func TestListTransportError(t *testing.T) {
	src := &fakeSource{listErr: &detector.TransportError{Op: "list-accidents", StatusCode: http.StatusBadGateway}}
	rec := countingRecorder{}
	svc := newService(src, rec)

	_, err := svc.List(context.Background(), false)
	if !detector.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if rec["list/error"] != 1 {
		t.Errorf("recorder = %v", rec)
	}
}

func TestGetNotFoundIsDistinct(t *testing.T) {
	rec := countingRecorder{}
	svc := newService(&fakeSource{}, rec)

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, detector.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if detector.IsTransport(err) {
		t.Fatalf("not found must not be a transport error")
	}
	if rec["get/not_found"] != 1 {
		t.Errorf("recorder = %v", rec)
	}
}

func TestGetRejectsBlankID(t *testing.T) {
	svc := newService(&fakeSource{}, nil)
	if _, err := svc.Get(context.Background(), "  "); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestGetSnapshotProbe(t *testing.T) {
	record := model.AccidentRecord{
		ID:        "65f0",
		Result:    string(model.ClassificationAccident),
		Severity:  "severe",
		Filename:  "crash_01",
		Timestamp: "2025-03-04T14:05:06",
		Entities:  []model.Entity{{Type: "car", LicensePlate: "KA01"}, {Type: "pedestrian"}},
	}

	cases := []struct {
		name     string
		probe    bool
		probeErr error
		wantURL  string
	}{
		{name: "present", probe: true, wantURL: "http://detector/collages/crash_01.jpg"},
		{name: "absent", probe: false},
		{name: "probe failure", probeErr: &detector.TransportError{Op: "probe-collage", StatusCode: 500}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{records: []model.AccidentRecord{record}, probe: tc.probe, probeErr: tc.probeErr}
			svc := newService(src, nil)

			details, err := svc.Get(context.Background(), "65f0")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if details.SnapshotURL != tc.wantURL {
				t.Errorf("SnapshotURL = %q, want %q", details.SnapshotURL, tc.wantURL)
			}
			if len(src.probed) != 1 || src.probed[0] != "crash_01" {
				t.Errorf("probed = %v", src.probed)
			}
			if details.View.Pedestrians != 1 || details.View.Vehicles.Count != 1 {
				t.Errorf("unexpected view: %+v", details.View)
			}
			if details.View.Severity != "severe" {
				t.Errorf("Severity = %q", details.View.Severity)
			}
		})
	}
}

func TestGetProbesByIDWithoutFilename(t *testing.T) {
	src := &fakeSource{records: []model.AccidentRecord{{ID: "abc"}}}
	svc := newService(src, nil)

	if _, err := svc.Get(context.Background(), "abc"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(src.probed) != 1 || src.probed[0] != "abc" {
		t.Fatalf("probed = %v", src.probed)
	}
}

func TestReportFallsBackWhenCollageDownloadFails(t *testing.T) {
	src := &fakeSource{
		records:    []model.AccidentRecord{{ID: "abc", Severity: "minor"}},
		probe:      true,
		collageErr: &detector.TransportError{Op: "fetch-collage", StatusCode: 500},
	}
	svc := newService(src, nil)

	pdf, err := svc.Report(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("not a PDF")
	}
}

func TestServiceAgainstDetectorClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accidents/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"abc","result":"Accident Detected","severity":"moderate","entities":[{"type":"car"}],"timestamp":"2025-03-04T14:05:06"}`))
	})
	mux.HandleFunc("/accidents/gone", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	mux.HandleFunc("/collages/abc.jpg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("probe method = %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := detector.NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	svc := newService(client, nil)

	details, err := svc.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if details.SnapshotURL != srv.URL+"/collages/abc.jpg" {
		t.Errorf("SnapshotURL = %q", details.SnapshotURL)
	}

	if _, err := svc.Get(context.Background(), "gone"); !errors.Is(err, detector.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
