package detector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crashanalytix-console/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, zerolog.Nop())
}

func TestPredictSendsSingleFileField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if len(r.MultipartForm.File) != 1 || len(r.MultipartForm.Value) != 0 {
			t.Errorf("expected exactly one file field, got files=%v values=%v", r.MultipartForm.File, r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "crash.mp4" || string(data) != "video-bytes" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("no auth header expected, got %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result":"Accident Detected","severity":"Severe","entities":[{"type":"car","license_plate":"ABC-1234"}]}`)
	})

	resp, err := client.Predict(context.Background(), "crash.mp4", strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if resp.Result == nil || *resp.Result != "Accident Detected" {
		t.Fatalf("unexpected result %+v", resp)
	}
	if len(resp.Entities) != 1 || *resp.Entities[0].LicensePlate != "ABC-1234" {
		t.Fatalf("unexpected entities %+v", resp.Entities)
	}
}

func TestPredictNon2xxIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Error opening video file"}`)
	})

	_, err := client.Predict(context.Background(), "bad.mkv", strings.NewReader("x"))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusBadRequest || te.Op != "predict" {
		t.Fatalf("unexpected transport error %+v", te)
	}
}

func TestDetectLicensePlate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect-license-plate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"license_plates":["XYZ-999"]}`)
	})

	resp, err := client.DetectLicensePlate(context.Background(), "plate.mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("DetectLicensePlate: %v", err)
	}
	if resp.PlateText() != "XYZ-999" {
		t.Fatalf("plate = %q", resp.PlateText())
	}
}

func TestListAccidentsPassesSortFlag(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `[{"_id":"b","severity":"Minor"},{"_id":"a","severity":"Severe"}]`)
	})

	records, err := client.ListAccidents(context.Background(), true)
	if err != nil {
		t.Fatalf("ListAccidents: %v", err)
	}
	if gotQuery != "sortBySeverity=true" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(records) != 2 || records[0].ID != "b" || records[1].ID != "a" {
		t.Errorf("service order must be preserved, got %+v", records)
	}
}

func TestListAccidentsNullBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	})
	records, err := client.ListAccidents(context.Background(), false)
	if err != nil {
		t.Fatalf("ListAccidents: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty list, got %#v", records)
	}
}

func TestGetAccidentNotFoundVersusTransport(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{"null body", http.StatusOK, "null", true},
		{"empty body", http.StatusOK, "", true},
		{"404", http.StatusNotFound, `{"error":"missing"}`, true},
		{"server error", http.StatusInternalServerError, "boom", false},
		{"garbage", http.StatusOK, "{not json", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := client.GetAccident(context.Background(), "65f1")
			if tc.notFound {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if errors.Is(err, ErrNotFound) || !IsTransport(err) {
				t.Fatalf("expected transport error, got %v", err)
			}
		})
	}
}

func TestGetAccident(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accidents/65f1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"_id":"65f1","severity":"Moderate","filename":"crash_01"}`)
	})
	record, err := client.GetAccident(context.Background(), "65f1")
	if err != nil {
		t.Fatalf("GetAccident: %v", err)
	}
	if record.Filename != "crash_01" || record.Severity != "Moderate" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestAccidentEntitiesAreNormalized(t *testing.T) {
	const record = `{"_id":"65f1","entities":[{"type":" SUV ","license_plate":" KA01 "},{"type":""},{"type":"Pedestrian"}]}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/accidents" {
			_, _ = io.WriteString(w, "["+record+"]")
			return
		}
		_, _ = io.WriteString(w, record)
	})

	want := []model.Entity{
		{Type: "SUV", LicensePlate: "KA01"},
		{Type: model.EntityUnknownType},
		{Type: "Pedestrian"},
	}

	got, err := client.GetAccident(context.Background(), "65f1")
	if err != nil {
		t.Fatalf("GetAccident: %v", err)
	}
	if !reflect.DeepEqual(got.Entities, want) {
		t.Errorf("GetAccident entities = %+v", got.Entities)
	}

	list, err := client.ListAccidents(context.Background(), false)
	if err != nil {
		t.Fatalf("ListAccidents: %v", err)
	}
	if len(list) != 1 || !reflect.DeepEqual(list[0].Entities, want) {
		t.Errorf("ListAccidents entities = %+v", list)
	}
}

func TestGetAccidentNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, zerolog.Nop())
	_, err := client.GetAccident(context.Background(), "x")
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestCollageExists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/collages/present.jpg":
			w.WriteHeader(http.StatusOK)
		case "/collages/broken.jpg":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	if ok, err := client.CollageExists(context.Background(), "present"); !ok || err != nil {
		t.Errorf("present: ok=%v err=%v", ok, err)
	}
	if ok, err := client.CollageExists(context.Background(), "absent"); ok || err != nil {
		t.Errorf("absent: ok=%v err=%v", ok, err)
	}
	if ok, err := client.CollageExists(context.Background(), "broken"); ok || !IsTransport(err) {
		t.Errorf("broken: ok=%v err=%v", ok, err)
	}
}
