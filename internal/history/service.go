package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	"crashanalytix-console/internal/detector"
	"crashanalytix-console/internal/model"
	"crashanalytix-console/internal/report"
)

var ErrInvalidID = errors.New("accident id is required")

// Source is the accidents API of the detection service.
type Source interface {
	ListAccidents(ctx context.Context, sortBySeverity bool) ([]model.AccidentRecord, error)
	GetAccident(ctx context.Context, id string) (*model.AccidentRecord, error)
	CollageURL(id string) string
	CollageExists(ctx context.Context, id string) (bool, error)
	FetchCollage(ctx context.Context, id string) ([]byte, error)
}

type Recorder interface {
	HistoryRequest(op, outcome string)
}

type Listing struct {
	Summaries []model.AccidentSummary `json:"summaries"`
	Records   []model.AccidentRecord  `json:"records"`
}

// Details is everything the accident details page shows. SnapshotURL is empty
// when the collage could not be confirmed and a placeholder is rendered.
type Details struct {
	Record      model.AccidentRecord        `json:"record"`
	View        model.ProcessedAccidentView `json:"view"`
	SnapshotURL string                      `json:"snapshotUrl,omitempty"`
}

type Service struct {
	source   Source
	recorder Recorder
	clock    clockz.Clock
	log      zerolog.Logger
}

func NewService(source Source, recorder Recorder, clock clockz.Clock, log zerolog.Logger) *Service {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Service{
		source:   source,
		recorder: recorder,
		clock:    clock,
		log:      log.With().Str("component", "history").Logger(),
	}
}

// List returns stored detections in the order the detection service sorts
// them.
func (s *Service) List(ctx context.Context, sortBySeverity bool) (Listing, error) {
	records, err := s.source.ListAccidents(ctx, sortBySeverity)
	s.record("list", err)
	if err != nil {
		s.log.Error().Err(err).Bool("sort_by_severity", sortBySeverity).Msg("list accidents failed")
		return Listing{}, fmt.Errorf("list accidents: %w", err)
	}

	summaries := make([]model.AccidentSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.Summary())
	}
	if records == nil {
		records = []model.AccidentRecord{}
	}
	return Listing{Summaries: summaries, Records: records}, nil
}

// Get loads one detection and probes its snapshot collage. A failed probe
// leaves the snapshot empty and is not an error.
func (s *Service) Get(ctx context.Context, id string) (*Details, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}

	record, err := s.source.GetAccident(ctx, id)
	s.record("get", err)
	if err != nil {
		if !errors.Is(err, detector.ErrNotFound) {
			s.log.Error().Err(err).Str("accident_id", id).Msg("fetch accident failed")
		}
		return nil, fmt.Errorf("get accident %s: %w", id, err)
	}

	details := &Details{
		Record: *record,
		View:   record.ProcessedView(s.clock.Now()),
	}

	name := collageName(record)
	ok, err := s.source.CollageExists(ctx, name)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("accident_id", id).Msg("snapshot probe failed")
	case !ok:
		s.log.Debug().Str("accident_id", id).Msg("no snapshot collage")
	default:
		details.SnapshotURL = s.source.CollageURL(name)
	}

	return details, nil
}

// Report renders the PDF report of a stored detection.
func (s *Service) Report(ctx context.Context, id string) ([]byte, error) {
	details, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var snapshot *report.Snapshot
	if details.SnapshotURL != "" {
		img, err := s.source.FetchCollage(ctx, collageName(&details.Record))
		if err != nil {
			s.log.Warn().Err(err).Str("accident_id", id).Msg("snapshot download failed")
		} else {
			snapshot = &report.Snapshot{JPEG: img}
		}
	}

	return report.Render(details.View, snapshot)
}

func (s *Service) record(op string, err error) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, detector.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	s.recorder.HistoryRequest(op, outcome)
}

// collageName is the collage key of a record: its uploaded filename when
// known, otherwise the record id.
func collageName(record *model.AccidentRecord) string {
	if name := strings.TrimSpace(record.Filename); name != "" {
		return strings.TrimSuffix(name, ".jpg")
	}
	return record.ID
}
