package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zoobzio/clockz"

	"crashanalytix-console/internal/model"
	"crashanalytix-console/internal/preview"
	"crashanalytix-console/internal/report"
	"crashanalytix-console/internal/repository"
	"crashanalytix-console/internal/upload"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoProcessedView = errors.New("no processed accident data")
	ErrInvalidKind     = errors.New(`kind must be "accident" or "plate"`)
	ErrNoPreview       = errors.New("no video selected")
)

// Detector is the remote detection service used by upload sessions.
type Detector interface {
	upload.Predictor
	upload.PlateDetector
}

type Metrics interface {
	upload.Observer
	SessionOpened()
	SessionClosed()
}

type Options struct {
	Clock      clockz.Clock
	Logger     zerolog.Logger
	Metrics    Metrics
	Runs       repository.RunRepository
	SessionTTL time.Duration
}

// ConsoleService owns the upload sessions of the console. Each session holds
// exactly one controller, either for accident detection or plate reading.
type ConsoleService struct {
	detector Detector
	store    *preview.Store
	clock    clockz.Clock
	log      zerolog.Logger
	metrics  Metrics
	runs     repository.RunRepository
	ttl      time.Duration

	// background submits outlive the request that started them
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func NewConsoleService(detector Detector, store *preview.Store, opts Options) *ConsoleService {
	clock := opts.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	runs := opts.Runs
	if runs == nil {
		runs = repository.NopRunRepository{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConsoleService{
		detector: detector,
		store:    store,
		clock:    clock,
		log:      opts.Logger.With().Str("component", "console").Logger(),
		metrics:  opts.Metrics,
		runs:     runs,
		ttl:      opts.SessionTTL,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*session),
	}
}

// CreateSession opens a session for kind. owner is the authenticated user
// id, empty when the API runs without auth.
func (s *ConsoleService) CreateSession(kind upload.Kind, owner string) (SessionState, error) {
	if !kind.Valid() {
		return SessionState{}, ErrInvalidKind
	}

	id := uuid.New()
	opts := upload.Options{
		Clock:    s.clock,
		Logger:   s.log.With().Str("session", id.String()).Logger(),
		Observer: s.observer(),
	}

	sess := &session{id: id, kind: kind, owner: owner, createdAt: s.clock.Now()}
	sess.lastActive = sess.createdAt
	switch kind {
	case upload.KindAccident:
		sess.video = upload.NewVideoController(s.detector, s.store, opts)
	case upload.KindPlate:
		sess.plate = upload.NewPlateController(s.detector, s.store, opts)
	}

	if err := sess.controller().OnCompleted(s.recordRun(id, owner)); err != nil {
		_ = sess.controller().Close()
		return SessionState{}, fmt.Errorf("register completion hook: %w", err)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionOpened()
	}
	s.log.Info().Str("session", id.String()).Str("kind", string(kind)).Msg("session opened")
	return sess.snapshot(), nil
}

func (s *ConsoleService) State(id uuid.UUID) (SessionState, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionState{}, err
	}
	return sess.snapshot(), nil
}

// SelectFile stages a new video for the session. The session status is left
// untouched.
func (s *ConsoleService) SelectFile(id uuid.UUID, filename string, video io.Reader) (SessionState, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionState{}, err
	}
	if _, err := sess.controller().SelectFile(filename, video); err != nil {
		return SessionState{}, s.translate(err)
	}
	sess.touch(s.clock.Now())
	return sess.snapshot(), nil
}

// Preview opens the staged video of a session for streaming. The caller
// closes the file.
func (s *ConsoleService) Preview(id uuid.UUID) (afero.File, preview.Ref, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, preview.Ref{}, err
	}
	ref, ok := sess.controller().File()
	if !ok {
		return nil, preview.Ref{}, ErrNoPreview
	}
	file, current, err := s.store.Open(ref.ID)
	if err != nil {
		if errors.Is(err, preview.ErrReleased) {
			return nil, preview.Ref{}, ErrNoPreview
		}
		return nil, preview.Ref{}, err
	}
	return file, *current, nil
}

// Submit starts an upload of the staged video. With wait it blocks until
// the upload completes; otherwise it returns in StatusUploading and the
// upload continues in the background.
func (s *ConsoleService) Submit(ctx context.Context, id uuid.UUID, wait bool) (SessionState, error) {
	sess, err := s.session(id)
	if err != nil {
		return SessionState{}, err
	}
	sess.touch(s.clock.Now())

	if wait {
		err = sess.submit(ctx)
	} else {
		err = sess.submitAsync(s.ctx, func() { sess.touch(s.clock.Now()) })
	}
	if err != nil {
		return sess.snapshot(), s.translate(err)
	}
	return sess.snapshot(), nil
}

// ProcessedView returns the details projection of an accident session.
func (s *ConsoleService) ProcessedView(id uuid.UUID) (model.ProcessedAccidentView, error) {
	sess, err := s.session(id)
	if err != nil {
		return model.ProcessedAccidentView{}, err
	}
	if sess.video == nil {
		return model.ProcessedAccidentView{}, ErrNoProcessedView
	}
	view, ok := sess.video.ProcessedView()
	if !ok {
		return model.ProcessedAccidentView{}, ErrNoProcessedView
	}
	return view, nil
}

// Report renders the PDF report of the session's processed view.
func (s *ConsoleService) Report(id uuid.UUID) ([]byte, error) {
	view, err := s.ProcessedView(id)
	if err != nil {
		return nil, err
	}
	return report.Render(view, nil)
}

// RecentRuns lists the audited uploads, newest first.
func (s *ConsoleService) RecentRuns(ctx context.Context, limit int) ([]model.DetectionRun, error) {
	return s.runs.Recent(ctx, limit)
}

func (s *ConsoleService) CloseSession(id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return s.teardown(sess, "closed")
}

// Sweep closes sessions idle for longer than the session TTL. Sessions with
// an upload in flight are kept.
func (s *ConsoleService) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.clock.Now()

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if sess.busy() || now.Sub(sess.idleSince()) < s.ttl {
			continue
		}
		expired = append(expired, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		_ = s.teardown(sess, "expired")
	}
	return len(expired)
}

// RunSweeper sweeps expired sessions until ctx is done.
func (s *ConsoleService) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(interval):
			if n := s.Sweep(); n > 0 {
				s.log.Info().Int("sessions", n).Msg("expired sessions swept")
			}
		}
	}
}

// Shutdown cancels background uploads and tears down every session.
func (s *ConsoleService) Shutdown() error {
	s.cancel()

	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := s.teardown(sess, "shutdown"); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.ReleaseAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *ConsoleService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *ConsoleService) session(id uuid.UUID) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *ConsoleService) teardown(sess *session, reason string) error {
	err := sess.controller().Close()
	if s.metrics != nil {
		s.metrics.SessionClosed()
	}
	event := s.log.Info()
	if err != nil {
		event = s.log.Warn().Err(err)
	}
	event.Str("session", sess.id.String()).Str("reason", reason).Msg("session closed")
	return err
}

func (s *ConsoleService) translate(err error) error {
	if errors.Is(err, upload.ErrClosed) {
		return ErrSessionNotFound
	}
	return err
}

func (s *ConsoleService) observer() upload.Observer {
	if s.metrics == nil {
		return nil
	}
	return s.metrics
}

func (s *ConsoleService) recordRun(sessionID uuid.UUID, owner string) func(context.Context, upload.Event) error {
	return func(ctx context.Context, ev upload.Event) error {
		run := &model.DetectionRun{
			ID:          uuid.New(),
			SessionID:   sessionID,
			UserID:      owner,
			Kind:        string(ev.Kind),
			Status:      string(ev.Status),
			Result:      ev.Outcome.Text,
			Severity:    ev.Outcome.Severity,
			EntityCount: ev.Outcome.Entities,
			DurationMS:  ev.Duration.Milliseconds(),
			CreatedAt:   ev.At,
		}
		if err := s.runs.Record(ctx, run); err != nil {
			s.log.Error().Err(err).Str("session", sessionID.String()).Msg("failed to record detection run")
			return err
		}
		return nil
	}
}
