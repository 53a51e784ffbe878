package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"crashanalytix-console/internal/preview"
	"crashanalytix-console/internal/upload"
)

// SessionState is the client-facing snapshot of one console session.
type SessionState struct {
	ID         uuid.UUID            `json:"id"`
	Kind       upload.Kind          `json:"kind"`
	Owner      string               `json:"owner,omitempty"`
	Status     upload.Status        `json:"status"`
	Result     string               `json:"result,omitempty"`
	Request    uint64               `json:"request"`
	DurationMS int64                `json:"duration_ms,omitempty"`
	File       *preview.Ref         `json:"file,omitempty"`
	PreviewURL string               `json:"preview_url,omitempty"`
	Accident   *upload.AccidentData `json:"accident,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// controller is the kind-independent part of both upload controllers.
type controller interface {
	Kind() upload.Kind
	File() (preview.Ref, bool)
	SelectFile(filename string, video io.Reader) (preview.Ref, error)
	OnCompleted(handler func(context.Context, upload.Event) error) error
	Close() error
}

type session struct {
	id        uuid.UUID
	kind      upload.Kind
	owner     string
	createdAt time.Time
	video     *upload.VideoController
	plate     *upload.PlateController

	mu         sync.Mutex
	lastActive time.Time
}

func (s *session) controller() controller {
	if s.video != nil {
		return s.video
	}
	return s.plate
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastActive) {
		s.lastActive = now
	}
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *session) busy() bool {
	if s.video != nil {
		return s.video.State().InFlight()
	}
	return s.plate.State().InFlight()
}

func (s *session) submit(ctx context.Context) error {
	var err error
	if s.video != nil {
		_, err = s.video.Submit(ctx)
	} else {
		_, err = s.plate.Submit(ctx)
	}
	return err
}

// submitAsync starts a background upload; done runs once it has finished.
func (s *session) submitAsync(ctx context.Context, done func()) error {
	if s.video != nil {
		ch, err := s.video.SubmitAsync(ctx)
		if err != nil {
			return err
		}
		go func() {
			<-ch
			done()
		}()
		return nil
	}

	ch, err := s.plate.SubmitAsync(ctx)
	if err != nil {
		return err
	}
	go func() {
		<-ch
		done()
	}()
	return nil
}

func (s *session) snapshot() SessionState {
	out := SessionState{
		ID:        s.id,
		Kind:      s.kind,
		Owner:     s.owner,
		CreatedAt: s.createdAt,
	}

	if ref, ok := s.controller().File(); ok {
		out.File = &ref
		out.PreviewURL = fmt.Sprintf("/api/sessions/%s/preview", s.id)
	}

	if s.video != nil {
		state := s.video.State()
		out.Status, out.Request, out.DurationMS = state.Status, state.Request, state.Duration.Milliseconds()
		if result, ok := state.Succeeded(); ok {
			out.Result = string(result.Classification)
		} else if msg, ok := state.Failure(); ok {
			out.Result = msg
		}
		if data, ok := upload.AccidentDataOf(state); ok {
			out.Accident = &data
		}
		return out
	}

	state := s.plate.State()
	out.Status, out.Request, out.DurationMS = state.Status, state.Request, state.Duration.Milliseconds()
	if result, ok := state.Succeeded(); ok {
		out.Result = result
	} else if msg, ok := state.Failure(); ok {
		out.Result = msg
	}
	return out
}
